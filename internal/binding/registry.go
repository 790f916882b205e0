package binding

import (
	"fmt"
	"sort"
	"sync"

	"github.com/san-kum/fmusim/internal/fmu"
)

type Registry struct {
	mu     sync.RWMutex
	models map[string]Model
}

func NewRegistry() *Registry {
	return &Registry{models: make(map[string]Model)}
}

func (r *Registry) Register(m Model) error {
	if m.Identifier == "" || m.New == nil || m.Describe == nil {
		return fmt.Errorf("register %q: identifier, describe and factory are required", m.Identifier)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.models[m.Identifier]; dup {
		return fmt.Errorf("register %q: already registered", m.Identifier)
	}
	r.models[m.Identifier] = m
	return nil
}

func (r *Registry) lookup(id string) (Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[id]
	if !ok {
		return Model{}, fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}
	return m, nil
}

// Instantiate creates an instance for the model md describes.
func (r *Registry) Instantiate(md *fmu.ModelDescription) (Instance, error) {
	m, err := r.lookup(md.ModelIdentifier)
	if err != nil {
		return nil, err
	}
	return m.New(md)
}

// Describe returns a fresh description of a registered model.
func (r *Registry) Describe(id string) (*fmu.ModelDescription, error) {
	m, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return m.Describe(), nil
}

func (r *Registry) ListModels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
