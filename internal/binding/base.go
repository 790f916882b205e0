package binding

import (
	"fmt"

	"github.com/san-kum/fmusim/internal/fmu"
)

// Base stores the start values of an instance and implements Set against the
// model description. Built-in models embed it.
type Base struct {
	md          *fmu.ModelDescription
	values      map[string]fmu.Value
	initialized bool
}

func NewBase(md *fmu.ModelDescription) *Base {
	b := &Base{
		md:     md,
		values: make(map[string]fmu.Value, len(md.Variables)),
	}
	for _, v := range md.Variables {
		if v.Start != nil {
			b.values[v.Name] = *v.Start
		}
	}
	return b
}

func (b *Base) Description() *fmu.ModelDescription { return b.md }

func (b *Base) Set(name string, v fmu.Value) error {
	if b.initialized {
		return ErrAlreadyInitialized
	}
	sv, ok := b.md.Variable(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownVariable, name)
	}
	if !sv.Settable() {
		return fmt.Errorf("%w: %q has causality %s and variability %s", ErrNotSettable, name, sv.Causality, sv.Variability)
	}
	converted, err := v.Convert(sv.Type)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrTypeMismatch, name, err)
	}
	b.values[name] = converted
	return nil
}

// Float returns the numeric value currently held for name, or zero.
func (b *Base) Float(name string) float64 {
	f, _ := b.values[name].Float()
	return f
}

func (b *Base) Value(name string) (fmu.Value, bool) {
	v, ok := b.values[name]
	return v, ok
}

// Enter marks the instance initialized; later Set calls fail.
func (b *Base) Enter() error {
	if b.initialized {
		return ErrAlreadyInitialized
	}
	b.initialized = true
	return nil
}

func (b *Base) Initialized() bool { return b.initialized }

// Positive checks that each named parameter is strictly positive.
func (b *Base) Positive(names ...string) error {
	for _, name := range names {
		if v := b.Float(name); !(v > 0) {
			return fmt.Errorf("%w: %s must be positive, got %g", ErrInvalidParameter, name, v)
		}
	}
	return nil
}

// NonNegative checks that each named parameter is zero or positive.
func (b *Base) NonNegative(names ...string) error {
	for _, name := range names {
		if v := b.Float(name); !(v >= 0) {
			return fmt.Errorf("%w: %s must not be negative, got %g", ErrInvalidParameter, name, v)
		}
	}
	return nil
}
