// Package binding defines the contract between a model description and the
// executable code that evaluates the model. Bindings are resolved by the
// description's modelIdentifier through a Registry.
package binding

import (
	"errors"

	"github.com/san-kum/fmusim/internal/fmu"
	"github.com/san-kum/fmusim/internal/sim"
)

var (
	ErrUnknownModel       = errors.New("no executable binding for model")
	ErrUnknownVariable    = errors.New("unknown variable")
	ErrNotSettable        = errors.New("variable cannot be set")
	ErrTypeMismatch       = errors.New("value does not match declared type")
	ErrInvalidParameter   = errors.New("invalid parameter value")
	ErrAlreadyInitialized = errors.New("instance already initialized")
	ErrNotInitialized     = errors.New("instance not initialized")
)

// Instance is one instantiated model. Start values are applied with Set before
// Initialize; after that the instance behaves as a continuous-time system whose
// state vector is owned by the caller.
type Instance interface {
	sim.Dynamics

	Set(name string, v fmu.Value) error
	Initialize(t0 float64) (sim.State, error)

	// Real evaluates a real-valued variable at time t and state x.
	Real(name string, t float64, x sim.State) (float64, error)

	Terminate() error
}

// Factory instantiates a binding for md. The description may come from a file
// written by another tool, so factories must not assume variable order.
type Factory func(md *fmu.ModelDescription) (Instance, error)

// Model is a registered binding.
type Model struct {
	Identifier string
	Describe   func() *fmu.ModelDescription
	New        Factory
}
