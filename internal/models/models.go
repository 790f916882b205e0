// Package models holds the built-in model bindings. Each model describes
// itself as an FMI 2.0 model so it can be exported as an FMU and introspected
// like any other.
package models

import (
	"fmt"
	"math"

	"github.com/san-kum/fmusim/internal/binding"
	"github.com/san-kum/fmusim/internal/sim"
)

const (
	DefaultMass    = 1.0
	DefaultLength  = 1.0
	DefaultGravity = 9.81
)

// Position channels of body1, in metres.
var bodyPosition = [3]string{"body1.r_0[1]", "body1.r_0[2]", "body1.r_0[3]"}

func Builtin() []binding.Model {
	return []binding.Model{
		{Identifier: SpringDamperID, Describe: DescribeSpringDamper, New: NewSpringDamper},
		{Identifier: PendulumID, Describe: DescribePendulum, New: NewPendulum},
		{Identifier: DoublePendulumID, Describe: DescribeDoublePendulum, New: NewDoublePendulum},
	}
}

// NewRegistry returns a registry holding every built-in model.
func NewRegistry() *binding.Registry {
	r := binding.NewRegistry()
	for _, m := range Builtin() {
		if err := r.Register(m); err != nil {
			panic(err)
		}
	}
	return r
}

func positionIndex(name string) (int, bool) {
	for i, n := range bodyPosition {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// parameter reads a numeric start value held by the instance.
func parameter(b *binding.Base, name string) (float64, error) {
	v, ok := b.Value(name)
	if !ok {
		return 0, fmt.Errorf("%w: %q", binding.ErrUnknownVariable, name)
	}
	f, ok := v.Float()
	if !ok {
		return 0, fmt.Errorf("%w: %q is %s", binding.ErrTypeMismatch, name, v.Kind())
	}
	return f, nil
}

func checkState(b *binding.Base, x sim.State, dim int) error {
	if !b.Initialized() {
		return binding.ErrNotInitialized
	}
	if len(x) != dim {
		return fmt.Errorf("%w: got %d entries, want %d", sim.ErrInvalidState, len(x), dim)
	}
	return nil
}

func describeBodyOutputs(b *binding.Builder) *binding.Builder {
	axes := [3]string{"x", "y", "z"}
	for i, name := range bodyPosition {
		b.Output(name, "m", "Position of body1 along "+axes[i])
	}
	return b
}

func hypot3(a, b, c float64) float64 { return math.Sqrt(a*a + b*b + c*c) }
