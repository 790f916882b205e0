package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState indicates a state vector with the wrong dimension.
	ErrInvalidState = errors.New("sim: invalid state")

	// ErrUnstable indicates the simulation produced NaN or Inf.
	ErrUnstable = errors.New("sim: simulation unstable (state diverged)")

	// ErrStepTooSmall indicates the step size collapsed or made no progress.
	ErrStepTooSmall = errors.New("sim: step size below minimum")

	// ErrTooManySteps indicates MaxSteps was exhausted before the stop time.
	ErrTooManySteps = errors.New("sim: maximum number of steps exceeded")

	// ErrConvergence indicates an implicit corrector failed to converge.
	ErrConvergence = errors.New("sim: corrector failed to converge")
)

// SimulationError wraps an error with the step and time it occurred at.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.6g): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
