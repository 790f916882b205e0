package sim

import "math"

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// Dynamics is a continuous-time system dx/dt = f(x, t). Derivative may fail,
// for instance when a model binding rejects the state it is evaluated at.
type Dynamics interface {
	Derivative(x State, t float64) (State, error)
	StateDim() int
}

// Step is one accepted integration step ending at T.
type Step struct {
	T float64
	X State
}

// Stepper is an integration strategy. A stepper is stateful: Reset binds it to
// a system and an initial point, and each Advance takes one accepted step from
// the end of the previous one without passing tBound.
type Stepper interface {
	Name() string
	Reset(dyn Dynamics, t0 float64, x0 State) error
	Advance(tBound float64) (Step, error)

	// Interpolate evaluates the dense output of the last accepted step at a
	// time between its start and end.
	Interpolate(t float64) State
}

// Observer is notified of every recorded sample.
type Observer interface {
	OnSample(t float64, x State)
}

type Config struct {
	StopTime float64

	// OutputInterval > 0 samples on the grid k*OutputInterval; otherwise every
	// accepted step is recorded.
	OutputInterval float64

	// MaxSteps bounds the number of accepted steps; zero means unbounded.
	MaxSteps int

	ValidateState bool
}

func DefaultConfig() Config {
	return Config{
		StopTime:      10.0,
		MaxSteps:      1_000_000,
		ValidateState: true,
	}
}

type Result struct {
	Times      []float64
	States     []State
	StepsTaken int
}

func (r *Result) Len() int { return len(r.Times) }
