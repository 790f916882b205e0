package sim

import (
	"context"
	"fmt"
	"math"
)

type Simulator struct {
	dyn       Dynamics
	stepper   Stepper
	observers []Observer
}

func New(dyn Dynamics, stepper Stepper) *Simulator {
	return &Simulator{
		dyn:       dyn,
		stepper:   stepper,
		observers: make([]Observer, 0),
	}
}

func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// Run integrates from t=0 to cfg.StopTime. The returned result holds every
// sample recorded before a failure, so callers can inspect partial runs.
func (s *Simulator) Run(ctx context.Context, x0 State, cfg Config) (*Result, error) {
	if err := s.validate(x0, cfg); err != nil {
		return nil, err
	}
	if err := s.stepper.Reset(s.dyn, 0, x0.Clone()); err != nil {
		return nil, &SimulationError{Step: 0, Time: 0, State: x0.Clone(), Wrapped: err}
	}

	result := &Result{
		Times:  make([]float64, 0, 64),
		States: make([]State, 0, 64),
	}
	s.record(result, 0, x0.Clone())

	var g *grid
	if cfg.OutputInterval > 0 {
		g = newGrid(cfg.OutputInterval, cfg.StopTime)
	}

	t := 0.0
	x := x0
	for i := 0; t < cfg.StopTime; i++ {
		select {
		case <-ctx.Done():
			return result, &SimulationError{Step: i, Time: t, State: x.Clone(), Wrapped: ctx.Err()}
		default:
		}

		if cfg.MaxSteps > 0 && i >= cfg.MaxSteps {
			return result, &SimulationError{Step: i, Time: t, State: x.Clone(), Wrapped: ErrTooManySteps}
		}

		st, err := s.stepper.Advance(cfg.StopTime)
		if err != nil {
			return result, &SimulationError{Step: i, Time: t, State: x.Clone(), Wrapped: err}
		}
		if cfg.ValidateState && !st.X.IsValid() {
			return result, &SimulationError{Step: i, Time: st.T, State: st.X, Wrapped: ErrUnstable}
		}
		if !(st.T > t) {
			return result, &SimulationError{Step: i, Time: t, State: x.Clone(),
				Wrapped: fmt.Errorf("%w: no progress past t=%g", ErrStepTooSmall, t)}
		}

		if g != nil {
			for ts, ok := g.peek(); ok && ts <= st.T+g.eps; ts, ok = g.peek() {
				var xs State
				if math.Abs(ts-st.T) <= g.eps {
					xs = st.X.Clone()
				} else {
					xs = s.stepper.Interpolate(ts)
				}
				s.record(result, ts, xs)
				g.advance()
			}
		} else {
			s.record(result, st.T, st.X.Clone())
		}

		t, x = st.T, st.X
		result.StepsTaken++
	}

	return result, nil
}

func (s *Simulator) record(r *Result, t float64, x State) {
	r.Times = append(r.Times, t)
	r.States = append(r.States, x)
	for _, obs := range s.observers {
		obs.OnSample(t, x)
	}
}

func (s *Simulator) validate(x0 State, cfg Config) error {
	if !(cfg.StopTime > 0) || math.IsInf(cfg.StopTime, 0) {
		return fmt.Errorf("stop time must be positive and finite, got %g", cfg.StopTime)
	}
	if cfg.OutputInterval < 0 || math.IsNaN(cfg.OutputInterval) {
		return fmt.Errorf("output interval must be non-negative, got %g", cfg.OutputInterval)
	}
	if len(x0) != s.dyn.StateDim() {
		return fmt.Errorf("%w: initial state has %d entries, system has %d", ErrInvalidState, len(x0), s.dyn.StateDim())
	}
	if !x0.IsValid() {
		return fmt.Errorf("%w: initial state contains NaN or Inf", ErrInvalidState)
	}
	return nil
}

// grid yields the output sample times k*interval (k >= 1) up to stop, followed
// by stop itself when it does not fall on the grid.
type grid struct {
	interval float64
	stop     float64
	eps      float64
	k        int
	n        int
	tail     bool
}

func newGrid(interval, stop float64) *grid {
	eps := 1e-9 * interval
	n := int(math.Floor(stop/interval + 1e-9))
	return &grid{
		interval: interval,
		stop:     stop,
		eps:      eps,
		k:        1,
		n:        n,
		tail:     stop-float64(n)*interval > eps,
	}
}

func (g *grid) peek() (float64, bool) {
	if g.k <= g.n {
		return math.Min(float64(g.k)*g.interval, g.stop), true
	}
	if g.k == g.n+1 && g.tail {
		return g.stop, true
	}
	return 0, false
}

func (g *grid) advance() { g.k++ }
