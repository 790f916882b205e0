package integrators

import (
	"fmt"

	"github.com/san-kum/fmusim/internal/sim"
)

// Euler is explicit fixed-step time marching. Step times are computed as
// t0 + n*h so long runs do not accumulate drift, and the last step is clipped
// to the bound. There is no error control.
type Euler struct {
	h float64

	dyn      sim.Dynamics
	t0       float64
	n        int
	t, tPrev float64
	x, xPrev sim.State
	stats    Stats
}

func NewEuler(h float64) *Euler {
	return &Euler{h: h}
}

func (e *Euler) Name() string      { return "Euler" }
func (e *Euler) StepSize() float64 { return e.h }
func (e *Euler) Stats() Stats      { return e.stats }

func (e *Euler) Reset(dyn sim.Dynamics, t0 float64, x0 sim.State) error {
	if !(e.h > 0) {
		return fmt.Errorf("euler: step size must be positive, got %g", e.h)
	}
	e.dyn = dyn
	e.t0, e.t, e.tPrev = t0, t0, t0
	e.x, e.xPrev = x0.Clone(), x0.Clone()
	e.n = 0
	e.stats = Stats{Order: 1}
	return nil
}

func (e *Euler) Advance(tBound float64) (sim.Step, error) {
	dx, err := e.dyn.Derivative(e.x, e.t)
	e.stats.Evaluations++
	if err != nil {
		return sim.Step{}, err
	}

	tNext := e.t0 + float64(e.n+1)*e.h
	if tNext > tBound || tBound-tNext <= 1e-9*e.h {
		tNext = tBound
	}
	h := tNext - e.t

	next := make(sim.State, len(e.x))
	for i := range e.x {
		next[i] = e.x[i] + h*dx[i]
	}

	e.tPrev, e.xPrev = e.t, e.x
	e.t, e.x = tNext, next
	e.n++
	e.stats.Steps++
	e.stats.LastStep = h
	return sim.Step{T: e.t, X: e.x}, nil
}

// Interpolate is linear between the ends of the last step, which is exact for
// the Euler polynomial.
func (e *Euler) Interpolate(t float64) sim.State {
	out := make(sim.State, len(e.x))
	span := e.t - e.tPrev
	if span <= 0 {
		copy(out, e.x)
		return out
	}
	w := (t - e.tPrev) / span
	for i := range out {
		out[i] = e.xPrev[i] + w*(e.x[i]-e.xPrev[i])
	}
	return out
}
