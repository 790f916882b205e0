// Package metrics summarizes a body1 trajectory into scalar figures.
package metrics

import (
	"github.com/san-kum/fmusim/internal/executor"
)

// Metric accumulates one figure over the samples of a trajectory.
type Metric interface {
	Name() string
	Observe(s executor.Sample)
	Value() float64
	Reset()
}

// Standard returns fresh instances of every built-in metric.
func Standard() []Metric {
	return []Metric{
		NewMaxDisplacement(),
		NewPathLength(),
		NewFinalSpeed(),
		NewExtent(),
	}
}

// Evaluate feeds traj through ms and returns their values by name. With no
// metrics given it uses Standard.
func Evaluate(traj *executor.Trajectory, ms ...Metric) map[string]float64 {
	if len(ms) == 0 {
		ms = Standard()
	}
	for _, m := range ms {
		m.Reset()
	}
	for _, s := range traj.Samples {
		for _, m := range ms {
			m.Observe(s)
		}
	}
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}
