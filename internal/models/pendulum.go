package models

import (
	"math"

	"github.com/san-kum/fmusim/internal/binding"
	"github.com/san-kum/fmusim/internal/fmu"
	"github.com/san-kum/fmusim/internal/sim"
)

const PendulumID = "Pendulum"

func DescribePendulum() *fmu.ModelDescription {
	b := binding.NewDescription(PendulumID, "Damped rigid pendulum swinging in the x-y plane").
		Experiment(10, 0.01).
		Parameter("mass", DefaultMass, "kg", "Bob mass").
		Parameter("L", DefaultLength, "m", "Rod length").
		Parameter("d", 0.1, "N.m.s/rad", "Rotational damping").
		Parameter("g", DefaultGravity, "m/s2", "Gravity acceleration").
		State("phi", 0.5, "rad", "Angle from the downward vertical").
		State("w", 0, "rad/s", "Angular velocity")
	describeBodyOutputs(b)
	b.Output("energy", "J", "Total mechanical energy")
	return b.Build()
}

// Pendulum state: angle, angular velocity.
type Pendulum struct {
	*binding.Base

	Mass    float64
	Length  float64
	Damping float64
	Gravity float64
}

func NewPendulum(md *fmu.ModelDescription) (binding.Instance, error) {
	return &Pendulum{Base: binding.NewBase(md)}, nil
}

func (p *Pendulum) StateDim() int { return 2 }

func (p *Pendulum) Initialize(t0 float64) (sim.State, error) {
	if err := p.Positive("mass", "L"); err != nil {
		return nil, err
	}
	if err := p.NonNegative("d", "g"); err != nil {
		return nil, err
	}
	if err := p.Enter(); err != nil {
		return nil, err
	}
	p.Mass = p.Float("mass")
	p.Length = p.Float("L")
	p.Damping = p.Float("d")
	p.Gravity = p.Float("g")
	return sim.State{p.Float("phi"), p.Float("w")}, nil
}

func (p *Pendulum) Derivative(x sim.State, t float64) (sim.State, error) {
	if err := checkState(p.Base, x, 2); err != nil {
		return nil, err
	}
	theta := x[0]
	omega := x[1]

	alpha := (-p.Damping*omega - p.Mass*p.Gravity*p.Length*math.Sin(theta)) / (p.Mass * p.Length * p.Length)

	return sim.State{omega, alpha}, nil
}

func (p *Pendulum) Energy(x sim.State) float64 {
	v := p.Length * x[1]
	return 0.5*p.Mass*v*v - p.Mass*p.Gravity*p.Length*math.Cos(x[0])
}

func (p *Pendulum) Real(name string, t float64, x sim.State) (float64, error) {
	if err := checkState(p.Base, x, 2); err != nil {
		return 0, err
	}
	switch name {
	case bodyPosition[0]:
		return p.Length * math.Sin(x[0]), nil
	case bodyPosition[1]:
		return -p.Length * math.Cos(x[0]), nil
	case bodyPosition[2]:
		return 0, nil
	case "phi":
		return x[0], nil
	case "w":
		return x[1], nil
	case "energy":
		return p.Energy(x), nil
	}
	return parameter(p.Base, name)
}

func (p *Pendulum) Terminate() error { return nil }
