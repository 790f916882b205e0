package models

import (
	"math"

	"github.com/san-kum/fmusim/internal/binding"
	"github.com/san-kum/fmusim/internal/fmu"
	"github.com/san-kum/fmusim/internal/sim"
)

const DoublePendulumID = "DoublePendulum"

// DescribeDoublePendulum declares a single-instance model, the way FMUs with
// global solver state do.
func DescribeDoublePendulum() *fmu.ModelDescription {
	b := binding.NewDescription(DoublePendulumID, "Planar double pendulum; body1 is the outer bob").
		Experiment(10, 0.001).
		SingleInstance().
		Parameter("m1", DefaultMass, "kg", "Inner bob mass").
		Parameter("m2", DefaultMass, "kg", "Outer bob mass").
		Parameter("L1", DefaultLength, "m", "Inner rod length").
		Parameter("L2", DefaultLength, "m", "Outer rod length").
		Parameter("g", DefaultGravity, "m/s2", "Gravity acceleration").
		State("phi1", 1.0, "rad", "Inner rod angle from the downward vertical").
		State("phi2", 0.5, "rad", "Outer rod angle from the downward vertical").
		State("w1", 0, "rad/s", "Inner angular velocity").
		State("w2", 0, "rad/s", "Outer angular velocity")
	describeBodyOutputs(b)
	b.Output("energy", "J", "Total mechanical energy")
	return b.Build()
}

// DoublePendulum state: theta1, theta2, omega1, omega2.
type DoublePendulum struct {
	*binding.Base

	M1, M2  float64
	L1, L2  float64
	Gravity float64
}

func NewDoublePendulum(md *fmu.ModelDescription) (binding.Instance, error) {
	return &DoublePendulum{Base: binding.NewBase(md)}, nil
}

func (d *DoublePendulum) StateDim() int { return 4 }

func (d *DoublePendulum) Initialize(t0 float64) (sim.State, error) {
	if err := d.Positive("m1", "m2", "L1", "L2"); err != nil {
		return nil, err
	}
	if err := d.NonNegative("g"); err != nil {
		return nil, err
	}
	if err := d.Enter(); err != nil {
		return nil, err
	}
	d.M1, d.M2 = d.Float("m1"), d.Float("m2")
	d.L1, d.L2 = d.Float("L1"), d.Float("L2")
	d.Gravity = d.Float("g")
	return sim.State{d.Float("phi1"), d.Float("phi2"), d.Float("w1"), d.Float("w2")}, nil
}

func (d *DoublePendulum) Derivative(x sim.State, t float64) (sim.State, error) {
	if err := checkState(d.Base, x, 4); err != nil {
		return nil, err
	}
	theta1, theta2, omega1, omega2 := x[0], x[1], x[2], x[3]
	m1, m2, l1, l2, g := d.M1, d.M2, d.L1, d.L2, d.Gravity

	delta := theta2 - theta1
	sinD, cosD := math.Sin(delta), math.Cos(delta)

	den1 := (m1+m2)*l1 - m2*l1*cosD*cosD
	den2 := (l2 / l1) * den1

	alpha1 := (m2*l1*omega1*omega1*sinD*cosD +
		m2*g*math.Sin(theta2)*cosD +
		m2*l2*omega2*omega2*sinD -
		(m1+m2)*g*math.Sin(theta1)) / den1

	alpha2 := (-m2*l2*omega2*omega2*sinD*cosD +
		(m1+m2)*g*math.Sin(theta1)*cosD -
		(m1+m2)*l1*omega1*omega1*sinD -
		(m1+m2)*g*math.Sin(theta2)) / den2

	return sim.State{omega1, omega2, alpha1, alpha2}, nil
}

func (d *DoublePendulum) Energy(x sim.State) float64 {
	theta1, theta2, omega1, omega2 := x[0], x[1], x[2], x[3]
	m1, m2, l1, l2, g := d.M1, d.M2, d.L1, d.L2, d.Gravity

	v1sq := l1 * l1 * omega1 * omega1
	v2sq := l1*l1*omega1*omega1 + l2*l2*omega2*omega2 +
		2*l1*l2*omega1*omega2*math.Cos(theta1-theta2)

	ke := 0.5*m1*v1sq + 0.5*m2*v2sq
	y1 := -l1 * math.Cos(theta1)
	y2 := y1 - l2*math.Cos(theta2)
	pe := m1*g*y1 + m2*g*y2

	return ke + pe
}

func (d *DoublePendulum) Real(name string, t float64, x sim.State) (float64, error) {
	if err := checkState(d.Base, x, 4); err != nil {
		return 0, err
	}
	switch name {
	case bodyPosition[0]:
		return d.L1*math.Sin(x[0]) + d.L2*math.Sin(x[1]), nil
	case bodyPosition[1]:
		return -d.L1*math.Cos(x[0]) - d.L2*math.Cos(x[1]), nil
	case bodyPosition[2]:
		return 0, nil
	case "phi1":
		return x[0], nil
	case "phi2":
		return x[1], nil
	case "w1":
		return x[2], nil
	case "w2":
		return x[3], nil
	case "energy":
		return d.Energy(x), nil
	}
	return parameter(d.Base, name)
}

func (d *DoublePendulum) Terminate() error { return nil }
