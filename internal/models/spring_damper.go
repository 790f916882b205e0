package models

import (
	"fmt"

	"github.com/san-kum/fmusim/internal/binding"
	"github.com/san-kum/fmusim/internal/fmu"
	"github.com/san-kum/fmusim/internal/sim"
)

const SpringDamperID = "SpringDamperSystem"

const (
	DefaultStiffness = 20.0
	DefaultDamping   = 1.0
	DefaultRestLen   = 0.5
)

var bodyVelocity = [3]string{"body1.v_0[1]", "body1.v_0[2]", "body1.v_0[3]"}

func DescribeSpringDamper() *fmu.ModelDescription {
	b := binding.NewDescription(SpringDamperID, "Point mass hanging from a 3-D spring-damper anchored at the origin").
		Experiment(10, 0.01).
		Parameter("mass", DefaultMass, "kg", "Mass of body1").
		Parameter("c", DefaultStiffness, "N/m", "Spring constant").
		Parameter("d", DefaultDamping, "N.s/m", "Damping constant").
		Parameter("s_unstretched", DefaultRestLen, "m", "Unstretched spring length").
		Parameter("g", DefaultGravity, "m/s2", "Gravity acceleration along -y").
		State("body1.r_0[1]", 0.3, "m", "Position of body1 along x").
		State("body1.r_0[2]", -0.8, "m", "Position of body1 along y").
		State("body1.r_0[3]", 0.2, "m", "Position of body1 along z").
		State("body1.v_0[1]", 0, "m/s", "Velocity of body1 along x").
		State("body1.v_0[2]", 0, "m/s", "Velocity of body1 along y").
		State("body1.v_0[3]", 0, "m/s", "Velocity of body1 along z").
		Local("spring.s", "m", "Spring length").
		Local("spring.f", "N", "Spring force, positive when stretched").
		Output("energy", "J", "Total mechanical energy")
	return b.Build()
}

// SpringDamper state: position (3) then velocity (3) of body1.
type SpringDamper struct {
	*binding.Base

	Mass      float64
	Stiffness float64
	Damping   float64
	RestLen   float64
	Gravity   float64
}

func NewSpringDamper(md *fmu.ModelDescription) (binding.Instance, error) {
	return &SpringDamper{Base: binding.NewBase(md)}, nil
}

func (s *SpringDamper) StateDim() int { return 6 }

func (s *SpringDamper) Initialize(t0 float64) (sim.State, error) {
	if err := s.Positive("mass"); err != nil {
		return nil, err
	}
	if err := s.NonNegative("c", "d", "s_unstretched", "g"); err != nil {
		return nil, err
	}
	if err := s.Enter(); err != nil {
		return nil, err
	}
	s.Mass = s.Float("mass")
	s.Stiffness = s.Float("c")
	s.Damping = s.Float("d")
	s.RestLen = s.Float("s_unstretched")
	s.Gravity = s.Float("g")

	x0 := make(sim.State, 6)
	for i := 0; i < 3; i++ {
		x0[i] = s.Float(bodyPosition[i])
		x0[3+i] = s.Float(bodyVelocity[i])
	}
	if !x0.IsValid() {
		return nil, fmt.Errorf("%w: initial position or velocity is not finite", binding.ErrInvalidParameter)
	}
	return x0, nil
}

// spring returns the spring length and the force it exerts along its axis.
func (s *SpringDamper) spring(x sim.State) (float64, float64) {
	length := hypot3(x[0], x[1], x[2])
	if length < 1e-12 {
		return length, 0
	}
	rate := (x[0]*x[3] + x[1]*x[4] + x[2]*x[5]) / length
	return length, s.Stiffness*(length-s.RestLen) + s.Damping*rate
}

func (s *SpringDamper) Derivative(x sim.State, t float64) (sim.State, error) {
	if err := checkState(s.Base, x, 6); err != nil {
		return nil, err
	}
	length, force := s.spring(x)

	dx := make(sim.State, 6)
	copy(dx[:3], x[3:])
	if length >= 1e-12 {
		for i := 0; i < 3; i++ {
			dx[3+i] = -force * x[i] / length / s.Mass
		}
	}
	dx[4] -= s.Gravity
	return dx, nil
}

func (s *SpringDamper) Energy(x sim.State) float64 {
	length := hypot3(x[0], x[1], x[2])
	v2 := x[3]*x[3] + x[4]*x[4] + x[5]*x[5]
	stretch := length - s.RestLen
	return 0.5*s.Mass*v2 + 0.5*s.Stiffness*stretch*stretch + s.Mass*s.Gravity*x[1]
}

func (s *SpringDamper) Real(name string, t float64, x sim.State) (float64, error) {
	if err := checkState(s.Base, x, 6); err != nil {
		return 0, err
	}
	if i, ok := positionIndex(name); ok {
		return x[i], nil
	}
	for i, n := range bodyVelocity {
		if n == name {
			return x[3+i], nil
		}
	}
	switch name {
	case "spring.s":
		length, _ := s.spring(x)
		return length, nil
	case "spring.f":
		_, force := s.spring(x)
		return force, nil
	case "energy":
		return s.Energy(x), nil
	}
	return parameter(s.Base, name)
}

func (s *SpringDamper) Terminate() error { return nil }
