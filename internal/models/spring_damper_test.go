package models

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/fmusim/internal/binding"
	"github.com/san-kum/fmusim/internal/fmu"
	"github.com/san-kum/fmusim/internal/sim"
)

func TestSpringDamperEquilibrium(t *testing.T) {
	sd, _ := instantiate(t, SpringDamperID, nil)
	s := sd.(*SpringDamper)

	// Hanging straight down at rest length plus static sag.
	sag := s.RestLen + s.Mass*s.Gravity/s.Stiffness
	dx := derivative(t, sd, sim.State{0, -sag, 0, 0, 0, 0})

	for i, v := range dx {
		if math.Abs(v) > 1e-9 {
			t.Errorf("dx[%d] = %g, want 0", i, v)
		}
	}
}

func TestSpringDamperDisplaced(t *testing.T) {
	sd, _ := instantiate(t, SpringDamperID, map[string]fmu.Value{
		"g":             fmu.RealValue(0),
		"d":             fmu.RealValue(0),
		"s_unstretched": fmu.RealValue(0),
	})

	dx := derivative(t, sd, sim.State{1, 0, 0, 0, 0, 0})

	expectedAcc := -DefaultStiffness * 1.0 / DefaultMass
	if math.Abs(dx[3]-expectedAcc) > 1e-9 {
		t.Errorf("expected acceleration %f, got %f", expectedAcc, dx[3])
	}
	if dx[4] != 0 || dx[5] != 0 {
		t.Errorf("off-axis acceleration: %v", dx[3:])
	}
}

func TestSpringDamperStartValues(t *testing.T) {
	sd, x0 := instantiate(t, SpringDamperID, map[string]fmu.Value{
		"mass":         fmu.StringValue("2.5"),
		"body1.r_0[2]": fmu.RealValue(-1.5),
	})

	if got := sd.(*SpringDamper).Mass; got != 2.5 {
		t.Errorf("mass = %v, want 2.5", got)
	}
	if x0[1] != -1.5 {
		t.Errorf("x0[1] = %v, want -1.5", x0[1])
	}
	if x0[0] != 0.3 || x0[2] != 0.2 {
		t.Errorf("untouched start values changed: %v", x0)
	}
}

func TestSpringDamperChannels(t *testing.T) {
	sd, x0 := instantiate(t, SpringDamperID, nil)

	for i, name := range bodyPosition {
		got, err := sd.Real(name, 0, x0)
		if err != nil {
			t.Fatal(err)
		}
		if got != x0[i] {
			t.Errorf("%s = %v, want %v", name, got, x0[i])
		}
	}

	length, err := sd.Real("spring.s", 0, x0)
	if err != nil {
		t.Fatal(err)
	}
	if want := math.Sqrt(0.3*0.3 + 0.8*0.8 + 0.2*0.2); math.Abs(length-want) > 1e-12 {
		t.Errorf("spring.s = %v, want %v", length, want)
	}

	mass, err := sd.Real("mass", 0, x0)
	if err != nil || mass != DefaultMass {
		t.Errorf("mass = %v, %v", mass, err)
	}

	if _, err := sd.Real("nope", 0, x0); !errors.Is(err, binding.ErrUnknownVariable) {
		t.Errorf("unknown channel: err = %v", err)
	}
}

func TestSpringDamperInvalidParameters(t *testing.T) {
	tests := []struct {
		name  string
		param string
		value fmu.Value
	}{
		{"zero mass", "mass", fmu.RealValue(0)},
		{"negative mass", "mass", fmu.RealValue(-1)},
		{"negative stiffness", "c", fmu.RealValue(-5)},
		{"nan damping", "d", fmu.RealValue(math.NaN())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := NewSpringDamper(DescribeSpringDamper())
			if err != nil {
				t.Fatal(err)
			}
			if err := inst.Set(tt.param, tt.value); err != nil {
				t.Fatal(err)
			}
			if _, err := inst.Initialize(0); !errors.Is(err, binding.ErrInvalidParameter) {
				t.Errorf("err = %v, want ErrInvalidParameter", err)
			}
		})
	}
}

func TestSpringDamperNotInitialized(t *testing.T) {
	inst, err := NewSpringDamper(DescribeSpringDamper())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := inst.Derivative(make(sim.State, 6), 0); !errors.Is(err, binding.ErrNotInitialized) {
		t.Errorf("err = %v, want ErrNotInitialized", err)
	}
}
