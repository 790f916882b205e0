package models

import (
	"testing"

	"github.com/san-kum/fmusim/internal/binding"
	"github.com/san-kum/fmusim/internal/fmu"
	"github.com/san-kum/fmusim/internal/sim"
)

func instantiate(t *testing.T, id string, overrides map[string]fmu.Value) (binding.Instance, sim.State) {
	t.Helper()
	reg := NewRegistry()
	md, err := reg.Describe(id)
	if err != nil {
		t.Fatal(err)
	}
	inst, err := reg.Instantiate(md)
	if err != nil {
		t.Fatal(err)
	}
	for name, v := range overrides {
		if err := inst.Set(name, v); err != nil {
			t.Fatalf("set %s: %v", name, err)
		}
	}
	x0, err := inst.Initialize(0)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return inst, x0
}

func derivative(t *testing.T, inst binding.Instance, x sim.State) sim.State {
	t.Helper()
	dx, err := inst.Derivative(x, 0)
	if err != nil {
		t.Fatal(err)
	}
	return dx
}
