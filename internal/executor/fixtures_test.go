package executor_test

import (
	"math"
	"path/filepath"
	"sync/atomic"
	"time"

	. "github.com/onsi/gomega"

	"github.com/san-kum/fmusim/internal/binding"
	"github.com/san-kum/fmusim/internal/fmu"
	"github.com/san-kum/fmusim/internal/models"
	"github.com/san-kum/fmusim/internal/sim"
)

// writeFMU exports md as an archive under dir.
func writeFMU(dir string, md *fmu.ModelDescription) string {
	p := filepath.Join(dir, md.ModelIdentifier+".fmu")
	Expect(fmu.WriteArchive(p, md)).To(Succeed())
	return p
}

// probe is a test binding whose misbehaviour is chosen by its mode parameter.
type probe struct {
	*binding.Base
	mode   float64
	active *int32
	peak   *int32
}

const (
	probeHealthy = iota
	probePanics
	probeDiverges
	probeSlow
)

func describeProbe(id string, single bool) *fmu.ModelDescription {
	b := binding.NewDescription(id, "test probe").
		Experiment(1, 0.1).
		Parameter("mode", probeHealthy, "", "behaviour selector").
		State("body1.r_0[1]", 1, "m", "").
		Output("body1.r_0[2]", "m", "").
		Output("body1.r_0[3]", "m", "")
	if single {
		b.SingleInstance()
	}
	return b.Build()
}

func probeRegistry(active, peak *int32) *binding.Registry {
	reg := models.NewRegistry()
	for _, m := range []struct {
		id     string
		single bool
	}{{"Probe", false}, {"SingleProbe", true}} {
		m := m
		Expect(reg.Register(binding.Model{
			Identifier: m.id,
			Describe:   func() *fmu.ModelDescription { return describeProbe(m.id, m.single) },
			New: func(md *fmu.ModelDescription) (binding.Instance, error) {
				return &probe{Base: binding.NewBase(md), active: active, peak: peak}, nil
			},
		})).To(Succeed())
	}
	return reg
}

func (p *probe) StateDim() int { return 1 }

func (p *probe) Initialize(float64) (sim.State, error) {
	if err := p.Enter(); err != nil {
		return nil, err
	}
	p.mode = p.Float("mode")
	n := atomic.AddInt32(p.active, 1)
	for {
		old := atomic.LoadInt32(p.peak)
		if n <= old || atomic.CompareAndSwapInt32(p.peak, old, n) {
			break
		}
	}
	return sim.State{p.Float("body1.r_0[1]")}, nil
}

func (p *probe) Derivative(x sim.State, t float64) (sim.State, error) {
	switch p.mode {
	case probePanics:
		if t > 0.5 {
			panic("probe exploded")
		}
	case probeDiverges:
		if t > 0.5 {
			return sim.State{math.Inf(1)}, nil
		}
	case probeSlow:
		time.Sleep(time.Millisecond)
	}
	return sim.State{-x[0]}, nil
}

func (p *probe) Real(name string, t float64, x sim.State) (float64, error) {
	switch name {
	case "body1.r_0[1]":
		return x[0], nil
	case "body1.r_0[2]":
		return 2 * x[0], nil
	case "body1.r_0[3]":
		return t, nil
	}
	return 0, binding.ErrUnknownVariable
}

func (p *probe) Terminate() error {
	atomic.AddInt32(p.active, -1)
	return nil
}
