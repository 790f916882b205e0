package integrators

import (
	"testing"

	"github.com/san-kum/fmusim/internal/sim"
)

func BenchmarkEuler(b *testing.B) {
	dyn := &oscillator{}
	for i := 0; i < b.N; i++ {
		e := NewEuler(0.01)
		if err := e.Reset(dyn, 0, sim.State{1.0, 0.0}); err != nil {
			b.Fatal(err)
		}
		for t := 0.0; t < 10; {
			st, err := e.Advance(10)
			if err != nil {
				b.Fatal(err)
			}
			t = st.T
		}
	}
}

func BenchmarkBDF(b *testing.B) {
	dyn := &stiffTracker{k: 1000}
	for i := 0; i < b.N; i++ {
		s := NewBDF(DefaultBDFOptions())
		if err := s.Reset(dyn, 0, sim.State{1.0}); err != nil {
			b.Fatal(err)
		}
		for t := 0.0; t < 10; {
			st, err := s.Advance(10)
			if err != nil {
				b.Fatal(err)
			}
			t = st.T
		}
	}
}
