package metrics

import (
	"math"

	"github.com/san-kum/fmusim/internal/executor"
)

func dist(a, b executor.Sample) float64 {
	return math.Sqrt((a.X-b.X)*(a.X-b.X) + (a.Y-b.Y)*(a.Y-b.Y) + (a.Z-b.Z)*(a.Z-b.Z))
}

// MaxDisplacement is the largest distance of body1 from the origin.
type MaxDisplacement struct {
	max float64
}

func NewMaxDisplacement() *MaxDisplacement { return &MaxDisplacement{} }

func (m *MaxDisplacement) Name() string { return "max_displacement" }

func (m *MaxDisplacement) Observe(s executor.Sample) {
	m.max = math.Max(m.max, dist(s, executor.Sample{}))
}

func (m *MaxDisplacement) Value() float64 { return m.max }
func (m *MaxDisplacement) Reset()         { m.max = 0 }

// PathLength sums the straight-line distance between consecutive samples.
type PathLength struct {
	prev    executor.Sample
	total   float64
	samples int
}

func NewPathLength() *PathLength { return &PathLength{} }

func (p *PathLength) Name() string { return "path_length" }

func (p *PathLength) Observe(s executor.Sample) {
	if p.samples > 0 {
		p.total += dist(p.prev, s)
	}
	p.prev = s
	p.samples++
}

func (p *PathLength) Value() float64 { return p.total }

func (p *PathLength) Reset() {
	p.prev = executor.Sample{}
	p.total = 0
	p.samples = 0
}

// FinalSpeed estimates the speed at the last sample by a backward
// difference over the last two samples.
type FinalSpeed struct {
	prev, last executor.Sample
	samples    int
}

func NewFinalSpeed() *FinalSpeed { return &FinalSpeed{} }

func (f *FinalSpeed) Name() string { return "final_speed" }

func (f *FinalSpeed) Observe(s executor.Sample) {
	f.prev, f.last = f.last, s
	f.samples++
}

func (f *FinalSpeed) Value() float64 {
	if f.samples < 2 {
		return 0
	}
	dt := f.last.Time - f.prev.Time
	if dt <= 0 {
		return 0
	}
	return dist(f.prev, f.last) / dt
}

func (f *FinalSpeed) Reset() {
	f.prev, f.last = executor.Sample{}, executor.Sample{}
	f.samples = 0
}

// Extent is the diagonal of the axis-aligned box enclosing every sample.
type Extent struct {
	lo, hi  executor.Sample
	samples int
}

func NewExtent() *Extent { return &Extent{} }

func (e *Extent) Name() string { return "extent" }

func (e *Extent) Observe(s executor.Sample) {
	if e.samples == 0 {
		e.lo, e.hi = s, s
	} else {
		e.lo.X, e.hi.X = math.Min(e.lo.X, s.X), math.Max(e.hi.X, s.X)
		e.lo.Y, e.hi.Y = math.Min(e.lo.Y, s.Y), math.Max(e.hi.Y, s.Y)
		e.lo.Z, e.hi.Z = math.Min(e.lo.Z, s.Z), math.Max(e.hi.Z, s.Z)
	}
	e.samples++
}

// Box returns the lower and upper corners.
func (e *Extent) Box() (lo, hi [3]float64) {
	return [3]float64{e.lo.X, e.lo.Y, e.lo.Z}, [3]float64{e.hi.X, e.hi.Y, e.hi.Z}
}

func (e *Extent) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	lo, hi := e.lo, e.hi
	lo.Time, hi.Time = 0, 0
	return dist(lo, hi)
}

func (e *Extent) Reset() {
	e.lo, e.hi = executor.Sample{}, executor.Sample{}
	e.samples = 0
}
