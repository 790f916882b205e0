package sweep

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/san-kum/fmusim/internal/executor"
	"github.com/san-kum/fmusim/internal/fmu"
	"github.com/san-kum/fmusim/internal/metrics"
	"github.com/san-kum/fmusim/internal/models"
	"github.com/san-kum/fmusim/internal/simerr"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewGridValidation(t *testing.T) {
	tests := []struct {
		name   string
		names  []string
		ranges [][]float64
	}{
		{"length mismatch", []string{"a", "b"}, [][]float64{{1}}},
		{"duplicate", []string{"a", "a"}, [][]float64{{1}, {2}}},
		{"empty range", []string{"a"}, [][]float64{{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewGrid(tt.names, tt.ranges); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPoints(t *testing.T) {
	g, err := NewGrid([]string{"mass", "c"}, [][]float64{{1, 2}, {10, 20, 30}})
	if err != nil {
		t.Fatal(err)
	}
	if g.Size() != 6 {
		t.Fatalf("size = %d", g.Size())
	}
	want := []map[string]float64{
		{"mass": 1, "c": 10}, {"mass": 1, "c": 20}, {"mass": 1, "c": 30},
		{"mass": 2, "c": 10}, {"mass": 2, "c": 20}, {"mass": 2, "c": 30},
	}
	if diff := cmp.Diff(want, g.Points()); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}
}

func TestLinspace(t *testing.T) {
	if diff := cmp.Diff([]float64{0, 0.25, 0.5, 0.75, 1}, Linspace(0, 1, 5)); diff != "" {
		t.Error(diff)
	}
	if got := Linspace(3, 9, 1); len(got) != 1 || got[0] != 3 {
		t.Errorf("single point = %v", got)
	}
}

type countingRunner struct {
	active, peak int32
	seen         chan map[string]any
}

func (c *countingRunner) Run(ctx context.Context, path string, req executor.Request) (*executor.Trajectory, error) {
	n := atomic.AddInt32(&c.active, 1)
	defer atomic.AddInt32(&c.active, -1)
	for {
		old := atomic.LoadInt32(&c.peak)
		if n <= old || atomic.CompareAndSwapInt32(&c.peak, old, n) {
			break
		}
	}
	c.seen <- req.StartValues
	time.Sleep(5 * time.Millisecond)
	if req.StartValues["mass"] == 0.0 {
		return nil, simerr.ParameterBinding("run", path, "mass", errors.New("must be positive"))
	}
	return &executor.Trajectory{Samples: []executor.Sample{{Time: 0, X: req.StartValues["mass"].(float64)}}}, nil
}

func TestRunBoundsWorkers(t *testing.T) {
	g, err := NewGrid([]string{"mass"}, [][]float64{Linspace(0, 7, 8)})
	if err != nil {
		t.Fatal(err)
	}
	r := &countingRunner{seen: make(chan map[string]any, 8)}
	base := executor.Request{StartValues: map[string]any{"c": 5, "mass": 99}}

	outcomes, err := g.Run(context.Background(), r, "model.fmu", base, Options{Workers: 2})
	if err != nil {
		t.Fatal(err)
	}
	close(r.seen)

	if r.peak > 2 {
		t.Errorf("peak concurrency %d exceeds 2 workers", r.peak)
	}
	for sv := range r.seen {
		if sv["c"] != 5 {
			t.Errorf("base start value lost: %v", sv)
		}
	}
	if base.StartValues["mass"] != 99 {
		t.Error("base request mutated")
	}

	if !errors.Is(outcomes[0].Err, simerr.ErrParameterBinding) {
		t.Errorf("outcome 0 err = %v", outcomes[0].Err)
	}
	for i, o := range outcomes[1:] {
		if o.Err != nil || o.Index != i+1 {
			t.Errorf("outcome %d = %+v", i+1, o)
		}
	}

	best, score, ok := Best(outcomes, func(tr *executor.Trajectory) float64 { return tr.Samples[0].X })
	if !ok || score != 1 || best.Values["mass"] != 1 {
		t.Errorf("best = %+v score %g ok %v", best, score, ok)
	}
}

func TestRunCancelled(t *testing.T) {
	g, _ := NewGrid([]string{"mass"}, [][]float64{Linspace(1, 4, 4)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &countingRunner{seen: make(chan map[string]any, 4)}
	_, err := g.Run(ctx, r, "model.fmu", executor.Request{}, Options{Workers: 1})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRunSpringDamper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "SpringDamperSystem.fmu")
	if err := fmu.WriteArchive(path, models.DescribeSpringDamper()); err != nil {
		t.Fatal(err)
	}

	g, err := NewGrid([]string{"d"}, [][]float64{{0.5, 5}})
	if err != nil {
		t.Fatal(err)
	}
	base := executor.Request{StopTime: 5, StepSize: 0.05}
	outcomes, err := g.Run(context.Background(), executor.New(), path, base, Options{})
	if err != nil {
		t.Fatal(err)
	}
	for _, o := range outcomes {
		if o.Err != nil {
			t.Fatalf("d=%g: %v", o.Values["d"], o.Err)
		}
	}

	// Heavier damping travels less.
	best, _, ok := Best(outcomes, func(tr *executor.Trajectory) float64 {
		return metrics.Evaluate(tr)["path_length"]
	})
	if !ok || best.Values["d"] != 5 {
		t.Errorf("shortest path at d=%v", best.Values["d"])
	}
}
