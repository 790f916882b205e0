// Package sweep runs a model over a cartesian grid of start values. Each grid
// point is an independent executor run; up to Workers runs proceed at once.
package sweep

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/fmusim/internal/executor"
)

// Runner is satisfied by *executor.Executor.
type Runner interface {
	Run(ctx context.Context, path string, req executor.Request) (*executor.Trajectory, error)
}

type Grid struct {
	names  []string
	ranges [][]float64
}

func NewGrid(names []string, ranges [][]float64) (*Grid, error) {
	if len(names) != len(ranges) {
		return nil, fmt.Errorf("sweep: %d names for %d ranges", len(names), len(ranges))
	}
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		if seen[name] {
			return nil, fmt.Errorf("sweep: duplicate variable %q", name)
		}
		seen[name] = true
		if len(ranges[i]) == 0 {
			return nil, fmt.Errorf("sweep: no values for %q", name)
		}
	}
	return &Grid{names: names, ranges: ranges}, nil
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}
	return out
}

func (g *Grid) Size() int {
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Points enumerates the grid with the last variable varying fastest.
func (g *Grid) Points() []map[string]float64 {
	points := make([]map[string]float64, 0, g.Size())
	g.collect(0, make(map[string]float64, len(g.names)), &points)
	return points
}

func (g *Grid) collect(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.names) {
		p := make(map[string]float64, len(current))
		for k, v := range current {
			p[k] = v
		}
		*out = append(*out, p)
		return
	}
	name := g.names[depth]
	for _, val := range g.ranges[depth] {
		current[name] = val
		g.collect(depth+1, current, out)
	}
	delete(current, name)
}

// Outcome is the result of one grid point. Err holds the run failure, if any;
// a failed point does not stop the sweep.
type Outcome struct {
	Index      int
	Values     map[string]float64
	Trajectory *executor.Trajectory
	Err        error
}

type Options struct {
	// Workers bounds concurrent runs; zero means GOMAXPROCS.
	Workers int
}

// Run executes every grid point against path. Grid values override base's
// start values of the same name. Outcomes are returned in grid order. The
// only error returned is ctx's, when the sweep is cancelled.
func (g *Grid) Run(ctx context.Context, r Runner, path string, base executor.Request, opts Options) ([]Outcome, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	points := g.Points()
	outcomes := make([]Outcome, len(points))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, p := range points {
		if gctx.Err() != nil {
			break
		}
		i, p := i, p
		eg.Go(func() error {
			req := base
			req.StartValues = make(map[string]any, len(base.StartValues)+len(p))
			for k, v := range base.StartValues {
				req.StartValues[k] = v
			}
			for k, v := range p {
				req.StartValues[k] = v
			}
			traj, err := r.Run(gctx, path, req)
			outcomes[i] = Outcome{Index: i, Values: p, Trajectory: traj, Err: err}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, ctx.Err()
}

// Best returns the successful outcome with the lowest score.
func Best(outcomes []Outcome, score func(*executor.Trajectory) float64) (Outcome, float64, bool) {
	best := math.Inf(1)
	var out Outcome
	found := false
	for _, o := range outcomes {
		if o.Err != nil || o.Trajectory == nil {
			continue
		}
		if v := score(o.Trajectory); v < best {
			best, out, found = v, o, true
		}
	}
	return out, best, found
}
