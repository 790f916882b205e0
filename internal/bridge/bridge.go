// Package bridge adapts the introspector and the executor to the tagged
// envelopes a frontend consumes. Nothing here returns an error or panics:
// every outcome is an envelope with a success flag.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/san-kum/fmusim/internal/executor"
	"github.com/san-kum/fmusim/internal/introspect"
	"github.com/san-kum/fmusim/internal/logging"
	"github.com/san-kum/fmusim/internal/observability"
	"github.com/san-kum/fmusim/internal/simerr"
)

type VariablesEnvelope struct {
	Success   bool                  `json:"success"`
	ModelName string                `json:"modelName,omitempty"`
	Variables []introspect.Variable `json:"variables,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// MarshalJSON always carries the variables key on success, as an empty list
// when the model has nothing configurable.
func (e VariablesEnvelope) MarshalJSON() ([]byte, error) {
	type plain VariablesEnvelope
	if !e.Success {
		return json.Marshal(plain(e))
	}
	vars := e.Variables
	if vars == nil {
		vars = []introspect.Variable{}
	}
	return json.Marshal(struct {
		plain
		Variables []introspect.Variable `json:"variables"`
	}{plain(e), vars})
}

type SimulationEnvelope struct {
	Success   bool      `json:"success"`
	NumSteps  int       `json:"numSteps,omitempty"`
	Time      []float64 `json:"time,omitempty"`
	X         []float64 `json:"x,omitempty"`
	Y         []float64 `json:"y,omitempty"`
	Z         []float64 `json:"z,omitempty"`
	Error     string    `json:"error,omitempty"`
	ErrorKind string    `json:"errorKind,omitempty"`
}

type Bridge struct {
	exec      *executor.Executor
	log       logging.Logger
	collector *observability.RunCollector
}

type Option func(*Bridge)

func WithLogger(l logging.Logger) Option { return func(b *Bridge) { b.log = l } }

// WithCollector counts introspection outcomes; run outcomes are counted by
// the executor's own collector.
func WithCollector(c *observability.RunCollector) Option {
	return func(b *Bridge) { b.collector = c }
}

func New(exec *executor.Executor, opts ...Option) *Bridge {
	b := &Bridge{exec: exec, log: logging.Noop()}
	for _, opt := range opts {
		opt(b)
	}
	if b.exec == nil {
		b.exec = executor.New(executor.WithLogger(b.log))
	}
	return b
}

// ListConfigurableVariables wraps introspect.ListConfigurableVariables.
func (b *Bridge) ListConfigurableVariables(path string) (env VariablesEnvelope) {
	defer func() {
		if r := recover(); r != nil {
			env = VariablesEnvelope{Error: fmt.Sprintf("internal error: %v", r)}
			b.collector.ObserveIntrospection("panic")
		}
	}()

	res, err := introspect.ListConfigurableVariables(path)
	if err != nil {
		b.collector.ObserveIntrospection(simerr.KindOf(err).String())
		b.log.Warn(context.Background(), "introspection failed",
			logging.String("fmu", path),
			logging.Err(err),
		)
		return VariablesEnvelope{Error: err.Error()}
	}
	b.collector.ObserveIntrospection("success")
	vars := res.Variables
	if vars == nil {
		vars = []introspect.Variable{}
	}
	return VariablesEnvelope{
		Success:   true,
		ModelName: res.ModelName,
		Variables: vars,
	}
}

// Simulate runs the model at path. A nil stopTime selects the default stop
// time and a nil stepSize leaves the output density to the solver. The
// solver name is parsed with executor.ParseSolver; an unknown name is
// rejected before the model is touched.
func (b *Bridge) Simulate(ctx context.Context, path string, startValues map[string]any, stopTime, stepSize *float64, solver string) (env SimulationEnvelope) {
	defer func() {
		if r := recover(); r != nil {
			env = failure(simerr.Integration("run", path, fmt.Errorf("panic: %v", r)))
		}
	}()

	s, err := executor.ParseSolver(solver)
	if err != nil {
		return failure(simerr.ParameterBinding("run", path, "solver", err))
	}
	req := executor.Request{
		StartValues: startValues,
		Solver:      s,
	}
	if stopTime != nil {
		req.StopTime = *stopTime
	}
	if stepSize != nil {
		req.StepSize = *stepSize
	}

	traj, err := b.exec.Run(ctx, path, req)
	if err != nil {
		return failure(err)
	}

	t, x, y, z := traj.Columns()
	return SimulationEnvelope{
		Success:  true,
		NumSteps: traj.Len(),
		Time:     t,
		X:        x,
		Y:        y,
		Z:        z,
	}
}

func failure(err error) SimulationEnvelope {
	return SimulationEnvelope{
		Error:     err.Error(),
		ErrorKind: simerr.KindOf(err).String(),
	}
}
