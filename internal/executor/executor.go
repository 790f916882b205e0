// Package executor runs a model from time 0 to a stop time with one of two
// integration strategies and extracts the body1 position trajectory. Every
// run loads a fresh model instance; nothing is cached between runs.
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/san-kum/fmusim/internal/binding"
	"github.com/san-kum/fmusim/internal/fmu"
	"github.com/san-kum/fmusim/internal/integrators"
	"github.com/san-kum/fmusim/internal/logging"
	"github.com/san-kum/fmusim/internal/models"
	"github.com/san-kum/fmusim/internal/observability"
	"github.com/san-kum/fmusim/internal/sim"
	"github.com/san-kum/fmusim/internal/simerr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const opRun = "run"

// DefaultOutputs are the model variables sampled into x, y and z.
var DefaultOutputs = [3]string{"body1.r_0[1]", "body1.r_0[2]", "body1.r_0[3]"}

type Executor struct {
	registry  *binding.Registry
	log       logging.Logger
	collector *observability.RunCollector
	tracer    trace.Tracer
	outputs   [3]string
	bdf       integrators.BDFOptions
	tolSet    bool
	maxSteps  int
	locks     *pathLocks
}

type Option func(*Executor)

func WithRegistry(r *binding.Registry) Option { return func(e *Executor) { e.registry = r } }
func WithLogger(l logging.Logger) Option      { return func(e *Executor) { e.log = l } }
func WithTracer(t trace.Tracer) Option        { return func(e *Executor) { e.tracer = t } }
func WithMaxSteps(n int) Option               { return func(e *Executor) { e.maxSteps = n } }

func WithCollector(c *observability.RunCollector) Option {
	return func(e *Executor) { e.collector = c }
}

func WithOutputs(x, y, z string) Option {
	return func(e *Executor) { e.outputs = [3]string{x, y, z} }
}

// WithTolerances overrides the adaptive solver tolerances, including any
// tolerance the model's default experiment suggests.
func WithTolerances(rtol, atol float64) Option {
	return func(e *Executor) {
		e.bdf.RelTol, e.bdf.AbsTol = rtol, atol
		e.tolSet = true
	}
}

func New(opts ...Option) *Executor {
	e := &Executor{
		log:      logging.Noop(),
		outputs:  DefaultOutputs,
		bdf:      integrators.DefaultBDFOptions(),
		maxSteps: sim.DefaultConfig().MaxSteps,
		locks:    newPathLocks(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = models.NewRegistry()
	}
	if e.log == nil {
		e.log = logging.Noop()
	}
	if e.tracer == nil {
		e.tracer = observability.Tracer()
	}
	return e
}

func (e *Executor) Registry() *binding.Registry { return e.registry }

// Run simulates the model at path. All failures come back as *simerr.Error;
// panics raised by a binding or solver are recovered into IntegrationError.
func (e *Executor) Run(ctx context.Context, path string, req Request) (*Trajectory, error) {
	ctx, log := logging.WithRunLogger(ctx, e.log)
	res := req.Resolve()

	ctx, span := e.tracer.Start(ctx, "executor.Run", trace.WithAttributes(
		attribute.String("fmu.path", path),
		attribute.String("run.id", logging.RunIDFromContext(ctx)),
		attribute.String("solver", res.Solver.String()),
		attribute.Float64("stop_time", res.StopTime),
		attribute.Float64("step_size", res.StepSize),
		attribute.Int("start_values", len(res.StartValues)),
	))
	defer span.End()

	done := e.collector.Start(res.Solver.String())
	begin := time.Now()

	traj, err := e.run(ctx, log, path, res)
	if err != nil {
		kind := simerr.KindOf(err)
		done(kind.String(), 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind.String())
		log.Error(ctx, "simulation failed",
			logging.String("fmu", path),
			logging.String("kind", kind.String()),
			logging.Err(err),
		)
		return nil, err
	}

	done("success", traj.Len())
	span.SetAttributes(attribute.Int("samples", traj.Len()), attribute.Int("steps", traj.Steps))
	log.Info(ctx, "simulation completed",
		logging.String("fmu", path),
		logging.Int("samples", traj.Len()),
		logging.Int("steps", traj.Steps),
		logging.Duration("elapsed", time.Since(begin)),
	)
	return traj, nil
}

func (e *Executor) run(ctx context.Context, log logging.Logger, path string, res Resolved) (traj *Trajectory, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Debug(ctx, "recovered panic", logging.String("stack", string(debug.Stack())))
			traj, err = nil, simerr.Integration(opRun, path, fmt.Errorf("panic: %v", r))
		}
	}()

	step := "adaptive"
	if !res.Adaptive() {
		step = fmt.Sprintf("%g", res.StepSize)
	}
	overrides := make(map[string]string, len(res.StartValues))
	for k, v := range res.StartValues {
		overrides[k] = v.String()
	}
	log.Info(ctx, "simulation starting",
		logging.String("fmu", path),
		logging.Any("start_values", overrides),
		logging.Float("stop_time", res.StopTime),
		logging.String("step_size", step),
		logging.String("solver", res.Solver.String()),
	)

	md, err := fmu.ReadModelDescription(path)
	if err != nil {
		return nil, simerr.ModelLoad(opRun, path, err)
	}
	for _, name := range e.outputs {
		if _, ok := md.Variable(name); !ok {
			return nil, simerr.ModelLoad(opRun, path, fmt.Errorf("model %s does not declare output %q", md.ModelName, name))
		}
	}

	if md.CanBeInstantiatedOnlyOncePerProcess {
		unlock := e.locks.lock(path)
		defer unlock()
	}

	stepper := e.stepper(md, res)
	log.Info(ctx, "model loaded",
		logging.String("model", md.ModelName),
		logging.String("integrator", stepper.Name()),
	)

	inst, err := e.registry.Instantiate(md)
	if err != nil {
		return nil, simerr.ModelLoad(opRun, path, err)
	}
	defer func() {
		if terr := inst.Terminate(); terr != nil {
			log.Warn(ctx, "terminate failed", logging.Err(terr))
		}
	}()

	for _, name := range res.Names() {
		if err := inst.Set(name, res.StartValues[name]); err != nil {
			return nil, simerr.ParameterBinding(opRun, path, name, err)
		}
	}

	x0, err := inst.Initialize(0)
	if err != nil {
		if errors.Is(err, binding.ErrInvalidParameter) || errors.Is(err, binding.ErrTypeMismatch) {
			return nil, simerr.ParameterBinding(opRun, path, "", err)
		}
		return nil, simerr.Integration(opRun, path, fmt.Errorf("initialize: %w", err))
	}

	cfg := sim.Config{
		StopTime:       res.StopTime,
		OutputInterval: res.StepSize,
		MaxSteps:       e.maxSteps,
		ValidateState:  true,
	}
	result, err := sim.New(inst, stepper).Run(ctx, x0, cfg)
	if err != nil {
		ie := simerr.Integration(opRun, path, err)
		var se *sim.SimulationError
		if errors.As(err, &se) {
			ie.Step, ie.Time = se.Step, se.Time
		}
		return nil, ie
	}

	traj = &Trajectory{
		Model:   md.ModelName,
		Solver:  res.Solver,
		Steps:   result.StepsTaken,
		Samples: make([]Sample, 0, result.Len()),
	}
	for i, t := range result.Times {
		var v [3]float64
		for j, name := range e.outputs {
			if v[j], err = inst.Real(name, t, result.States[i]); err != nil {
				return nil, simerr.Integration(opRun, path, fmt.Errorf("output %s at t=%g: %w", name, t, err))
			}
		}
		traj.Samples = append(traj.Samples, Sample{Time: t, X: v[0], Y: v[1], Z: v[2]})
	}
	if traj.Len() == 0 {
		return nil, simerr.EmptyResult(opRun, path, errors.New("simulation produced no samples"))
	}

	if s, ok := stepper.(interface{ Stats() integrators.Stats }); ok {
		st := s.Stats()
		log.Debug(ctx, "integrator statistics",
			logging.Int("steps", st.Steps),
			logging.Int("rejected", st.Rejected),
			logging.Int("evaluations", st.Evaluations),
			logging.Int("jacobians", st.Jacobians),
			logging.Int("max_order", st.MaxOrder),
		)
	}
	return traj, nil
}

// stepper picks the integrator. Euler steps at the requested interval, else
// the model's default experiment step, else stopTime/500.
func (e *Executor) stepper(md *fmu.ModelDescription, res Resolved) sim.Stepper {
	if res.Solver == FixedStepEuler {
		h := res.StepSize
		if h <= 0 {
			h = md.DefaultExperiment.StepSize
		}
		if h <= 0 {
			h = res.StopTime / 500
		}
		return integrators.NewEuler(h)
	}

	opts := e.bdf
	if !e.tolSet && md.DefaultExperiment.Tolerance > 0 {
		opts.RelTol = md.DefaultExperiment.Tolerance
	}
	return integrators.NewBDF(opts)
}
