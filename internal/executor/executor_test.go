package executor_test

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/san-kum/fmusim/internal/executor"
	"github.com/san-kum/fmusim/internal/logging"
	"github.com/san-kum/fmusim/internal/models"
	"github.com/san-kum/fmusim/internal/observability"
	"github.com/san-kum/fmusim/internal/simerr"
)

func strictlyIncreasing(ts []float64) bool {
	for i := 1; i < len(ts); i++ {
		if !(ts[i] > ts[i-1]) {
			return false
		}
	}
	return true
}

var _ = Describe("Executor", func() {
	var (
		dir          string
		springPath   string
		pendulumPath string
		exec         *executor.Executor
		ctx          context.Context
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		springPath = writeFMU(dir, models.DescribeSpringDamper())
		pendulumPath = writeFMU(dir, models.DescribePendulum())
		exec = executor.New()
		ctx = context.Background()
	})

	Describe("adaptive runs", func() {
		It("runs the mass override scenario end to end", func() {
			traj, err := exec.Run(ctx, springPath, executor.Request{
				StartValues: map[string]any{"mass": "2.5"},
				StopTime:    10,
				Solver:      executor.AdaptiveImplicit,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(traj.Len()).To(BeNumerically(">", 0))
			Expect(traj.Samples[0].Time).To(BeNumerically("~", 0, 1e-9))
			Expect(traj.Samples[traj.Len()-1].Time).To(BeNumerically("~", 10, 1e-9))
			Expect(traj.Model).To(Equal("SpringDamperSystem"))
		})

		It("ends at the stop time with strictly increasing samples", func() {
			traj, err := exec.Run(ctx, springPath, executor.Request{StopTime: 5})
			Expect(err).NotTo(HaveOccurred())

			times := traj.Times()
			Expect(strictlyIncreasing(times)).To(BeTrue())
			Expect(times[len(times)-1]).To(BeNumerically("<=", 5.0))
			Expect(times[len(times)-1]).To(BeNumerically("~", 5.0, 1e-9))
		})

		It("reproduces identical trajectories", func() {
			req := executor.Request{StartValues: map[string]any{"c": 35}, StopTime: 3}
			a, err := exec.Run(ctx, springPath, req)
			Expect(err).NotTo(HaveOccurred())
			b, err := exec.Run(ctx, springPath, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(cmp.Diff(a, b)).To(BeEmpty())
		})

		It("samples on the requested output grid independently of the internal step", func() {
			traj, err := exec.Run(ctx, springPath, executor.Request{StopTime: 2, StepSize: 0.25})
			Expect(err).NotTo(HaveOccurred())
			Expect(traj.Len()).To(Equal(9))
			for i, s := range traj.Samples {
				Expect(s.Time).To(BeNumerically("~", float64(i)*0.25, 1e-12))
			}
		})

		It("applies the default stop time for non-positive requests", func() {
			for _, stop := range []float64{0, -1} {
				traj, err := exec.Run(ctx, pendulumPath, executor.Request{StopTime: stop, StepSize: 0.5})
				Expect(err).NotTo(HaveOccurred())
				Expect(traj.Samples[traj.Len()-1].Time).To(BeNumerically("~", executor.DefaultStopTime, 1e-9))
			}
		})
	})

	Describe("fixed-step runs", func() {
		req := executor.Request{StopTime: 1.0, StepSize: 0.1, Solver: executor.FixedStepEuler}

		It("produces floor(stop/step)+1 samples", func() {
			traj, err := exec.Run(ctx, springPath, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(traj.Len()).To(Equal(11))
			Expect(traj.Steps).To(Equal(10))
			Expect(traj.Samples[10].Time).To(Equal(1.0))
		})

		It("is byte-for-byte deterministic", func() {
			a, err := exec.Run(ctx, springPath, req)
			Expect(err).NotTo(HaveOccurred())
			b, err := exec.Run(ctx, springPath, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(cmp.Diff(a, b)).To(BeEmpty())
		})

		It("falls back to the model's default step without a step size", func() {
			traj, err := exec.Run(ctx, springPath, executor.Request{StopTime: 1, Solver: executor.FixedStepEuler})
			Expect(err).NotTo(HaveOccurred())
			Expect(traj.Len()).To(Equal(101))
		})

		It("binds the same channels as the adaptive solver", func() {
			euler, err := exec.Run(ctx, pendulumPath, executor.Request{StopTime: 1, StepSize: 0.5, Solver: executor.FixedStepEuler})
			Expect(err).NotTo(HaveOccurred())
			bdf, err := exec.Run(ctx, pendulumPath, executor.Request{StopTime: 1, StepSize: 0.5})
			Expect(err).NotTo(HaveOccurred())

			Expect(euler.Samples[0]).To(Equal(bdf.Samples[0]))
			Expect(euler.Samples[0].X).To(BeNumerically("~", math.Sin(0.5), 1e-12))
			Expect(euler.Samples[0].Y).To(BeNumerically("~", -math.Cos(0.5), 1e-12))
		})
	})

	Describe("failures", func() {
		It("reports a missing model file as ModelLoadError", func() {
			_, err := exec.Run(ctx, filepath.Join(dir, "missing.fmu"), executor.Request{})
			Expect(err).To(MatchError(simerr.ErrModelLoad))
		})

		It("reports a model without an executable binding as ModelLoadError", func() {
			md := models.DescribeSpringDamper()
			md.ModelIdentifier = "Unbound"
			_, err := exec.Run(ctx, writeFMU(dir, md), executor.Request{})
			Expect(err).To(MatchError(simerr.ErrModelLoad))
		})

		It("rejects models lacking the output channels", func() {
			p := filepath.Join(dir, "bare.xml")
			Expect(os.WriteFile(p, []byte(`<fmiModelDescription fmiVersion="2.0" modelName="Bare" guid="g">
				<ModelExchange modelIdentifier="Pendulum"/></fmiModelDescription>`), 0644)).To(Succeed())
			_, err := exec.Run(ctx, p, executor.Request{})
			Expect(err).To(MatchError(simerr.ErrModelLoad))
			Expect(err.Error()).To(ContainSubstring("body1.r_0[1]"))
		})

		DescribeTable("parameter binding errors",
			func(overrides map[string]any, variable string) {
				_, err := exec.Run(ctx, springPath, executor.Request{StartValues: overrides, StopTime: 1})
				Expect(err).To(MatchError(simerr.ErrParameterBinding))
				if variable != "" {
					Expect(err.Error()).To(ContainSubstring(variable))
				}
			},
			Entry("unknown name", map[string]any{"no.such.variable": 1}, "no.such.variable"),
			Entry("text for a real", map[string]any{"mass": "heavy"}, "mass"),
			Entry("non-settable local", map[string]any{"spring.f": 3}, "spring.f"),
			Entry("output", map[string]any{"energy": 3}, "energy"),
			Entry("zero mass", map[string]any{"mass": 0}, ""),
			Entry("negative stiffness", map[string]any{"c": "-4"}, ""),
		)

		It("keeps non-numeric overrides verbatim", func() {
			_, err := exec.Run(ctx, springPath, executor.Request{StartValues: map[string]any{"mass": "two kilos"}})
			Expect(err).To(MatchError(simerr.ErrParameterBinding))
			Expect(err.Error()).To(ContainSubstring(`"two kilos"`))
		})

		Context("with misbehaving models", func() {
			var probePath string

			BeforeEach(func() {
				var active, peak int32
				exec = executor.New(executor.WithRegistry(probeRegistry(&active, &peak)))
				probePath = writeFMU(dir, describeProbe("Probe", false))
			})

			It("recovers panics into IntegrationError", func() {
				_, err := exec.Run(ctx, probePath, executor.Request{StartValues: map[string]any{"mode": probePanics}})
				Expect(err).To(MatchError(simerr.ErrIntegration))
				Expect(err.Error()).To(ContainSubstring("probe exploded"))
			})

			It("reports divergence as IntegrationError with its location", func() {
				for _, solver := range []executor.Solver{executor.FixedStepEuler, executor.AdaptiveImplicit} {
					_, err := exec.Run(ctx, probePath, executor.Request{
						StartValues: map[string]any{"mode": probeDiverges},
						Solver:      solver,
					})
					Expect(err).To(MatchError(simerr.ErrIntegration), solver.String())

					var se *simerr.Error
					Expect(err).To(BeAssignableToTypeOf(se))
					se = err.(*simerr.Error)
					Expect(se.Time).To(BeNumerically("<=", 1.0))
				}
			})

			It("stops when the context is cancelled", func() {
				cctx, cancel := context.WithCancel(ctx)
				cancel()
				_, err := exec.Run(cctx, probePath, executor.Request{})
				Expect(err).To(MatchError(simerr.ErrIntegration))
				Expect(err).To(MatchError(context.Canceled))
			})
		})
	})

	Describe("concurrency", func() {
		It("runs independent instances in parallel", func() {
			var active, peak int32
			exec = executor.New(executor.WithRegistry(probeRegistry(&active, &peak)))
			p := writeFMU(dir, describeProbe("Probe", false))

			var wg sync.WaitGroup
			errs := make([]error, 4)
			for i := range errs {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					_, errs[i] = exec.Run(ctx, p, executor.Request{
						StartValues: map[string]any{"mode": probeSlow},
						StepSize:    0.1,
						Solver:      executor.FixedStepEuler,
					})
				}(i)
			}
			wg.Wait()
			for _, err := range errs {
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(active).To(BeZero())
		})

		It("serializes single-instance models per path", func() {
			var active, peak int32
			exec = executor.New(executor.WithRegistry(probeRegistry(&active, &peak)))
			p := writeFMU(dir, describeProbe("SingleProbe", true))

			var wg sync.WaitGroup
			for i := 0; i < 4; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := exec.Run(ctx, p, executor.Request{
						StartValues: map[string]any{"mode": probeSlow},
						StepSize:    0.1,
						Solver:      executor.FixedStepEuler,
					})
					Expect(err).NotTo(HaveOccurred())
				}()
			}
			wg.Wait()
			Expect(peak).To(Equal(int32(1)))
		})
	})

	Describe("side channels", func() {
		It("logs the resolved request and the outcome without touching the result", func() {
			core, logs := observer.New(zapcore.DebugLevel)
			logged := executor.New(executor.WithLogger(logging.NewWithCore(core)))
			req := executor.Request{StartValues: map[string]any{"mass": "2.5"}, StopTime: 1, StepSize: 0.1}

			traj, err := logged.Run(ctx, springPath, req)
			Expect(err).NotTo(HaveOccurred())

			starting := logs.FilterMessage("simulation starting").All()
			Expect(starting).To(HaveLen(1))
			fields := starting[0].ContextMap()
			Expect(fields).To(HaveKeyWithValue("stop_time", 1.0))
			Expect(fields).To(HaveKeyWithValue("step_size", "0.1"))
			Expect(fields).To(HaveKeyWithValue("solver", "AdaptiveImplicit"))
			Expect(fields).To(HaveKey("run_id"))
			Expect(fields["start_values"]).To(HaveKeyWithValue("mass", "2.5"))
			Expect(logs.FilterMessage("simulation completed").Len()).To(Equal(1))

			plain, err := executor.New().Run(ctx, springPath, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(cmp.Diff(plain, traj)).To(BeEmpty())

			_, err = logged.Run(ctx, filepath.Join(dir, "nope.fmu"), req)
			Expect(err).To(HaveOccurred())
			failed := logs.FilterMessage("simulation failed").All()
			Expect(failed).To(HaveLen(1))
			Expect(failed[0].ContextMap()).To(HaveKeyWithValue("kind", "ModelLoadError"))
		})

		It("logs the resolved request before the model is read", func() {
			core, logs := observer.New(zapcore.DebugLevel)
			logged := executor.New(executor.WithLogger(logging.NewWithCore(core)))
			req := executor.Request{StartValues: map[string]any{"mass": "3"}, StepSize: 0.5, Solver: executor.FixedStepEuler}

			_, err := logged.Run(ctx, filepath.Join(dir, "nope.fmu"), req)
			Expect(err).To(MatchError(simerr.ErrModelLoad))

			entries := logs.All()
			Expect(entries).To(HaveLen(2))
			Expect(entries[0].Message).To(Equal("simulation starting"))
			fields := entries[0].ContextMap()
			Expect(fields).To(HaveKeyWithValue("stop_time", executor.DefaultStopTime))
			Expect(fields).To(HaveKeyWithValue("step_size", "0.5"))
			Expect(fields).To(HaveKeyWithValue("solver", "FixedStepEuler"))
			Expect(fields["start_values"]).To(HaveKeyWithValue("mass", "3"))
			Expect(entries[1].Message).To(Equal("simulation failed"))
			Expect(logs.FilterMessage("model loaded").Len()).To(BeZero())

			_, err = logged.Run(ctx, springPath, req)
			Expect(err).NotTo(HaveOccurred())
			loaded := logs.FilterMessage("model loaded").All()
			Expect(loaded).To(HaveLen(1))
			Expect(loaded[0].ContextMap()).To(HaveKeyWithValue("model", "SpringDamperSystem"))
		})

		It("counts runs by outcome", func() {
			reg := prometheus.NewRegistry()
			collector, err := observability.NewRunCollector(reg)
			Expect(err).NotTo(HaveOccurred())
			counted := executor.New(executor.WithCollector(collector))

			_, err = counted.Run(ctx, springPath, executor.Request{StopTime: 1})
			Expect(err).NotTo(HaveOccurred())
			_, err = counted.Run(ctx, springPath, executor.Request{StartValues: map[string]any{"bogus": 1}})
			Expect(err).To(HaveOccurred())

			Expect(testutil.ToFloat64(collector.Runs.WithLabelValues("AdaptiveImplicit", "success"))).To(Equal(1.0))
			Expect(testutil.ToFloat64(collector.Runs.WithLabelValues("AdaptiveImplicit", "ParameterBindingError"))).To(Equal(1.0))
			Expect(testutil.ToFloat64(collector.RunsInFlight)).To(BeZero())
		})

		It("records a span per run", func() {
			recorder := tracetest.NewSpanRecorder()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
			traced := executor.New(executor.WithTracer(tp.Tracer("test")))

			_, err := traced.Run(ctx, springPath, executor.Request{StopTime: 1, Solver: executor.FixedStepEuler})
			Expect(err).NotTo(HaveOccurred())
			_, err = traced.Run(ctx, filepath.Join(dir, "missing.fmu"), executor.Request{})
			Expect(err).To(HaveOccurred())

			spans := recorder.Ended()
			Expect(spans).To(HaveLen(2))
			Expect(spans[0].Name()).To(Equal("executor.Run"))
			Expect(spans[0].Status().Code).To(Equal(codes.Unset))
			Expect(spans[1].Status().Code).To(Equal(codes.Error))
			Expect(spans[1].Status().Description).To(Equal("ModelLoadError"))
		})
	})
})
