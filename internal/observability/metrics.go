// Package observability holds the Prometheus collector and OpenTelemetry
// tracing setup used around simulation runs.
package observability

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RunCollector bundles the per-run Prometheus metrics.
type RunCollector struct {
	gatherer prometheus.Gatherer

	Runs          *prometheus.CounterVec
	RunDurations  *prometheus.HistogramVec
	RunSamples    prometheus.Histogram
	RunsInFlight  prometheus.Gauge
	Introspection *prometheus.CounterVec
}

// NewRunCollector registers run metrics against reg, defaulting to the global
// registry when nil. Registering twice against the same registry reuses the
// existing collectors.
func NewRunCollector(reg prometheus.Registerer) (*RunCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	runs, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fmusim_runs_total",
		Help: "Simulation runs, labeled by solver and outcome.",
	}, []string{"solver", "outcome"}), "fmusim_runs_total")
	if err != nil {
		return nil, err
	}

	durations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fmusim_run_duration_seconds",
		Help:    "Wall time of simulation runs in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 60},
	}, []string{"solver"}), "fmusim_run_duration_seconds")
	if err != nil {
		return nil, err
	}

	samples, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fmusim_run_samples",
		Help:    "Number of trajectory samples produced by successful runs.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	}), "fmusim_run_samples")
	if err != nil {
		return nil, err
	}

	inFlight, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fmusim_runs_in_flight",
		Help: "Simulation runs currently executing.",
	}), "fmusim_runs_in_flight")
	if err != nil {
		return nil, err
	}

	introspection, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fmusim_introspections_total",
		Help: "Variable listings, labeled by outcome.",
	}, []string{"outcome"}), "fmusim_introspections_total")
	if err != nil {
		return nil, err
	}

	return &RunCollector{
		gatherer:      gatherer,
		Runs:          runs,
		RunDurations:  durations,
		RunSamples:    samples,
		RunsInFlight:  inFlight,
		Introspection: introspection,
	}, nil
}

// Start marks a run as in flight and returns the function that records its
// outcome. A nil collector records nothing.
func (c *RunCollector) Start(solver string) func(outcome string, samples int) {
	if c == nil {
		return func(string, int) {}
	}
	begin := time.Now()
	c.RunsInFlight.Inc()
	return func(outcome string, samples int) {
		c.RunsInFlight.Dec()
		c.Runs.WithLabelValues(solver, outcome).Inc()
		c.RunDurations.WithLabelValues(solver).Observe(time.Since(begin).Seconds())
		if samples > 0 {
			c.RunSamples.Observe(float64(samples))
		}
	}
}

func (c *RunCollector) ObserveIntrospection(outcome string) {
	if c == nil {
		return
	}
	c.Introspection.WithLabelValues(outcome).Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *RunCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C, name string) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
			return c, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return c, err
	}
	return c, nil
}
