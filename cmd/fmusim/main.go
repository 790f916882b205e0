package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/fmusim/internal/bridge"
	"github.com/san-kum/fmusim/internal/config"
	"github.com/san-kum/fmusim/internal/executor"
	"github.com/san-kum/fmusim/internal/logging"
	"github.com/san-kum/fmusim/internal/observability"
	"github.com/san-kum/fmusim/internal/storage"
)

var (
	dataDir     string
	configFile  string
	logLevel    string
	logFormat   string
	tracing     bool
	metricsAddr string

	stopTime float64
	stepSize float64
	solver   string
	sets     []string
	preset   string
	timeout  time.Duration
	asJSON   bool
	noSave   bool

	params  []string
	workers int
	metric  string

	axis     string
	plane    string
	pngPath  string
	svgPath  string
	outPath  string
	width    int
	height   int
	fftSize  int
	crossing float64
)

// env holds what every command shares once flags and the config file are
// resolved.
type env struct {
	cfg      *config.Config
	log      *logging.Zap
	exec     *executor.Executor
	bridge   *bridge.Bridge
	store    *storage.Store
	shutdown func(context.Context) error
	server   *http.Server
}

var app env

func main() {
	rootCmd := &cobra.Command{
		Use:               "fmusim",
		Short:             "simulate FMI model-exchange models and inspect their trajectories",
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "run archive directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", config.DefaultFormat, "log format (console, json)")
	rootCmd.PersistentFlags().BoolVar(&tracing, "tracing", false, "export spans to stderr")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while running")

	varsCmd := &cobra.Command{
		Use:   "vars [fmu]",
		Short: "list the configurable variables of a model",
		Args:  cobra.ExactArgs(1),
		RunE:  listVariables,
	}
	varsCmd.Flags().BoolVar(&asJSON, "json", false, "print the envelope as JSON")

	runCmd := &cobra.Command{
		Use:   "run [fmu]",
		Short: "run simulation",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addRunFlags(runCmd)
	runCmd.Flags().StringVar(&preset, "preset", "", "use preset start values")
	runCmd.Flags().BoolVar(&asJSON, "json", false, "print the result envelope as JSON")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not archive the run")

	sweepCmd := &cobra.Command{
		Use:   "sweep [fmu]",
		Short: "run a grid of start values concurrently",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	addRunFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&params, "param", nil, "grid axis as name=lo:hi:n or name=v1,v2,...")
	sweepCmd.Flags().IntVar(&workers, "workers", 0, "concurrent runs (default GOMAXPROCS)")
	sweepCmd.Flags().StringVar(&metric, "metric", "path_length", "metric to minimize")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list archived runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&width, "width", 80, "plot width")
	plotCmd.Flags().IntVar(&height, "height", 10, "plot height")
	plotCmd.Flags().StringVar(&pngPath, "png", "", "also write a PNG plot to this path")
	plotCmd.Flags().StringVar(&svgPath, "svg", "", "also write an SVG projection to this path")
	plotCmd.Flags().StringVar(&plane, "plane", "xy", "projection plane for --svg")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of one position channel",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().StringVar(&axis, "axis", "y", "channel to analyze (x, y, z)")
	analyzeCmd.Flags().IntVar(&fftSize, "n", 1024, "resampled length")
	analyzeCmd.Flags().Float64Var(&crossing, "threshold", 0, "crossing level for the period estimate (default: channel mean)")
	analyzeCmd.Flags().StringVar(&plane, "plane", "", "also draw a projection onto this plane (e.g. xz)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run data to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outPath, "output", "o", "", "output file (default stdout)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outPath, "output", "o", "", "output file (default stdout)")

	exportFMUCmd := &cobra.Command{
		Use:   "export-fmu [model] [path]",
		Short: "write a built-in model as an FMU archive",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  exportFMU,
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list built-in models",
		RunE:  listModels,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	rootCmd.AddCommand(varsCmd, runCmd, sweepCmd, listCmd, showCmd, plotCmd, analyzeCmd,
		exportCSVCmd, exportJSONCmd, exportFMUCmd, modelsCmd, presetsCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	teardown(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&stopTime, "stop", config.DefaultStopTime, "stop time (<= 0 selects the default)")
	cmd.Flags().Float64Var(&stepSize, "step", 0, "output interval and Euler step (0 = adaptive)")
	cmd.Flags().StringVar(&solver, "solver", config.DefaultSolver, "solver (CVode/AdaptiveImplicit or Euler/FixedStepEuler)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "start value override as name=value (repeatable)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "abort the run after this long")
}

// setup loads the config file, lets explicitly set flags override it, and
// builds the logger, tracer, executor and run store.
func setup(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("data") || configFile == "" {
		cfg.DataDir = dataDir
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = logFormat
	}
	if flags.Changed("tracing") {
		cfg.Tracing = tracing
	}

	log, err := logging.New(cfg.Logging())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing,
		ServiceName: "fmusim",
	}, log)
	if err != nil {
		return err
	}

	opts := append([]executor.Option{executor.WithLogger(log)}, cfg.ExecutorOptions()...)
	var collector *observability.RunCollector
	if metricsAddr != "" {
		collector, err = observability.NewRunCollector(nil)
		if err != nil {
			return err
		}
		opts = append(opts, executor.WithCollector(collector))
		app.server = &http.Server{Addr: metricsAddr, Handler: collector.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(ctx, "metrics server failed", logging.Err(err))
			}
		}()
		log.Info(ctx, "serving metrics", logging.String("addr", metricsAddr))
	}

	exec := executor.New(opts...)
	app.cfg = cfg
	app.log = log
	app.exec = exec
	app.bridge = bridge.New(exec, bridge.WithLogger(log), bridge.WithCollector(collector))
	app.store = storage.New(cfg.DataDir)
	app.shutdown = shutdown
	return nil
}

func teardown(ctx context.Context) {
	if app.log == nil {
		return
	}
	if app.server != nil {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		_ = app.server.Shutdown(sctx)
		cancel()
	}
	observability.ShutdownWithTimeout(context.WithoutCancel(ctx), app.shutdown, app.log)
	_ = app.log.Sync()
	app = env{}
}
