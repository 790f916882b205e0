package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/fmusim/internal/analysis"
	"github.com/san-kum/fmusim/internal/config"
	"github.com/san-kum/fmusim/internal/executor"
	"github.com/san-kum/fmusim/internal/export"
	"github.com/san-kum/fmusim/internal/fmu"
	"github.com/san-kum/fmusim/internal/metrics"
	"github.com/san-kum/fmusim/internal/sweep"
)

func listVariables(cmd *cobra.Command, args []string) error {
	env := app.bridge.ListConfigurableVariables(args[0])
	if asJSON {
		return printJSON(env)
	}
	if !env.Success {
		return fmt.Errorf("%s", env.Error)
	}
	fmt.Println(export.VariableTable(env.ModelName, env.Variables))
	return nil
}

// resolveRun merges preset, config file and flags into a request. Flags win
// only when explicitly set.
func resolveRun(cmd *cobra.Command, args []string) (string, executor.Request, error) {
	cfg := app.cfg
	flags := cmd.Flags()

	path := cfg.FMU
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return "", executor.Request{}, fmt.Errorf("no model given: pass an FMU path or set fmu in the config file")
	}

	if preset != "" {
		md, err := fmu.ReadModelDescription(path)
		if err != nil {
			return "", executor.Request{}, err
		}
		p := config.GetPreset(md.ModelIdentifier, preset)
		if p == nil {
			return "", executor.Request{}, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(md.ModelIdentifier))
		}
		cfg.ApplyPreset(p)
	}

	if flags.Changed("stop") {
		cfg.StopTime = stopTime
	}
	if flags.Changed("step") {
		cfg.StepSize = stepSize
	}
	if flags.Changed("solver") {
		cfg.Solver = solver
	}
	for _, kv := range sets {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return "", executor.Request{}, fmt.Errorf("invalid --set %q: want name=value", kv)
		}
		if cfg.StartValues == nil {
			cfg.StartValues = make(map[string]any)
		}
		cfg.StartValues[name] = value
	}

	req, err := cfg.Request()
	return path, req, err
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	path, req, err := resolveRun(cmd, args)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(cmd.Context())
	defer cancel()

	if asJSON {
		var stop, step *float64
		if req.StopTime > 0 {
			stop = &req.StopTime
		}
		if req.StepSize > 0 {
			step = &req.StepSize
		}
		return printJSON(app.bridge.Simulate(ctx, path, req.StartValues, stop, step, app.cfg.Solver))
	}

	traj, err := app.exec.Run(ctx, path, req)
	if err != nil {
		return err
	}
	values := metrics.Evaluate(traj)

	runID := "-"
	if !noSave {
		if err := app.store.Init(); err != nil {
			return err
		}
		if runID, err = app.store.Save(path, req, traj, values); err != nil {
			return err
		}
	}

	last := traj.Samples[traj.Len()-1]
	fmt.Println(export.KeyValues([][2]string{
		{"run id", runID},
		{"model", traj.Model},
		{"solver", traj.Solver.String()},
		{"samples", strconv.Itoa(traj.Len())},
		{"steps", strconv.Itoa(traj.Steps)},
		{"final", fmt.Sprintf("t=%.4g  x=%.6g  y=%.6g  z=%.6g", last.Time, last.X, last.Y, last.Z)},
	}))
	fmt.Println("\nmetrics:")
	printMetrics(values)
	return nil
}

func printMetrics(values map[string]float64) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, values[name])
	}
}

// parseAxis reads name=lo:hi:n or name=v1,v2,...
func parseAxis(spec string) (string, []float64, error) {
	name, rest, ok := strings.Cut(spec, "=")
	if !ok || name == "" || rest == "" {
		return "", nil, fmt.Errorf("invalid --param %q", spec)
	}
	if parts := strings.Split(rest, ":"); len(parts) == 3 {
		lo, err1 := strconv.ParseFloat(parts[0], 64)
		hi, err2 := strconv.ParseFloat(parts[1], 64)
		n, err3 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil || err3 != nil || n < 1 {
			return "", nil, fmt.Errorf("invalid range in --param %q: want lo:hi:n", spec)
		}
		return name, sweep.Linspace(lo, hi, n), nil
	}
	var values []float64
	for _, f := range strings.Split(rest, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return "", nil, fmt.Errorf("invalid value in --param %q: %w", spec, err)
		}
		values = append(values, v)
	}
	return name, values, nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	path, req, err := resolveRun(cmd, args)
	if err != nil {
		return err
	}
	if len(params) == 0 {
		return fmt.Errorf("sweep needs at least one --param")
	}

	names := make([]string, 0, len(params))
	ranges := make([][]float64, 0, len(params))
	for _, p := range params {
		name, values, err := parseAxis(p)
		if err != nil {
			return err
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}
	grid, err := sweep.NewGrid(names, ranges)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(cmd.Context())
	defer cancel()

	fmt.Printf("sweeping %d points over %s...\n\n", grid.Size(), strings.Join(names, ", "))
	outcomes, err := grid.Run(ctx, app.exec, path, req, sweep.Options{Workers: workers})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(names, "\t"))+"\tSAMPLES\t"+strings.ToUpper(metric)+"\tERROR")
	for _, o := range outcomes {
		cols := make([]string, 0, len(names)+3)
		for _, n := range names {
			cols = append(cols, strconv.FormatFloat(o.Values[n], 'g', 6, 64))
		}
		if o.Err != nil {
			cols = append(cols, "-", "-", o.Err.Error())
		} else {
			score := metrics.Evaluate(o.Trajectory)[metric]
			cols = append(cols, strconv.Itoa(o.Trajectory.Len()), strconv.FormatFloat(score, 'f', 6, 64), "")
		}
		fmt.Fprintln(w, strings.Join(cols, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	best, score, ok := sweep.Best(outcomes, func(t *executor.Trajectory) float64 {
		v, found := metrics.Evaluate(t)[metric]
		if !found {
			return math.Inf(1)
		}
		return v
	})
	if ok && !math.IsInf(score, 1) {
		fmt.Printf("\nbest %s: %.6f at %v\n", metric, score, best.Values)
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := app.store.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tSTOP\tSTEP\tSOLVER\tSAMPLES")

	for _, run := range runs {
		step := "adaptive"
		if run.StepSize > 0 {
			step = fmt.Sprintf("%.4gs", run.StepSize)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%s\t%s\t%d\n",
			run.ID,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.StopTime,
			step,
			run.Solver,
			run.NumSteps,
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	meta, err := app.store.Load(args[0])
	if err != nil {
		return err
	}

	pairs := [][2]string{
		{"id", meta.ID},
		{"model", meta.Model},
		{"fmu", meta.FMU},
		{"time", meta.Timestamp.Format("2006-01-02 15:04:05")},
		{"solver", meta.Solver.String()},
		{"stop time", strconv.FormatFloat(meta.StopTime, 'g', -1, 64)},
		{"step size", strconv.FormatFloat(meta.StepSize, 'g', -1, 64)},
		{"samples", strconv.Itoa(meta.NumSteps)},
	}
	names := make([]string, 0, len(meta.StartValues))
	for name := range meta.StartValues {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		pairs = append(pairs, [2]string{"set " + name, fmt.Sprint(meta.StartValues[name])})
	}
	fmt.Println(export.KeyValues(pairs))
	fmt.Println("\nmetrics:")
	printMetrics(meta.Metrics)
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, traj, err := app.store.LoadTrajectory(args[0])
	if err != nil {
		return err
	}
	if traj.Len() == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("model: %s\n", meta.Model)
	fmt.Printf("samples: %d\n\n", traj.Len())
	fmt.Println(export.PlotASCII(traj, width, height))

	if pngPath != "" {
		if err := export.SavePNG(pngPath, traj, meta.Model+" body1 position", 8, 5); err != nil {
			return err
		}
		fmt.Printf("\nwrote %s\n", pngPath)
	}
	if svgPath != "" {
		h, v, err := parsePlane(plane)
		if err != nil {
			return err
		}
		svg := export.ProjectionToSVG(analysis.Project(traj, h, v), 800, 600, "#00ff88")
		if err := os.WriteFile(svgPath, []byte(svg), 0644); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", svgPath)
	}
	return nil
}

func parsePlane(s string) (analysis.Axis, analysis.Axis, error) {
	if len(s) != 2 {
		return 0, 0, fmt.Errorf("invalid plane %q: want two axes like xy", s)
	}
	h, err := analysis.ParseAxis(s[:1])
	if err != nil {
		return 0, 0, err
	}
	v, err := analysis.ParseAxis(s[1:])
	if err != nil {
		return 0, 0, err
	}
	return h, v, nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, traj, err := app.store.LoadTrajectory(args[0])
	if err != nil {
		return err
	}
	ax, err := analysis.ParseAxis(axis)
	if err != nil {
		return err
	}

	sp, err := analysis.Analyze(traj, ax, fftSize)
	if err != nil {
		return err
	}

	fmt.Printf("frequency analysis: %s\n", meta.ID)
	fmt.Printf("model: %s\n\n", meta.Model)

	plotData := sp.Power[:max(len(sp.Power)/4, 1)]
	fmt.Println(export.PlotSpectrumASCII(plotData, fmt.Sprintf("power spectrum (%s)", ax), 80, 15))
	fmt.Println()

	fmt.Printf("dominant frequency: %.3f hz\n", sp.Dominant)
	if sp.Dominant > 0 {
		fmt.Printf("period: %.3f s\n", 1.0/sp.Dominant)
	}

	level := crossing
	if !cmd.Flags().Changed("threshold") {
		for _, v := range traj.Channel(int(ax)) {
			level += v
		}
		level /= float64(traj.Len())
	}
	if p := analysis.Period(analysis.Crossings(traj, ax, level)); p > 0 {
		fmt.Printf("period from crossings of %.4g: %.3f s\n", level, p)
	}

	if plane != "" {
		h, v, err := parsePlane(plane)
		if err != nil {
			return err
		}
		fmt.Printf("\nprojection %s:\n", plane)
		fmt.Print(analysis.ProjectionToASCII(analysis.Project(traj, h, v), 60, 20))
	}
	return nil
}

func output() (io.Writer, func() error, error) {
	if outPath == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	_, traj, err := app.store.LoadTrajectory(args[0])
	if err != nil {
		return err
	}
	w, closeFn, err := output()
	if err != nil {
		return err
	}
	if err := export.WriteCSV(w, traj); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, traj, err := app.store.LoadTrajectory(args[0])
	if err != nil {
		return err
	}
	req := executor.Request{
		StartValues: meta.StartValues,
		StopTime:    meta.StopTime,
		StepSize:    meta.StepSize,
		Solver:      meta.Solver,
	}
	w, closeFn, err := output()
	if err != nil {
		return err
	}
	if err := export.WriteJSON(w, export.NewDocument(traj, req, meta.Metrics)); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}

func exportFMU(cmd *cobra.Command, args []string) error {
	md, err := app.exec.Registry().Describe(args[0])
	if err != nil {
		return err
	}
	path := md.ModelIdentifier + ".fmu"
	if len(args) > 1 {
		path = args[1]
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	if err := fmu.WriteArchive(path, md); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%s, %d variables)\n", path, md.ModelName, len(md.Variables))
	return nil
}

func listModels(cmd *cobra.Command, args []string) error {
	reg := app.exec.Registry()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tVARIABLES\tSINGLE INSTANCE\tDESCRIPTION")
	for _, id := range reg.ListModels() {
		md, err := reg.Describe(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d\t%v\t%s\n", id, len(md.Variables), md.CanBeInstantiatedOnlyOncePerProcess, md.Description)
	}
	return w.Flush()
}

func listPresets(cmd *cobra.Command, args []string) error {
	models := config.PresetModels()
	if len(args) > 0 {
		models = args
	}
	for _, m := range models {
		presets := config.ListPresets(m)
		if len(presets) == 0 {
			fmt.Printf("no presets for model: %s\n", m)
			continue
		}
		fmt.Printf("presets for %s:\n", m)
		for _, p := range presets {
			fmt.Printf("  %s\n", p)
		}
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
