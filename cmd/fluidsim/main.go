package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/fluidsim/internal/config"
	"github.com/san-kum/fluidsim/internal/export"
	"github.com/san-kum/fluidsim/internal/fluid"
	"github.com/san-kum/fluidsim/internal/scenario"
	"github.com/san-kum/fluidsim/internal/sim"
	"github.com/san-kum/fluidsim/internal/storage"
	"github.com/san-kum/fluidsim/internal/viz"
)

var (
	configFile   string
	preset       string
	dataDir      string
	gridN        int
	dim          int
	solverSteps  int
	backendName  string
	pipelineName string
	profileName  string
	targetFPS    int
	noTune       bool
	noLog        bool
	logLevel     string
	metricsAddr  string
	frames       int
	scenarioFile string
	runName      string
	theme        string
	benchFrames  int
	benchSizes   []int
	exportOut    string
	snapshotOut  string
	plotSVG      string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "fluidsim",
		Short:         "stable fluids solver with an adaptive frame-time tuner",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runLive,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&preset, "preset", "", "start from a preset configuration")
	pf.StringVar(&dataDir, "data", config.DefaultDataDir, "data directory")
	pf.IntVar(&gridN, "n", 0, "interior grid side N")
	pf.IntVar(&dim, "dim", 3, "dimensionality, 2 or 3")
	pf.IntVar(&solverSteps, "steps", 0, "Gauss-Seidel sweeps per relax")
	pf.StringVar(&backendName, "backend", config.DefaultBackend, "compute backend: auto, cpu, opencl")
	pf.StringVar(&pipelineName, "pipeline", config.DefaultPipeline, "pipeline: fused or staged")
	pf.StringVar(&profileName, "profile", config.DefaultProfile, "tuner device profile: cpu or gpu")
	pf.IntVar(&targetFPS, "fps", 0, "tuner target frame rate")
	pf.BoolVar(&noTune, "notune", false, "disable the adaptive tuner")
	pf.BoolVar(&noLog, "nolog", false, "disable logging")
	pf.StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	pf.StringVar(&scenarioFile, "scenario", "", "scripted event file (yaml)")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run the simulation with the terminal view",
		RunE:  runLive,
	}
	liveCmd.Flags().StringVar(&theme, "theme", "smoke", "color theme: "+strings.Join(viz.ThemeNames(), ", "))

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run headless and store the frame log",
		RunE:  runHeadless,
	}
	runCmd.Flags().IntVar(&frames, "frames", 300, "frames to simulate")
	runCmd.Flags().StringVar(&runName, "name", "", "run name (defaults to the preset or \"run\")")
	runCmd.Flags().StringVar(&snapshotOut, "snapshot", "", "write the final density projection as svg")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot frame time and resolution of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&plotSVG, "svg", "", "also write the frame time series as svg")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a stored run as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (stdout when empty)")

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "compare the fused and staged pipelines across grid sizes",
		RunE:  benchPipelines,
	}
	benchCmd.Flags().IntVar(&benchFrames, "frames", 20, "frames per measurement")
	benchCmd.Flags().IntSliceVar(&benchSizes, "sizes", []int{8, 16, 32}, "grid sides to measure")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			t := newTable("NAME", "N", "DIM", "STEPS", "PIPELINE", "TUNER")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				tune := "off"
				if p.Tuner.Enabled {
					tune = fmt.Sprintf("%s@%dfps", p.Tuner.Profile, p.Tuner.TargetFPS)
				}
				t.row(name, p.Simulation.N, p.Simulation.Dim, p.Simulation.SolverSteps, p.Compute.Pipeline, tune)
			}
			return t.render()
		},
	}

	rootCmd.AddCommand(liveCmd, runCmd, listCmd, plotCmd, exportCmd, benchCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadScenario() (*scenario.Scenario, error) {
	if scenarioFile == "" {
		return nil, nil
	}
	return scenario.LoadScenario(scenarioFile)
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// The terminal belongs to the view; console logs would tear it.
	if cfg.Log.Output == "" {
		cfg.Log.Disabled = true
	}
	sc, err := loadScenario()
	if err != nil {
		return err
	}
	if cmd.Flags().Lookup("theme") != nil {
		viz.SetTheme(theme)
	}

	s, err := newSession(cfg, sc)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p := viz.NewProgram(ctx, s.runner, s.backendName())
	if configFile != "" {
		w, err := config.NewWatcher(configFile, s.logger, 0)
		if err != nil {
			return err
		}
		defer w.Stop()
		err = w.Start(ctx, func(c *config.Config) {
			p.Send(viz.SettingsMsg{TargetFPS: c.Tuner.TargetFPS, SolverSteps: c.Simulation.SolverSteps})
		})
		if err != nil {
			return err
		}
	}
	return viz.Run(p)
}

func runHeadless(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sc, err := loadScenario()
	if err != nil {
		return err
	}
	if sc != nil && sc.Frames > 0 && !cmd.Flags().Changed("frames") {
		frames = sc.Frames
	}

	s, err := newSession(cfg, sc)
	if err != nil {
		return err
	}
	defer s.Close()

	// Without a scenario the run would stay empty.
	if sc == nil {
		s.sim.AddFluid()
		s.sim.AddForce()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	result, err := s.runner.Run(ctx, frames)
	if err != nil && !errors.Is(err, context.Canceled) {
		return s.fail(err)
	}
	elapsed := time.Since(start)

	s.logger.Info("run finished",
		zap.Int("frames", len(result.Frames)),
		zap.Duration("elapsed", elapsed),
		zap.Int("final_n", result.FinalN),
		zap.Int("resizes", result.Resizes),
	)
	printSummary(result, elapsed)

	if snapshotOut != "" {
		plane := viz.ProjectPlane(s.sim.OutputVolume())
		if err := export.WriteFile(snapshotOut, export.PlaneToSVG(plane, 8, "#d0d0e0")); err != nil {
			return err
		}
	}

	if !cfg.Output.Frames || len(result.Frames) == 0 {
		return nil
	}
	id, err := saveRun(cfg, s, sc, result)
	if err != nil {
		return err
	}
	fmt.Printf("\nsaved: %s\n", id)
	return nil
}

func saveRun(cfg *config.Config, s *session, sc *scenario.Scenario, result *sim.Result) (string, error) {
	st := storage.New(cfg.Output.DataDir)
	if err := st.Init(); err != nil {
		return "", err
	}

	name := runName
	if name == "" {
		name = preset
	}
	p := s.sim.Params()
	meta := storage.RunMetadata{
		Name:        name,
		Dim:         p.Dim,
		N:           cfg.Simulation.N,
		FinalN:      result.FinalN,
		SolverSteps: p.SolverSteps,
		Dt:          p.Dt,
		Viscosity:   p.Viscosity,
		Diffusion:   p.Diffusion,
		Backend:     s.backendName(),
		Pipeline:    s.sim.PipelineName(),
		Profile:     cfg.Tuner.Profile,
		Metrics:     result.Metrics,
	}
	if sc != nil {
		meta.Scenario = sc.Name
	}

	records := make([]storage.FrameRecord, len(result.Frames))
	for i, f := range result.Frames {
		records[i] = storage.FrameRecord{
			Frame:        f.Index,
			N:            f.Metrics.N,
			SolverSteps:  f.Metrics.SolverSteps,
			FrameSeconds: f.Seconds,
			AvgSeconds:   f.Average,
			FPS:          f.FPS(),
			Mass:         f.Mass,
			Resized:      f.Resized,
		}
	}

	var stages []storage.StageRecord
	if cfg.Output.Profile {
		for _, t := range s.profiler.Snapshot() {
			stages = append(stages, storage.StageRecord{
				Stage:        t.Label,
				Calls:        t.Calls,
				TotalSeconds: t.Total.Seconds(),
				MeanSeconds:  t.Mean().Seconds(),
			})
		}
	}
	return st.Save(meta, records, stages)
}

func printSummary(result *sim.Result, elapsed time.Duration) {
	if len(result.Frames) > 1 {
		ms := result.Seconds()
		for i := range ms {
			ms[i] *= 1000
		}
		fmt.Println(asciigraph.Plot(ms, asciigraph.Height(8), asciigraph.Width(60), asciigraph.Caption("frame time (ms)")))
		fmt.Println()
		fmt.Println(asciigraph.Plot(result.Resolutions(), asciigraph.Height(6), asciigraph.Width(60), asciigraph.Caption("N")))
		fmt.Println()
	}

	t := newTable("SUMMARY", "VALUE")
	t.row("frames", len(result.Frames))
	t.row("elapsed", elapsed.Round(time.Millisecond))
	t.row("final N", result.FinalN)
	t.row("resizes", result.Resizes)

	names := make([]string, 0, len(result.Metrics))
	for k := range result.Metrics {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		t.row(k, fmt.Sprintf("%.6g", result.Metrics[k]))
	}
	_ = t.render()
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs")
		return nil
	}

	t := newTable("ID", "DIM", "N", "FINAL N", "STEPS", "PIPELINE", "FRAMES", "TIME")
	for _, r := range runs {
		t.row(r.ID, r.Dim, r.N, r.FinalN, r.SolverSteps, r.Pipeline, r.Frames, r.Timestamp.Format("2006-01-02 15:04"))
	}
	return t.render()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	records, err := st.LoadFrames(args[0])
	if err != nil {
		return err
	}
	if len(records) < 2 {
		return fmt.Errorf("run %s has too few frames to plot", meta.ID)
	}

	ms := make([]float64, len(records))
	ns := make([]float64, len(records))
	for i, r := range records {
		ms[i] = r.AvgSeconds * 1000
		ns[i] = float64(r.N)
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("dim: %d  pipeline: %s  backend: %s\n\n", meta.Dim, meta.Pipeline, meta.Backend)
	fmt.Println(asciigraph.Plot(ms, asciigraph.Height(10), asciigraph.Width(70), asciigraph.Caption("average frame time (ms)")))
	fmt.Println()
	fmt.Println(asciigraph.Plot(ns, asciigraph.Height(6), asciigraph.Width(70), asciigraph.Caption("N")))

	if plotSVG != "" {
		if err := export.WriteFile(plotSVG, export.SeriesToSVG(ms, 800, 300, "#00ccff")); err != nil {
			return err
		}
	}

	stages, err := st.LoadProfile(args[0])
	if err != nil {
		return err
	}
	if len(stages) > 0 {
		fmt.Println()
		t := newTable("STAGE", "CALLS", "TOTAL", "MEAN")
		for _, s := range stages {
			t.row(s.Stage, s.Calls, fmt.Sprintf("%.3fs", s.TotalSeconds), fmt.Sprintf("%.3fms", s.MeanSeconds*1000))
		}
		return t.render()
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	data, err := storage.New(dataDir).Export(args[0])
	if err != nil {
		return err
	}
	if exportOut == "" {
		return storage.WriteJSON(os.Stdout, data)
	}
	return storage.ExportJSON(exportOut, data)
}

// benchPipelines times both pipelines at each size with the tuner off.
func benchPipelines(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	base.Tuner.Enabled = false
	base.Log.Disabled = true
	base.Metrics.Addr = ""

	fmt.Printf("benchmarking %dD, %d solver steps, %d frames\n\n", base.Simulation.Dim, base.Simulation.SolverSteps, benchFrames)
	t := newTable("N", "PIPELINE", "BACKEND", "MEAN", "FPS")

	for _, n := range benchSizes {
		for _, pipeline := range []string{"fused", "staged"} {
			cfg := base.Clone()
			cfg.Simulation.N = n
			cfg.Compute.Pipeline = pipeline
			mean, backend, err := benchOne(cfg)
			if err != nil {
				return err
			}
			t.row(n, pipeline, backend, mean.Round(time.Microsecond), fmt.Sprintf("%.1f", 1/mean.Seconds()))
		}
	}
	return t.render()
}

func benchOne(cfg *config.Config) (time.Duration, string, error) {
	if err := cfg.Validate(); err != nil {
		return 0, "", err
	}
	s, err := newSession(cfg, nil)
	if err != nil {
		return 0, "", err
	}
	defer s.Close()

	s.sim.AddFluid()
	s.sim.AddForce()
	result, err := s.runner.Run(context.Background(), benchFrames)
	if err != nil {
		var stageErr *fluid.StageError
		if errors.As(err, &stageErr) {
			return 0, "", fmt.Errorf("%s: %w", stageErr.Stage, err)
		}
		return 0, "", err
	}

	total := 0.0
	for _, f := range result.Frames {
		total += f.Seconds
	}
	return time.Duration(total / float64(len(result.Frames)) * float64(time.Second)), s.backendName(), nil
}
