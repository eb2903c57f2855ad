package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/fluidsim/internal/compute"
	"github.com/san-kum/fluidsim/internal/config"
	"github.com/san-kum/fluidsim/internal/fluid"
	"github.com/san-kum/fluidsim/internal/logger"
	"github.com/san-kum/fluidsim/internal/metrics"
	"github.com/san-kum/fluidsim/internal/scenario"
	"github.com/san-kum/fluidsim/internal/sim"
	"github.com/san-kum/fluidsim/internal/tuner"
)

// loadConfig resolves --preset, then --config, then any flag the user
// actually set on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		if cfg = config.GetPreset(preset); cfg == nil {
			return nil, fmt.Errorf("unknown preset %q (have %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("n") {
		cfg.Simulation.N = gridN
	}
	if flags.Changed("dim") {
		cfg.Simulation.Dim = dim
	}
	if flags.Changed("steps") {
		cfg.Simulation.SolverSteps = solverSteps
	}
	if flags.Changed("backend") {
		cfg.Compute.Backend = backendName
	}
	if flags.Changed("pipeline") {
		cfg.Compute.Pipeline = pipelineName
	}
	if flags.Changed("profile") {
		cfg.Tuner.Profile = profileName
	}
	if flags.Changed("fps") {
		cfg.Tuner.TargetFPS = targetFPS
	}
	if flags.Changed("notune") {
		cfg.Tuner.Enabled = !noTune
	}
	if flags.Changed("nolog") {
		cfg.Log.Disabled = noLog
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = metricsAddr
	}
	if flags.Changed("data") {
		cfg.Output.DataDir = dataDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session owns everything one simulation needs, so commands only have to
// Close it.
type session struct {
	cfg       *config.Config
	logger    *zap.Logger
	backend   compute.Backend
	sim       *fluid.Simulation
	tuner     *tuner.Tuner
	runner    *sim.Runner
	profiler  *metrics.StageProfiler
	collector *metrics.Collector
	server    *http.Server
}

func newSession(cfg *config.Config, sc *scenario.Scenario) (*session, error) {
	log, err := logger.New(logger.Config{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Output:   cfg.Log.Output,
		Disabled: cfg.Log.Disabled,
	})
	if err != nil {
		return nil, err
	}

	s := &session{
		cfg:       cfg,
		logger:    log,
		collector: metrics.NewCollector(),
	}
	s.profiler = metrics.NewStageProfiler(s.collector.ObserveStage)

	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}

	var pipeline fluid.Pipeline = fluid.Fused{}
	if cfg.Compute.Pipeline == "staged" {
		opts := cfg.BackendOptions()
		opts.Logger = log
		s.backend, err = compute.Open(cfg.Compute.Backend, opts)
		if err != nil {
			return nil, err
		}
		pipeline = fluid.NewStaged(s.backend, fluid.WithStageObserver(s.profiler))
	}

	s.sim, err = fluid.New(params, pipeline, fluid.WithLogger(log))
	if err != nil {
		s.Close()
		return nil, err
	}

	if cfg.Tuner.Enabled {
		profile, _ := tuner.ParseProfile(cfg.Tuner.Profile)
		s.tuner, err = tuner.New(s.sim, cfg.Tuner.History, cfg.Tuner.TargetFPS, profile,
			tuner.WithInterval(cfg.Tuner.Interval),
			tuner.WithLogger(log),
			tuner.WithObserver(s.collector),
		)
		if err != nil {
			s.Close()
			return nil, err
		}
	}

	s.runner = sim.New(s.sim,
		sim.WithTuner(s.tuner),
		sim.WithScenario(sc),
		sim.WithLogger(log),
	)
	for _, d := range metrics.DefaultDiagnostics() {
		s.runner.AddMetric(d)
	}
	s.runner.AddObserver(sim.ObserverFunc(func(f sim.Frame) {
		s.collector.ObserveFrame(f.Seconds, f.Metrics)
		s.collector.ObserveDiagnostics(s.runner.Metrics())
	}))

	if cfg.Metrics.Addr != "" {
		s.server = s.collector.NewServer(cfg.Metrics.Addr)
		go func() {
			if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server stopped", zap.Error(err))
			}
		}()
		log.Info("serving metrics", zap.String("addr", cfg.Metrics.Addr))
	}

	log.Info("simulation ready",
		zap.Int("n", params.N),
		zap.Int("dim", params.Dim),
		zap.Int("solver_steps", params.SolverSteps),
		zap.String("pipeline", s.sim.PipelineName()),
		zap.String("backend", s.backendName()),
		zap.Bool("tuner", s.tuner != nil),
	)
	return s, nil
}

func (s *session) backendName() string {
	if s.backend == nil {
		return "inline"
	}
	return s.backend.Name()
}

// fail logs a stage failure with its stage name and exits. Other errors
// are returned for cobra to print.
func (s *session) fail(err error) error {
	var stageErr *fluid.StageError
	if errors.As(err, &stageErr) {
		if s.cfg.Log.Disabled {
			fmt.Fprintln(os.Stderr, err)
		}
		s.logger.Fatal("stage failed",
			zap.String("stage", stageErr.Stage),
			zap.String("pipeline", stageErr.Pipeline),
			zap.Int("frame", stageErr.Frame),
			zap.Error(stageErr.Err),
		)
	}
	return err
}

func (s *session) Close() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = s.server.Shutdown(ctx)
		cancel()
	}
	if s.backend != nil {
		if err := s.backend.Close(); err != nil {
			s.logger.Warn("closing backend", zap.Error(err))
		}
	}
	_ = s.logger.Sync()
}
