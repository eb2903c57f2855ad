package sim

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/san-kum/fluidsim/internal/fluid"
	"github.com/san-kum/fluidsim/internal/metrics"
	"github.com/san-kum/fluidsim/internal/scenario"
	"github.com/san-kum/fluidsim/internal/tuner"
)

// Runner drives a Simulation frame by frame: scripted events, the step
// itself, the tuner report and the per-frame observers, in that order.
type Runner struct {
	sim       *fluid.Simulation
	tuner     *tuner.Tuner
	scenario  *scenario.Scenario
	metrics   []metrics.Diagnostic
	observers []Observer
	now       func() time.Time
	logger    *zap.Logger
}

type Option func(*Runner)

func WithTuner(t *tuner.Tuner) Option {
	return func(r *Runner) { r.tuner = t }
}

func WithScenario(sc *scenario.Scenario) Option {
	return func(r *Runner) { r.scenario = sc }
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

func New(s *fluid.Simulation, opts ...Option) *Runner {
	r := &Runner{
		sim:    s,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) AddMetric(m metrics.Diagnostic) { r.metrics = append(r.metrics, m) }
func (r *Runner) AddObserver(o Observer)         { r.observers = append(r.observers, o) }

func (r *Runner) Simulation() *fluid.Simulation { return r.sim }
func (r *Runner) Tuner() *tuner.Tuner           { return r.tuner }
func (r *Runner) Metrics() []metrics.Diagnostic { return r.metrics }

// Advance runs one frame. A step failure is returned as the simulation's
// *fluid.StageError and leaves the fields undefined.
func (r *Runner) Advance(ctx context.Context) (Frame, error) {
	frame := Frame{Index: r.sim.Frame()}

	if r.scenario != nil {
		resized, err := r.scenario.Apply(frame.Index, r.sim)
		if err != nil {
			return frame, fmt.Errorf("scenario %q: %w", r.scenario.Name, err)
		}
		frame.Resized = resized
	}

	start := r.now()
	if err := r.sim.Step(ctx); err != nil {
		return frame, err
	}
	frame.Seconds = r.now().Sub(start).Seconds()
	frame.Average = frame.Seconds

	if r.tuner != nil {
		changed, err := r.tuner.Report(frame.Seconds)
		if err != nil {
			return frame, err
		}
		frame.Resized = frame.Resized || changed
		frame.Average = r.tuner.Average()
	}

	frame.Metrics = r.sim.CurrentMetrics()
	frame.Mass = r.sim.OutputVolume().InteriorSum()
	for _, m := range r.metrics {
		m.Observe(r.sim)
	}
	for _, obs := range r.observers {
		obs.OnFrame(frame)
	}
	return frame, nil
}

// Run advances frames times, or until ctx is done.
func (r *Runner) Run(ctx context.Context, frames int) (*Result, error) {
	if frames < 1 {
		return nil, fmt.Errorf("frames must be positive, got %d", frames)
	}

	result := &Result{
		Frames:  make([]Frame, 0, frames),
		Metrics: make(map[string]float64),
	}
	for _, m := range r.metrics {
		m.Reset()
	}

	for i := 0; i < frames; i++ {
		select {
		case <-ctx.Done():
			r.finish(result)
			return result, ctx.Err()
		default:
		}

		f, err := r.Advance(ctx)
		if err != nil {
			r.finish(result)
			return result, err
		}
		if f.Resized {
			result.Resizes++
			r.logger.Info("resolution changed", zap.Int("frame", f.Index), zap.Int("n", f.Metrics.N))
		}
		result.Frames = append(result.Frames, f)
	}

	r.finish(result)
	return result, nil
}

func (r *Runner) finish(result *Result) {
	result.FinalN = r.sim.N()
	for _, m := range r.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
}
