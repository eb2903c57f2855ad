package tuner

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/san-kum/fluidsim/internal/fluid"
)

const (
	DefaultHistory   = 10
	DefaultTargetFPS = 20
	DefaultInterval  = 200 * time.Millisecond

	// overshoot is how far above the budget the average frame may run
	// before the tuner starts cutting cost.
	overshoot = 0.01
	minN      = 4
)

var ErrInvalidConfig = errors.New("tuner: invalid configuration")

// Target is the narrow mutation surface the tuner drives.
type Target interface {
	SetResolution(n int) (bool, error)
	SetIterationBudget(steps int)
	CurrentMetrics() fluid.Metrics
}

type Direction int

const (
	Hold Direction = iota
	Down
	Up
)

func (d Direction) String() string {
	switch d {
	case Down:
		return "down"
	case Up:
		return "up"
	default:
		return "hold"
	}
}

// Decision describes one tune pass.
type Decision struct {
	Direction   Direction
	Average     float64
	Desired     float64
	Slope       float64
	N           int
	SolverSteps int
	Resized     bool
}

// Observer is notified after every tune pass.
type Observer interface {
	ObserveTune(d Decision)
}

type Stats struct {
	Average    float64
	Desired    float64
	Resolution float64
	Precision  float64
	Samples    int
	Tunes      int
	Resizes    int
	Last       Decision
}

// Tuner keeps the frame time near 1/targetFPS by trading grid resolution
// against solver steps. It holds a non-owning reference to its target and
// must be driven from the frame loop goroutine.
type Tuner struct {
	target   Target
	profile  DeviceProfile
	history  int
	desired  float64
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
	observer Observer

	average    float64
	samples    int
	resolution float64
	precision  float64
	lastTune   time.Time
	tunes      int
	resizes    int
	last       Decision
}

type Option func(*Tuner)

func WithInterval(d time.Duration) Option {
	return func(t *Tuner) { t.interval = d }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tuner) { t.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(t *Tuner) { t.logger = l }
}

func WithObserver(o Observer) Option {
	return func(t *Tuner) { t.observer = o }
}

func New(target Target, history, targetFPS int, profile DeviceProfile, opts ...Option) (*Tuner, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: nil target", ErrInvalidConfig)
	}
	if history < 1 {
		return nil, fmt.Errorf("%w: history must be at least 1, got %d", ErrInvalidConfig, history)
	}
	if targetFPS < 1 {
		return nil, fmt.Errorf("%w: target fps must be positive, got %d", ErrInvalidConfig, targetFPS)
	}

	t := &Tuner{
		target:   target,
		profile:  profile,
		history:  history,
		desired:  1 / float64(targetFPS),
		interval: DefaultInterval,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.interval <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive, got %s", ErrInvalidConfig, t.interval)
	}

	m := target.CurrentMetrics()
	t.resolution = float64(m.N)
	t.precision = float64(m.SolverSteps)
	t.lastTune = t.now()
	return t, nil
}

// Report feeds one measured frame time. When the tune interval has
// elapsed it runs a tune pass and reports whether the resolution changed,
// so callers can resize anything that depends on N.
func (t *Tuner) Report(frameSeconds float64) (bool, error) {
	if t.samples == 0 {
		t.average = frameSeconds
	} else {
		k := float64(t.history)
		t.average = (t.average*(k-1) + frameSeconds) / k
	}
	t.samples++

	now := t.now()
	if now.Sub(t.lastTune) <= t.interval {
		return false, nil
	}
	t.lastTune = now
	return t.tune()
}

func (t *Tuner) tune() (bool, error) {
	m := t.target.CurrentMetrics()
	t.resync(m)

	d := Decision{Average: t.average, Desired: t.desired}
	diff := t.average - t.desired

	switch {
	case diff > overshoot && m.SolverSteps > 1 && m.N > minN:
		d.Direction = Down
		d.Slope = t.profile.backwardSlope(m.N, m.SolverSteps)
		if d.Slope < 1 {
			t.resolution--
			t.precision -= d.Slope
		} else {
			t.precision--
			t.resolution -= 1 / d.Slope
		}
	case diff < 0:
		d.Direction = Up
		d.Slope = t.profile.forwardSlope(m.N, m.SolverSteps)
		if d.Slope < 1 {
			t.resolution++
			t.precision += d.Slope
		} else {
			t.precision++
			t.resolution += 1 / d.Slope
		}
	}

	if n := int(t.resolution); n != m.N {
		changed, err := t.target.SetResolution(n)
		if err != nil {
			return false, fmt.Errorf("tuner: resize to %d: %w", n, err)
		}
		d.Resized = changed
		if changed {
			t.resizes++
		}
	}
	t.target.SetIterationBudget(int(t.precision))

	after := t.target.CurrentMetrics()
	d.N, d.SolverSteps = after.N, after.SolverSteps
	t.tunes++
	t.last = d

	t.logger.Debug("tune",
		zap.Stringer("direction", d.Direction),
		zap.Float64("avg", d.Average),
		zap.Float64("desired", d.Desired),
		zap.Int("n", d.N),
		zap.Int("steps", d.SolverSteps),
	)
	if t.observer != nil {
		t.observer.ObserveTune(d)
	}
	return d.Resized, nil
}

// resync drops the fractional accumulators when someone else moved the
// target since the last pass (a manual resize, a preset switch).
func (t *Tuner) resync(m fluid.Metrics) {
	if int(t.resolution) != m.N {
		t.resolution = float64(m.N)
	}
	if int(t.precision) != m.SolverSteps {
		t.precision = float64(m.SolverSteps)
	}
}

// Average is the moving average frame time in seconds.
func (t *Tuner) Average() float64 { return t.average }

// FPS derived from the moving average.
func (t *Tuner) FPS() float64 {
	if t.average <= 0 {
		return 0
	}
	return 1 / t.average
}

func (t *Tuner) Profile() DeviceProfile { return t.profile }

func (t *Tuner) Stats() Stats {
	return Stats{
		Average:    t.average,
		Desired:    t.desired,
		Resolution: t.resolution,
		Precision:  t.precision,
		Samples:    t.samples,
		Tunes:      t.tunes,
		Resizes:    t.resizes,
		Last:       t.last,
	}
}

// SetTargetFPS changes the frame budget; values below one are ignored.
func (t *Tuner) SetTargetFPS(fps int) {
	if fps < 1 {
		return
	}
	t.desired = 1 / float64(fps)
}

// Reset forgets the moving average and restarts the tune interval.
func (t *Tuner) Reset() {
	t.average = 0
	t.samples = 0
	t.lastTune = t.now()
	t.resync(t.target.CurrentMetrics())
}

// GetParams returns the live-adjustable settings.
func (t *Tuner) GetParams() map[string]float64 {
	return map[string]float64{
		"history":    float64(t.history),
		"target_fps": 1 / t.desired,
		"interval":   t.interval.Seconds(),
	}
}

func (t *Tuner) SetParam(name string, value float64) {
	switch name {
	case "history":
		if value >= 1 {
			t.history = int(value)
		}
	case "target_fps":
		t.SetTargetFPS(int(value))
	case "interval":
		if value > 0 {
			t.interval = time.Duration(value * float64(time.Second))
		}
	}
}
