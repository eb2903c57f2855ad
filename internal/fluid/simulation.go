package fluid

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/san-kum/fluidsim/internal/grid"
	"github.com/san-kum/fluidsim/internal/kernel"
)

// Metrics is the tuner-facing view of the current cost knobs.
type Metrics struct {
	N           int
	SolverSteps int
	Dim         int
	Frame       int
}

// Simulation owns every field buffer and the pipeline that steps them.
// Step, Resize and the mutation hooks must be called from one goroutine.
type Simulation struct {
	params   Params
	state    *State
	pipeline Pipeline
	logger   *zap.Logger
	frame    int
}

type Option func(*Simulation)

func WithLogger(l *zap.Logger) Option {
	return func(s *Simulation) { s.logger = l }
}

// New validates p and allocates zeroed buffers at resolution p.N.
func New(p Params, pipeline Pipeline, opts ...Option) (*Simulation, error) {
	if p.Resample == "" {
		p.Resample = grid.ResampleCopy
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if pipeline == nil {
		pipeline = Fused{}
	}

	st, err := NewState(p.N, p.Dim)
	if err != nil {
		return nil, err
	}

	s := &Simulation{
		params:   p,
		state:    st,
		pipeline: pipeline,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Step advances one frame and clears the source buffers. A returned
// *StageError leaves the fields undefined.
func (s *Simulation) Step(ctx context.Context) error {
	if err := s.pipeline.Step(ctx, s.state, s.params); err != nil {
		var se *StageError
		if !errors.As(err, &se) {
			se = &StageError{Pipeline: s.pipeline.Name(), Stage: "step", Err: err}
		}
		se.Frame = s.frame
		return se
	}
	s.state.ClearSources()
	s.frame++
	return nil
}

// AddFluid writes FluidAmount into the density sources at the fluid seed,
// filling a FluidSplat-sided block.
func (s *Simulation) AddFluid() {
	p := s.params
	c := seedCell(p.FluidSeed, p.N, p.FluidSplat)
	splat := min(p.FluidSplat, p.N)
	depth := splat
	if p.Dim == 2 {
		depth = 1
	}

	src := s.state.Dens.Scratch()
	for dk := 0; dk < depth; dk++ {
		for dj := 0; dj < splat; dj++ {
			for di := 0; di < splat; di++ {
				src.Set(c[0]+di, c[1]+dj, c[2]+dk, p.FluidAmount)
			}
		}
	}
	s.logger.Debug("adding fluid", zap.Ints("cell", c[:p.Dim]), zap.Float64("amount", p.FluidAmount))
}

// AddForce writes ForceAmount into every velocity source component at the
// force seed.
func (s *Simulation) AddForce() {
	p := s.params
	c := seedCell(p.ForceSeed, p.N, 1)
	for _, b := range s.state.velocityBuffers() {
		b.Scratch().Set(c[0], c[1], c[2], p.ForceAmount)
	}
	s.logger.Debug("adding force", zap.Ints("cell", c[:p.Dim]), zap.Float64("amount", p.ForceAmount))
}

// AddFluidAt adds amount to the density source at one interior cell.
// Cells outside the interior are ignored.
func (s *Simulation) AddFluidAt(i, j, k int, amount float64) {
	if !s.interior(i, j, k) {
		return
	}
	src := s.state.Dens.Scratch()
	src.Set(i, j, k, src.At(i, j, k)+amount)
}

// AddForceAt adds f to the velocity sources at one interior cell.
func (s *Simulation) AddForceAt(i, j, k int, f [3]float64) {
	if !s.interior(i, j, k) {
		return
	}
	for axis, b := range s.state.velocityBuffers() {
		src := b.Scratch()
		src.Set(i, j, k, src.At(i, j, k)+f[axis])
	}
}

func (s *Simulation) interior(i, j, k int) bool {
	n := s.params.N
	in := func(c int) bool { return c >= 1 && c <= n }
	if s.params.Dim == 2 {
		return in(i) && in(j)
	}
	return in(i) && in(j) && in(k)
}

// Reset zeroes the fields and the sources.
func (s *Simulation) Reset() {
	s.state.ClearFields()
	s.ClearEffects()
	s.logger.Debug("reset")
}

// ClearEffects zeroes the pending sources and forces.
func (s *Simulation) ClearEffects() {
	s.state.ClearSources()
	s.logger.Debug("clearing effects")
}

// Resize moves the simulation to resolution newN. New buffers are fully
// allocated and resampled before the old ones are dropped; on error the
// simulation is untouched. It reports whether N changed.
func (s *Simulation) Resize(newN int) (bool, error) {
	if newN < 1 {
		return false, fmt.Errorf("%w: got %d", ErrInvalidResolution, newN)
	}
	oldN := s.params.N
	if newN == oldN {
		return false, nil
	}

	next, err := NewState(newN, s.params.Dim)
	if err != nil {
		return false, err
	}
	olds, news := s.state.buffers(), next.buffers()
	for i := range olds {
		dst := news[i].Current()
		if err := grid.Resample(dst, olds[i].Current(), s.params.Resample); err != nil {
			return false, err
		}
		grid.Enforce(dst, bufferBoundary(i))
	}

	s.state = next
	s.params.N = newN
	s.logger.Info("resize", zap.Int("from", oldN), zap.Int("to", newN))
	return true, nil
}

// SetResolution is Resize under the tuner's name.
func (s *Simulation) SetResolution(n int) (bool, error) {
	return s.Resize(n)
}

// SetIterationBudget sets the relaxation sweep count, never below one.
func (s *Simulation) SetIterationBudget(steps int) {
	s.params.SolverSteps = max(steps, 1)
}

func (s *Simulation) CurrentMetrics() Metrics {
	return Metrics{
		N:           s.params.N,
		SolverSteps: s.params.SolverSteps,
		Dim:         s.params.Dim,
		Frame:       s.frame,
	}
}

func (s *Simulation) N() int               { return s.params.N }
func (s *Simulation) SolverSteps() int     { return s.params.SolverSteps }
func (s *Simulation) Params() Params       { return s.params }
func (s *Simulation) Frame() int           { return s.frame }
func (s *Simulation) PipelineName() string { return s.pipeline.Name() }

// OutputVolume exposes the live density buffer. See Volume for how long the
// view stays meaningful.
func (s *Simulation) OutputVolume() Volume {
	return Volume{f: s.state.Dens.Current()}
}

// VelocityVolumes exposes the live velocity components in axis order.
func (s *Simulation) VelocityVolumes() []Volume {
	bufs := s.state.velocityBuffers()
	out := make([]Volume, len(bufs))
	for i, b := range bufs {
		out[i] = Volume{f: b.Current()}
	}
	return out
}

// Divergence is the sum of squared discrete divergence of the current
// velocity over the interior.
func (s *Simulation) Divergence() float64 {
	return kernel.DivergenceSquares(s.state.Velocity())
}

// DebugSums returns the interior density sum of the field and of the
// pending sources.
func (s *Simulation) DebugSums() (dens, pending float64) {
	return s.state.Dens.Current().InteriorSum(), s.state.Dens.Scratch().InteriorSum()
}
