package fluid

import (
	"context"
	"time"

	"github.com/san-kum/fluidsim/internal/compute"
	"github.com/san-kum/fluidsim/internal/grid"
	"github.com/san-kum/fluidsim/internal/kernel"
)

// Pipeline advances a State by one frame. Both implementations run the same
// stage sequence:
//
//	velocity: add forces, diffuse, project, advect, project
//	density:  add sources, diffuse, advect along the final velocity
//
// Clearing the sources afterwards is the caller's job.
type Pipeline interface {
	Name() string
	Step(ctx context.Context, st *State, p Params) error
}

// Fused runs the whole frame as one sequential pass on the calling
// goroutine.
type Fused struct{}

func (Fused) Name() string { return "fused" }

func (Fused) Step(ctx context.Context, st *State, p Params) error {
	if err := ctx.Err(); err != nil {
		return &StageError{Pipeline: "fused", Stage: "step", Err: err}
	}

	vel := st.velocityBuffers()
	for _, b := range vel {
		kernel.AddSource(b.Current(), b.Scratch(), p.Dt)
	}
	for axis, b := range vel {
		b.Swap()
		kernel.Diffuse(b.Current(), b.Scratch(), grid.Component(axis), p.Viscosity, p.Dt, p.SolverSteps)
	}
	kernel.Project(st.Velocity(), st.U.Scratch(), st.V.Scratch(), p.SolverSteps)

	for _, b := range vel {
		b.Swap()
	}
	prev := st.Previous()
	for axis, b := range vel {
		kernel.Advect(b.Current(), b.Scratch(), prev, grid.Component(axis), p.Dt)
	}
	kernel.Project(st.Velocity(), st.U.Scratch(), st.V.Scratch(), p.SolverSteps)

	d := st.Dens
	kernel.AddSource(d.Current(), d.Scratch(), p.Dt)
	d.Swap()
	kernel.Diffuse(d.Current(), d.Scratch(), grid.Scalar, p.Diffusion, p.Dt, p.SolverSteps)
	d.Swap()
	kernel.Advect(d.Current(), d.Scratch(), st.Velocity(), grid.Scalar, p.Dt)
	return nil
}

// StageObserver receives the wall time of every dispatched stage, keyed by
// the stage label ("diffuse u", "project2", ...).
type StageObserver interface {
	ObserveStage(label string, d time.Duration)
}

// Staged dispatches every stage to a compute backend and waits for it
// before issuing the next one.
type Staged struct {
	backend  compute.Backend
	observer StageObserver
}

type StagedOption func(*Staged)

func WithStageObserver(o StageObserver) StagedOption {
	return func(s *Staged) { s.observer = o }
}

func NewStaged(backend compute.Backend, opts ...StagedOption) *Staged {
	s := &Staged{backend: backend}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Staged) Name() string { return "staged" }

func (s *Staged) Backend() compute.Backend { return s.backend }

var axisNames = [...]string{"u", "v", "w"}

func (s *Staged) Step(ctx context.Context, st *State, p Params) error {
	vel := st.velocityBuffers()
	for axis, b := range vel {
		job := compute.Job{Stage: compute.StageAddSource, Label: "add_source " + axisNames[axis], Dst: b.Current(), Src: b.Scratch(), Dt: p.Dt}
		if err := s.dispatch(ctx, job); err != nil {
			return err
		}
	}
	for axis, b := range vel {
		b.Swap()
		if err := s.diffuse(ctx, b, grid.Component(axis), p.Viscosity, p, "diffuse "+axisNames[axis]); err != nil {
			return err
		}
	}
	if err := s.project(ctx, st, p.SolverSteps); err != nil {
		return err
	}

	for _, b := range vel {
		b.Swap()
	}
	prev := st.Previous()
	for axis, b := range vel {
		if err := s.advect(ctx, b, prev, grid.Component(axis), p.Dt, "advect "+axisNames[axis]); err != nil {
			return err
		}
	}
	if err := s.project(ctx, st, p.SolverSteps); err != nil {
		return err
	}

	d := st.Dens
	if err := s.dispatch(ctx, compute.Job{Stage: compute.StageAddSource, Label: "add_source dens", Dst: d.Current(), Src: d.Scratch(), Dt: p.Dt}); err != nil {
		return err
	}
	d.Swap()
	if err := s.diffuse(ctx, d, grid.Scalar, p.Diffusion, p, "diffuse dens"); err != nil {
		return err
	}
	d.Swap()
	return s.advect(ctx, d, st.Velocity(), grid.Scalar, p.Dt, "advect dens")
}

func (s *Staged) diffuse(ctx context.Context, b *grid.DoubleBuffer, kind grid.Boundary, rate float64, p Params, label string) error {
	x, x0 := b.Current(), b.Scratch()
	a, c := kernel.DiffusionCoefficients(x, rate, p.Dt)
	for range p.SolverSteps {
		if err := s.dispatch(ctx, compute.Job{Stage: compute.StageRelax, Label: label, Dst: x, Src: x0, A: a, C: c}); err != nil {
			return err
		}
		if err := s.dispatch(ctx, compute.Job{Stage: compute.StageBoundary, Label: label, Dst: x, Boundary: kind}); err != nil {
			return err
		}
	}
	return nil
}

// project uses the scratch u and v buffers as pressure and divergence.
func (s *Staged) project(ctx context.Context, st *State, steps int) error {
	vel, p, div := st.Velocity(), st.U.Scratch(), st.V.Scratch()

	jobs := []compute.Job{
		{Stage: compute.StageDivergence, Label: "project1", Dst: div, Aux: p, Vel: vel},
		{Stage: compute.StageBoundary, Label: "project1", Dst: div, Boundary: grid.Scalar},
		{Stage: compute.StageBoundary, Label: "project1", Dst: p, Boundary: grid.Scalar},
	}
	a, c := kernel.PressureCoefficients(p)
	for range steps {
		jobs = append(jobs,
			compute.Job{Stage: compute.StageRelax, Label: "project2", Dst: p, Src: div, A: a, C: c},
			compute.Job{Stage: compute.StageBoundary, Label: "project2", Dst: p, Boundary: grid.Scalar},
		)
	}
	jobs = append(jobs, compute.Job{Stage: compute.StageGradient, Label: "project3", Src: p, Vel: vel})
	for axis, comp := range vel.Components() {
		jobs = append(jobs, compute.Job{Stage: compute.StageBoundary, Label: "project3", Dst: comp, Boundary: grid.Component(axis)})
	}

	for _, job := range jobs {
		if err := s.dispatch(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

func (s *Staged) advect(ctx context.Context, b *grid.DoubleBuffer, along kernel.Velocity, kind grid.Boundary, dt float64, label string) error {
	if err := s.dispatch(ctx, compute.Job{Stage: compute.StageAdvect, Label: label, Dst: b.Current(), Src: b.Scratch(), Vel: along, Dt: dt}); err != nil {
		return err
	}
	return s.dispatch(ctx, compute.Job{Stage: compute.StageBoundary, Label: label, Dst: b.Current(), Boundary: kind})
}

func (s *Staged) dispatch(ctx context.Context, job compute.Job) error {
	start := time.Now()
	if err := s.backend.Dispatch(ctx, job); err != nil {
		return &StageError{Pipeline: s.Name(), Stage: job.Name(), Err: err}
	}
	if s.observer != nil {
		s.observer.ObserveStage(job.Name(), time.Since(start))
	}
	return nil
}
