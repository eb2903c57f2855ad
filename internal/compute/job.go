package compute

import (
	"errors"
	"fmt"

	"github.com/san-kum/fluidsim/internal/grid"
	"github.com/san-kum/fluidsim/internal/kernel"
)

// Stage identifies one dispatchable unit of the solver pipeline.
type Stage int

const (
	StageAddSource Stage = iota
	StageRelax
	StageBoundary
	StageDivergence
	StageGradient
	StageAdvect
)

var stageNames = [...]string{
	StageAddSource:  "add_source",
	StageRelax:      "relax",
	StageBoundary:   "set_bnd",
	StageDivergence: "project_divergence",
	StageGradient:   "project_gradient",
	StageAdvect:     "advect",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

var (
	// ErrUnknownStage indicates a job whose stage no backend implements.
	ErrUnknownStage = errors.New("compute: unknown stage")

	// ErrIncompleteJob indicates a job missing a field its stage reads or writes.
	ErrIncompleteJob = errors.New("compute: job is missing a field")

	// ErrBackendUnavailable indicates a backend that cannot run on this host.
	ErrBackendUnavailable = errors.New("compute: backend unavailable")
)

// Job describes one stage over concrete buffers.
//
//	AddSource:  Dst += Dt*Src
//	Relax:      one sweep, Dst = (Src + A*neighbours(Dst)) / C
//	Boundary:   Enforce(Dst, Boundary)
//	Divergence: Dst = div(Vel), Aux = 0
//	Gradient:   Vel -= grad(Src)
//	Advect:     Dst = Src traced back along Vel over Dt
type Job struct {
	Stage    Stage
	Label    string
	Dst      *grid.Field
	Src      *grid.Field
	Aux      *grid.Field
	Vel      kernel.Velocity
	Boundary grid.Boundary
	A, C     float64
	Dt       float64
}

// Name returns the label used in diagnostics and profiles.
func (j Job) Name() string {
	if j.Label != "" {
		return j.Label
	}
	return j.Stage.String()
}

// Validate checks the job carries every field its stage needs with a common
// shape.
func (j Job) Validate() error {
	var need []*grid.Field
	switch j.Stage {
	case StageAddSource, StageRelax:
		need = []*grid.Field{j.Dst, j.Src}
	case StageBoundary:
		need = []*grid.Field{j.Dst}
	case StageDivergence:
		need = append([]*grid.Field{j.Dst, j.Aux}, j.velocity()...)
	case StageGradient:
		need = append([]*grid.Field{j.Src}, j.velocity()...)
	case StageAdvect:
		need = append([]*grid.Field{j.Dst, j.Src}, j.velocity()...)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownStage, int(j.Stage))
	}

	for _, f := range need {
		if f == nil {
			return fmt.Errorf("%w: %s", ErrIncompleteJob, j.Name())
		}
		if !f.SameShape(need[0]) {
			return fmt.Errorf("%s: %w", j.Name(), grid.ErrShapeMismatch)
		}
	}
	return nil
}

func (j Job) velocity() []*grid.Field {
	if j.Vel.U == nil || j.Vel.V == nil {
		return []*grid.Field{nil}
	}
	if j.Vel.U.Dim == 3 {
		return []*grid.Field{j.Vel.U, j.Vel.V, j.Vel.W}
	}
	return []*grid.Field{j.Vel.U, j.Vel.V}
}

// DispatchError reports a failed stage.
type DispatchError struct {
	Backend string
	Job     string
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s: dispatch %s: %v", e.Backend, e.Job, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
