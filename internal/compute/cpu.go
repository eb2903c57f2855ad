package compute

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/fluidsim/internal/grid"
	"github.com/san-kum/fluidsim/internal/kernel"
)

// minLayers is the smallest layer count worth splitting across goroutines.
const minLayers = 8

type CPUBackend struct {
	workers int
}

func NewCPUBackend(workers int) *CPUBackend {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &CPUBackend{workers: workers}
}

func (c *CPUBackend) Name() string       { return "cpu" }
func (c *CPUBackend) Class() DeviceClass { return ClassCPU }
func (c *CPUBackend) Available() bool    { return true }
func (c *CPUBackend) Close() error       { return nil }
func (c *CPUBackend) Workers() int       { return c.workers }

// Dispatch runs one stage. Cell-independent stages are split into layer
// slabs across workers; relaxation sweeps and boundary passes run on the
// calling goroutine.
func (c *CPUBackend) Dispatch(ctx context.Context, job Job) error {
	if err := job.Validate(); err != nil {
		return &DispatchError{Backend: c.Name(), Job: job.Name(), Err: err}
	}
	if err := ctx.Err(); err != nil {
		return &DispatchError{Backend: c.Name(), Job: job.Name(), Err: err}
	}

	var err error
	switch job.Stage {
	case StageAddSource:
		err = c.split(ctx, 0, job.Dst.Voxels(), minLayers*job.Dst.Stride(), func(lo, hi int) {
			kernel.AddSourceRange(job.Dst, job.Src, job.Dt, lo, hi)
		})
	case StageRelax:
		kernel.Relax(job.Dst, job.Src, job.A, job.C)
	case StageBoundary:
		grid.Enforce(job.Dst, job.Boundary)
	case StageDivergence:
		err = c.layers(ctx, job.Dst.N, func(lo, hi int) {
			kernel.ComputeDivergence(job.Dst, job.Aux, job.Vel, lo, hi)
		})
	case StageGradient:
		err = c.layers(ctx, job.Src.N, func(lo, hi int) {
			kernel.SubtractGradient(job.Vel, job.Src, lo, hi)
		})
	case StageAdvect:
		err = c.layers(ctx, job.Dst.N, func(lo, hi int) {
			kernel.AdvectRange(job.Dst, job.Src, job.Vel, job.Dt, lo, hi)
		})
	}
	if err != nil {
		return &DispatchError{Backend: c.Name(), Job: job.Name(), Err: err}
	}
	return nil
}

// layers fans fn out over interior layers 1..n, passing inclusive bounds.
func (c *CPUBackend) layers(ctx context.Context, n int, fn func(lo, hi int)) error {
	return c.split(ctx, 1, n+1, minLayers, func(lo, hi int) { fn(lo, hi-1) })
}

// split divides [lo, hi) into one chunk per worker and waits for all of them.
func (c *CPUBackend) split(ctx context.Context, lo, hi, minChunk int, fn func(lo, hi int)) error {
	count := hi - lo
	workers := c.workers
	if count/minChunk < workers {
		workers = count / minChunk
	}
	if workers <= 1 {
		fn(lo, hi)
		return nil
	}

	chunk := (count + workers - 1) / workers
	g, _ := errgroup.WithContext(ctx)
	for start := lo; start < hi; start += chunk {
		end := min(start+chunk, hi)
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("worker panic on [%d,%d): %v", start, end, r)
				}
			}()
			fn(start, end)
			return nil
		})
	}
	return g.Wait()
}
