package fluid

import (
	"fmt"

	"github.com/san-kum/fluidsim/internal/grid"
)

const (
	DefaultN           = 20
	DefaultDim         = 3
	DefaultSolverSteps = 20
	DefaultDt          = 0.1
	DefaultViscosity   = 0.001
	DefaultDiffusion   = 0.0005
	DefaultFluidAmount = 10.0
	DefaultForceAmount = 1000.0
)

// Params holds everything a step reads besides the buffers.
type Params struct {
	N           int
	Dim         int
	SolverSteps int
	Dt          float64
	Viscosity   float64
	Diffusion   float64

	// FluidSeed and ForceSeed are the cells AddFluid and AddForce write.
	// They are clamped into the interior, so they stay valid after a resize.
	FluidSeed   [3]int
	ForceSeed   [3]int
	FluidAmount float64
	ForceAmount float64
	// FluidSplat is the side of the square or cube of cells AddFluid fills.
	FluidSplat int

	Resample grid.ResampleMode
}

func DefaultParams() Params {
	return Params{
		N:           DefaultN,
		Dim:         DefaultDim,
		SolverSteps: DefaultSolverSteps,
		Dt:          DefaultDt,
		Viscosity:   DefaultViscosity,
		Diffusion:   DefaultDiffusion,
		FluidSeed:   [3]int{6, 6, 6},
		ForceSeed:   [3]int{2, 2, 2},
		FluidAmount: DefaultFluidAmount,
		ForceAmount: DefaultForceAmount,
		FluidSplat:  1,
		Resample:    grid.ResampleCopy,
	}
}

func (p Params) Validate() error {
	if p.N < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidResolution, p.N)
	}
	if p.Dim != 2 && p.Dim != 3 {
		return fmt.Errorf("%w: got %d", grid.ErrInvalidDimension, p.Dim)
	}
	if p.SolverSteps < 1 {
		return fmt.Errorf("%w: solver steps must be at least 1, got %d", ErrInvalidParams, p.SolverSteps)
	}
	if p.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %f", ErrInvalidParams, p.Dt)
	}
	if p.Viscosity < 0 || p.Diffusion < 0 {
		return fmt.Errorf("%w: viscosity and diffusion must not be negative", ErrInvalidParams)
	}
	if p.FluidSplat < 1 {
		return fmt.Errorf("%w: fluid splat must be at least 1, got %d", ErrInvalidParams, p.FluidSplat)
	}
	if _, err := grid.ParseResampleMode(string(p.Resample)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

// seedCell clamps a seed so a splat of the given side fits in [1, n].
func seedCell(seed [3]int, n, splat int) [3]int {
	splat = min(splat, n)
	var c [3]int
	for axis, v := range seed {
		c[axis] = min(max(v, 1), n-splat+1)
	}
	return c
}
