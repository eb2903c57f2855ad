// Package fluid runs the stable-fluids step over a grid State.
//
// A Simulation owns the density and velocity buffer pairs and a Pipeline.
// Input handling writes impulses into the scratch buffers through AddFluid,
// AddForce and their At variants; Step consumes them and clears them.
//
// # Pipelines
//
//   - Fused: one sequential pass on the calling goroutine
//   - Staged: one compute.Job per stage, each awaited before the next
//
// The two produce identical fields on the CPU backend.
//
// # Resolution
//
// Resize reallocates every buffer at the new N, resamples density and
// velocity and zeroes the sources. It must run between frames.
package fluid
