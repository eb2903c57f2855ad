// Package viz renders a running fluid simulation in the terminal.
//
// Density is dithered onto a braille [Canvas], either as a projection
// along k or as a single k layer, with an optional velocity overlay. The
// [Model] is a Bubble Tea program that advances a sim.Runner once per tick.
//
// # Key Bindings
//
//	Space - Pause/Resume
//	F / G - Inject fluid / force at the seed cells
//	R     - Reset the fields
//	C     - Clear pending sources
//	+ / - - Grow or shrink the grid by one cell
//	[ / ] - Move the slice layer
//	P     - Toggle projection and slice
//	V     - Toggle the velocity overlay
//	D     - Show density and pending source sums
//	T     - Cycle color themes
//	O     - Toggle GIF recording
//	?     - Help overlay
package viz
