// Package grid provides the lattice storage shared by every solver stage.
//
// A Field of side N stores (N+2)^Dim values: the interior [1, N] on each axis
// plus one ghost layer per face. Ghost cells never hold physical data; they
// are rebuilt by Enforce after every stage that writes the interior.
//
// # Layout
//
//	index(i, j, k) = i + (N+2)*j + (N+2)^2*k
//
// # Buffers
//
// Every simulated quantity lives in a DoubleBuffer. Stages read the scratch
// buffer and write the current one, then Swap exchanges the two:
//
//	d.Swap()
//	kernel.Diffuse(d.Current(), d.Scratch(), grid.Scalar, rate, dt, steps)
package grid
