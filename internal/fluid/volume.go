package fluid

import "github.com/san-kum/fluidsim/internal/grid"

// Volume is a read-only view of one live field.
//
// It aliases the simulation's storage without copying: the next Step
// rewrites the values in place, and after a Resize the view keeps pointing
// at the old, detached buffer. Call Snapshot to keep values across frames.
type Volume struct {
	f *grid.Field
}

func (v Volume) N() int   { return v.f.N }
func (v Volume) Dim() int { return v.f.Dim }

func (v Volume) At(i, j, k int) float64 { return v.f.At(i, j, k) }

// Values returns the backing slice, ghost cells included. Callers must not
// write to it.
func (v Volume) Values() []float64 { return v.f.Data }

// Snapshot copies the field.
func (v Volume) Snapshot() *grid.Field { return v.f.Clone() }

func (v Volume) InteriorSum() float64 { return v.f.InteriorSum() }

// Max returns the largest interior value.
func (v Volume) Max() float64 {
	n := v.f.N
	best := v.f.At(1, 1, 1)
	depth := n
	if v.f.Dim == 2 {
		depth = 1
	}
	for k := 1; k <= depth; k++ {
		for j := 1; j <= n; j++ {
			for i := 1; i <= n; i++ {
				best = max(best, v.f.At(i, j, k))
			}
		}
	}
	return best
}

// Rows returns the interior rows of the field, each aliasing N values of
// the live buffer.
func (v Volume) Rows() [][]float64 {
	f := v.f
	n := f.N
	depth := n
	if f.Dim == 2 {
		depth = 1
	}
	rows := make([][]float64, 0, n*depth)
	for k := 1; k <= depth; k++ {
		for j := 1; j <= n; j++ {
			start := f.Index(1, j, k)
			rows = append(rows, f.Data[start:start+n:start+n])
		}
	}
	return rows
}
