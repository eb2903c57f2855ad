package grid

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrInvalidResolution indicates a grid side below one interior cell.
	ErrInvalidResolution = errors.New("grid: resolution must be at least 1")

	// ErrInvalidDimension indicates a lattice that is neither 2D nor 3D.
	ErrInvalidDimension = errors.New("grid: dimension must be 2 or 3")

	// ErrShapeMismatch indicates fields of different N or Dim used together.
	ErrShapeMismatch = errors.New("grid: field shapes differ")
)

// Field is a dense lattice of side N with one ghost layer on every face.
// Data holds (N+2)^Dim values laid out with i varying fastest.
type Field struct {
	N    int
	Dim  int
	Data []float64
}

// NewField allocates a zero-filled field. Arguments are validated before
// any allocation happens.
func NewField(n, dim int) (*Field, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidResolution, n)
	}
	if dim != 2 && dim != 3 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDimension, dim)
	}
	return &Field{N: n, Dim: dim, Data: make([]float64, Voxels(n, dim))}, nil
}

// Voxels returns the buffer length for side n, ghost cells included.
func Voxels(n, dim int) int {
	s := n + 2
	if dim == 2 {
		return s * s
	}
	return s * s * s
}

// Stride is the linear side length N+2.
func (f *Field) Stride() int { return f.N + 2 }

// Index maps (i, j, k) to a flat offset. k is ignored for 2D fields.
func (f *Field) Index(i, j, k int) int {
	s := f.N + 2
	if f.Dim == 2 {
		return i + s*j
	}
	return i + s*j + s*s*k
}

func (f *Field) At(i, j, k int) float64 { return f.Data[f.Index(i, j, k)] }

func (f *Field) Set(i, j, k int, v float64) { f.Data[f.Index(i, j, k)] = v }

func (f *Field) Voxels() int { return len(f.Data) }

// Zero clears every cell, ghosts included.
func (f *Field) Zero() {
	clear(f.Data)
}

func (f *Field) Clone() *Field {
	data := make([]float64, len(f.Data))
	copy(data, f.Data)
	return &Field{N: f.N, Dim: f.Dim, Data: data}
}

// SameShape reports whether o can be consumed together with f in one stage.
func (f *Field) SameShape(o *Field) bool {
	return o != nil && f.N == o.N && f.Dim == o.Dim && len(f.Data) == len(o.Data)
}

// Sum adds every cell, ghosts included.
func (f *Field) Sum() float64 {
	return floats.Sum(f.Data)
}

// InteriorSum adds the cells in [1, N] on every axis.
func (f *Field) InteriorSum() float64 {
	s := f.Stride()
	total := 0.0
	if f.Dim == 2 {
		for j := 1; j <= f.N; j++ {
			row := j * s
			total += floats.Sum(f.Data[row+1 : row+f.N+1])
		}
		return total
	}
	for k := 1; k <= f.N; k++ {
		for j := 1; j <= f.N; j++ {
			row := j*s + k*s*s
			total += floats.Sum(f.Data[row+1 : row+f.N+1])
		}
	}
	return total
}

// Depth is the number of k layers: 1 for 2D, N+2 for 3D.
func (f *Field) Depth() int {
	if f.Dim == 2 {
		return 1
	}
	return f.N + 2
}
