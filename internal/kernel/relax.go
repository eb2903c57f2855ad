package kernel

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/fluidsim/internal/grid"
)

// AddSource adds dt*s to x over every cell.
func AddSource(x, s *grid.Field, dt float64) {
	floats.AddScaled(x.Data, dt, s.Data)
}

// AddSourceRange is AddSource restricted to flat offsets [lo, hi).
func AddSourceRange(x, s *grid.Field, dt float64, lo, hi int) {
	floats.AddScaled(x.Data[lo:hi], dt, s.Data[lo:hi])
}

// Relax runs one in-place Gauss-Seidel sweep over the interior:
//
//	x = (x0 + a*sum(axis neighbours of x)) / c
//
// Neighbours are read from x itself, so cells updated earlier in the sweep
// feed the ones after them.
func Relax(x, x0 *grid.Field, a, c float64) {
	n, s := x.N, x.Stride()
	xd, bd := x.Data, x0.Data

	if x.Dim == 2 {
		for j := 1; j <= n; j++ {
			for i := 1; i <= n; i++ {
				idx := i + s*j
				xd[idx] = (bd[idx] + a*(xd[idx-1]+xd[idx+1]+xd[idx-s]+xd[idx+s])) / c
			}
		}
		return
	}

	ss := s * s
	for k := 1; k <= n; k++ {
		for j := 1; j <= n; j++ {
			for i := 1; i <= n; i++ {
				idx := i + s*j + ss*k
				xd[idx] = (bd[idx] + a*(xd[idx-1]+xd[idx+1]+xd[idx-s]+xd[idx+s]+xd[idx-ss]+xd[idx+ss])) / c
			}
		}
	}
}

// DiffusionCoefficients returns the relaxation weights for rate over dt.
func DiffusionCoefficients(x *grid.Field, rate, dt float64) (a, c float64) {
	n := float64(x.N)
	a = dt * rate * n * n
	return a, 1 + float64(2*x.Dim)*a
}

// Diffuse solves (I - a*Laplacian) x = x0 with steps relaxation sweeps,
// rebuilding ghost cells after each one.
func Diffuse(x, x0 *grid.Field, b grid.Boundary, rate, dt float64, steps int) {
	a, c := DiffusionCoefficients(x, rate, dt)
	for range steps {
		Relax(x, x0, a, c)
		grid.Enforce(x, b)
	}
}
