package kernel

import "github.com/san-kum/fluidsim/internal/grid"

// PressureCoefficients returns the relaxation weights of the Poisson solve.
func PressureCoefficients(p *grid.Field) (a, c float64) {
	return 1, float64(2 * p.Dim)
}

// ComputeDivergence writes -0.5*h*div(vel) into div and zeroes p for the
// interior layers lo..hi (k in 3D, j in 2D).
func ComputeDivergence(div, p *grid.Field, vel Velocity, lo, hi int) {
	n, s := div.N, div.Stride()
	h := 1.0 / float64(n)
	u, v := vel.U.Data, vel.V.Data

	if div.Dim == 2 {
		for j := lo; j <= hi; j++ {
			for i := 1; i <= n; i++ {
				idx := i + s*j
				div.Data[idx] = -0.5 * h * (u[idx+1] - u[idx-1] + v[idx+s] - v[idx-s])
				p.Data[idx] = 0
			}
		}
		return
	}

	ss := s * s
	w := vel.W.Data
	for k := lo; k <= hi; k++ {
		for j := 1; j <= n; j++ {
			for i := 1; i <= n; i++ {
				idx := i + s*j + ss*k
				div.Data[idx] = -0.5 * h * (u[idx+1] - u[idx-1] + v[idx+s] - v[idx-s] + w[idx+ss] - w[idx-ss])
				p.Data[idx] = 0
			}
		}
	}
}

// SubtractGradient removes the central-difference gradient of p from vel
// over the interior layers lo..hi.
func SubtractGradient(vel Velocity, p *grid.Field, lo, hi int) {
	n, s := p.N, p.Stride()
	scale := 0.5 * float64(n)
	u, v, pd := vel.U.Data, vel.V.Data, p.Data

	if p.Dim == 2 {
		for j := lo; j <= hi; j++ {
			for i := 1; i <= n; i++ {
				idx := i + s*j
				u[idx] -= scale * (pd[idx+1] - pd[idx-1])
				v[idx] -= scale * (pd[idx+s] - pd[idx-s])
			}
		}
		return
	}

	ss := s * s
	w := vel.W.Data
	for k := lo; k <= hi; k++ {
		for j := 1; j <= n; j++ {
			for i := 1; i <= n; i++ {
				idx := i + s*j + ss*k
				u[idx] -= scale * (pd[idx+1] - pd[idx-1])
				v[idx] -= scale * (pd[idx+s] - pd[idx-s])
				w[idx] -= scale * (pd[idx+ss] - pd[idx-ss])
			}
		}
	}
}

// Project makes vel divergence free. p and div are working storage.
func Project(vel Velocity, p, div *grid.Field, steps int) {
	n := p.N
	ComputeDivergence(div, p, vel, 1, n)
	grid.Enforce(div, grid.Scalar)
	grid.Enforce(p, grid.Scalar)

	a, c := PressureCoefficients(p)
	for range steps {
		Relax(p, div, a, c)
		grid.Enforce(p, grid.Scalar)
	}

	SubtractGradient(vel, p, 1, n)
	vel.Enforce()
}

// DivergenceSquares sums the squared central-difference divergence of vel
// over the interior, in the same units ComputeDivergence writes.
func DivergenceSquares(vel Velocity) float64 {
	f := vel.U
	n, s := f.N, f.Stride()
	h := 1.0 / float64(n)
	u, v := vel.U.Data, vel.V.Data
	total := 0.0

	if f.Dim == 2 {
		for j := 1; j <= n; j++ {
			for i := 1; i <= n; i++ {
				idx := i + s*j
				d := -0.5 * h * (u[idx+1] - u[idx-1] + v[idx+s] - v[idx-s])
				total += d * d
			}
		}
		return total
	}

	ss := s * s
	w := vel.W.Data
	for k := 1; k <= n; k++ {
		for j := 1; j <= n; j++ {
			for i := 1; i <= n; i++ {
				idx := i + s*j + ss*k
				d := -0.5 * h * (u[idx+1] - u[idx-1] + v[idx+s] - v[idx-s] + w[idx+ss] - w[idx-ss])
				total += d * d
			}
		}
	}
	return total
}
