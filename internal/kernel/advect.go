package kernel

import "github.com/san-kum/fluidsim/internal/grid"

// Advect moves d0 along vel into d with a semi-Lagrangian backtrace and
// rebuilds the ghost cells of d with kind b.
func Advect(d, d0 *grid.Field, vel Velocity, b grid.Boundary, dt float64) {
	AdvectRange(d, d0, vel, dt, 1, d.N)
	grid.Enforce(d, b)
}

// AdvectRange backtraces the interior layers lo..hi. Every cell traces
// pos = cell - dt*N*vel, clamps each coordinate to [0.5, N+0.5] and takes
// the multilinear interpolation of d0 at the enclosing nodes.
func AdvectRange(d, d0 *grid.Field, vel Velocity, dt float64, lo, hi int) {
	n, s := d.N, d.Stride()
	nf := float64(n)
	dt0 := dt * nf
	u, v, src := vel.U.Data, vel.V.Data, d0.Data

	if d.Dim == 2 {
		for j := lo; j <= hi; j++ {
			for i := 1; i <= n; i++ {
				idx := i + s*j
				x := clamp(float64(i)-dt0*u[idx], nf)
				y := clamp(float64(j)-dt0*v[idx], nf)

				i0, j0 := int(x), int(y)
				s1, t1 := x-float64(i0), y-float64(j0)
				s0, t0 := 1-s1, 1-t1

				b := i0 + s*j0
				d.Data[idx] = s0*(t0*src[b]+t1*src[b+s]) +
					s1*(t0*src[b+1]+t1*src[b+1+s])
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
				x := clamp(float64(i)-dt0*u[idx], nf)
				y := clamp(float64(j)-dt0*v[idx], nf)
				z := clamp(float64(k)-dt0*w[idx], nf)

				i0, j0, k0 := int(x), int(y), int(z)
				s1, t1, r1 := x-float64(i0), y-float64(j0), z-float64(k0)
				s0, t0, r0 := 1-s1, 1-t1, 1-r1

				b := i0 + s*j0 + ss*k0
				d.Data[idx] = s0*(t0*(r0*src[b]+r1*src[b+ss])+t1*(r0*src[b+s]+r1*src[b+s+ss])) +
					s1*(t0*(r0*src[b+1]+r1*src[b+1+ss])+t1*(r0*src[b+1+s]+r1*src[b+1+s+ss]))
			}
		}
	}
}

func clamp(x, n float64) float64 {
	if x < 0.5 {
		return 0.5
	}
	if x > n+0.5 {
		return n + 0.5
	}
	return x
}
