package grid

// Boundary selects how ghost cells mirror the interior.
type Boundary int

const (
	// Scalar mirrors every face unchanged (density, pressure, divergence).
	Scalar Boundary = iota
	// X negates on the i faces (u component).
	X
	// Y negates on the j faces (v component).
	Y
	// Z negates on the k faces (w component, 3D only).
	Z
)

func (b Boundary) String() string {
	switch b {
	case X:
		return "x"
	case Y:
		return "y"
	case Z:
		return "z"
	default:
		return "scalar"
	}
}

// Component returns the boundary kind of velocity component axis (0, 1, 2).
func Component(axis int) Boundary {
	return Boundary(axis + 1)
}

func (b Boundary) sign(axis Boundary) float64 {
	if b == axis {
		return -1
	}
	return 1
}

// Enforce fills every ghost cell of f from the interior. Faces copy the
// adjacent interior value, negated on the faces orthogonal to the kind's
// own axis. In 3D each edge copies its neighbour on one face ghost; corners
// average the adjacent ghost cells.
func Enforce(f *Field, b Boundary) {
	if f.Dim == 2 {
		enforce2D(f, b)
		return
	}
	enforce3D(f, b)
}

func enforce2D(f *Field, b Boundary) {
	n, s, x := f.N, f.N+2, f.Data
	sx, sy := b.sign(X), b.sign(Y)

	for t := 1; t <= n; t++ {
		x[0+s*t] = sx * x[1+s*t]
		x[n+1+s*t] = sx * x[n+s*t]
		x[t] = sy * x[t+s]
		x[t+s*(n+1)] = sy * x[t+s*n]
	}

	x[0] = 0.5 * (x[1] + x[s])
	x[s*(n+1)] = 0.5 * (x[1+s*(n+1)] + x[s*n])
	x[n+1] = 0.5 * (x[n] + x[n+1+s])
	x[n+1+s*(n+1)] = 0.5 * (x[n+s*(n+1)] + x[n+1+s*n])
}

func enforce3D(f *Field, b Boundary) {
	n, s, x := f.N, f.N+2, f.Data
	ss := s * s
	sx, sy, sz := b.sign(X), b.sign(Y), b.sign(Z)
	ix := func(i, j, k int) int { return i + s*j + ss*k }

	for c := 1; c <= n; c++ {
		for a := 1; a <= n; a++ {
			x[ix(0, a, c)] = sx * x[ix(1, a, c)]
			x[ix(n+1, a, c)] = sx * x[ix(n, a, c)]
			x[ix(a, 0, c)] = sy * x[ix(a, 1, c)]
			x[ix(a, n+1, c)] = sy * x[ix(a, n, c)]
			x[ix(a, c, 0)] = sz * x[ix(a, c, 1)]
			x[ix(a, c, n+1)] = sz * x[ix(a, c, n)]
		}
	}

	for t := 1; t <= n; t++ {
		// edges along i take the j rule from the k face ghosts
		x[ix(t, 0, 0)] = sy * x[ix(t, 1, 0)]
		x[ix(t, n+1, 0)] = sy * x[ix(t, n, 0)]
		x[ix(t, 0, n+1)] = sy * x[ix(t, 1, n+1)]
		x[ix(t, n+1, n+1)] = sy * x[ix(t, n, n+1)]

		// edges along j and k take the i rule
		x[ix(0, t, 0)] = sx * x[ix(1, t, 0)]
		x[ix(n+1, t, 0)] = sx * x[ix(n, t, 0)]
		x[ix(0, t, n+1)] = sx * x[ix(1, t, n+1)]
		x[ix(n+1, t, n+1)] = sx * x[ix(n, t, n+1)]

		x[ix(0, 0, t)] = sx * x[ix(1, 0, t)]
		x[ix(n+1, 0, t)] = sx * x[ix(n, 0, t)]
		x[ix(0, n+1, t)] = sx * x[ix(1, n+1, t)]
		x[ix(n+1, n+1, t)] = sx * x[ix(n, n+1, t)]
	}

	for _, ci := range [2]int{0, n + 1} {
		ii := inward(ci, n)
		for _, cj := range [2]int{0, n + 1} {
			jj := inward(cj, n)
			for _, ck := range [2]int{0, n + 1} {
				kk := inward(ck, n)
				x[ix(ci, cj, ck)] = (x[ix(ii, cj, ck)] + x[ix(ci, jj, ck)] + x[ix(ci, cj, kk)]) / 3
			}
		}
	}
}

func inward(c, n int) int {
	if c == 0 {
		return 1
	}
	return n
}
