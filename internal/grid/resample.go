package grid

import "fmt"

// ResampleMode picks how primary fields carry over a resize.
type ResampleMode string

const (
	// ResampleCopy keeps each cell at its index over the overlap cube of
	// side min(N0, N)+2. Cells outside the old extent stay zero.
	ResampleCopy ResampleMode = "copy"
	// ResampleNearest stretches the old interior over the new one, taking
	// the nearest old cell for every new interior cell.
	ResampleNearest ResampleMode = "nearest"
)

func ParseResampleMode(s string) (ResampleMode, error) {
	switch ResampleMode(s) {
	case "", ResampleCopy:
		return ResampleCopy, nil
	case ResampleNearest:
		return ResampleNearest, nil
	}
	return "", fmt.Errorf("unknown resample mode: %s", s)
}

// Resample writes src into dst according to mode. dst must be zeroed by the
// caller; Resample only writes cells that receive data.
func Resample(dst, src *Field, mode ResampleMode) error {
	if dst.Dim != src.Dim {
		return fmt.Errorf("%w: dim %d vs %d", ErrShapeMismatch, dst.Dim, src.Dim)
	}
	if mode == ResampleNearest && dst.N != src.N {
		resampleNearest(dst, src)
		return nil
	}
	resampleCopy(dst, src)
	return nil
}

func resampleCopy(dst, src *Field) {
	m := min(dst.N, src.N) + 2
	depth := m
	if dst.Dim == 2 {
		depth = 1
	}
	for k := 0; k < depth; k++ {
		for j := 0; j < m; j++ {
			d := dst.Index(0, j, k)
			s := src.Index(0, j, k)
			copy(dst.Data[d:d+m], src.Data[s:s+m])
		}
	}
}

func resampleNearest(dst, src *Field) {
	n, n0 := dst.N, src.N
	scale := float64(n0) / float64(n)
	near := func(c int) int {
		o := int((float64(c)-0.5)*scale) + 1
		return min(max(o, 1), n0)
	}

	if dst.Dim == 2 {
		for j := 1; j <= n; j++ {
			for i := 1; i <= n; i++ {
				dst.Data[dst.Index(i, j, 0)] = src.Data[src.Index(near(i), near(j), 0)]
			}
		}
		return
	}
	for k := 1; k <= n; k++ {
		for j := 1; j <= n; j++ {
			for i := 1; i <= n; i++ {
				dst.Data[dst.Index(i, j, k)] = src.Data[src.Index(near(i), near(j), near(k))]
			}
		}
	}
}
