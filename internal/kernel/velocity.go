package kernel

import "github.com/san-kum/fluidsim/internal/grid"

// Velocity groups one field per axis. W is nil for 2D lattices.
type Velocity struct {
	U, V, W *grid.Field
}

// Components returns the axis fields in order u, v[, w].
func (v Velocity) Components() []*grid.Field {
	if v.W == nil {
		return []*grid.Field{v.U, v.V}
	}
	return []*grid.Field{v.U, v.V, v.W}
}

// Enforce applies each component's own boundary kind.
func (v Velocity) Enforce() {
	for axis, c := range v.Components() {
		grid.Enforce(c, grid.Component(axis))
	}
}
