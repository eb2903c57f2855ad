package fluid

import (
	"github.com/san-kum/fluidsim/internal/grid"
	"github.com/san-kum/fluidsim/internal/kernel"
)

// State owns the buffer pairs of every simulated quantity. Current buffers
// are the fields; scratch buffers collect sources between steps. W is nil
// for 2D lattices.
type State struct {
	Dens    *grid.DoubleBuffer
	U, V, W *grid.DoubleBuffer
}

// NewState allocates zeroed buffers. Every allocation completes before the
// state is returned, so a failure leaves no partial state behind.
func NewState(n, dim int) (*State, error) {
	count := dim + 1
	bufs := make([]*grid.DoubleBuffer, count)
	for i := range bufs {
		b, err := grid.NewDoubleBuffer(n, dim)
		if err != nil {
			return nil, err
		}
		bufs[i] = b
	}

	st := &State{Dens: bufs[0], U: bufs[1], V: bufs[2]}
	if dim == 3 {
		st.W = bufs[3]
	}
	return st, nil
}

func (s *State) N() int { return s.Dens.N() }

// Velocity returns the current velocity components.
func (s *State) Velocity() kernel.Velocity {
	v := kernel.Velocity{U: s.U.Current(), V: s.V.Current()}
	if s.W != nil {
		v.W = s.W.Current()
	}
	return v
}

// Previous returns the scratch velocity components.
func (s *State) Previous() kernel.Velocity {
	v := kernel.Velocity{U: s.U.Scratch(), V: s.V.Scratch()}
	if s.W != nil {
		v.W = s.W.Scratch()
	}
	return v
}

func (s *State) velocityBuffers() []*grid.DoubleBuffer {
	if s.W == nil {
		return []*grid.DoubleBuffer{s.U, s.V}
	}
	return []*grid.DoubleBuffer{s.U, s.V, s.W}
}

// buffers lists density first, then the velocity components in axis order.
func (s *State) buffers() []*grid.DoubleBuffer {
	return append([]*grid.DoubleBuffer{s.Dens}, s.velocityBuffers()...)
}

// ClearSources zeroes every scratch buffer.
func (s *State) ClearSources() {
	for _, b := range s.buffers() {
		b.Scratch().Zero()
	}
}

// ClearFields zeroes every current buffer.
func (s *State) ClearFields() {
	for _, b := range s.buffers() {
		b.Current().Zero()
	}
}

// bufferBoundary returns the ghost rule of the i-th buffer from buffers().
func bufferBoundary(i int) grid.Boundary {
	if i == 0 {
		return grid.Scalar
	}
	return grid.Component(i - 1)
}
