package grid

// DoubleBuffer owns the two buffers of one simulated quantity. The current
// buffer holds the field; the scratch buffer receives sources between steps
// and serves as working storage inside a step. Swap exchanges the roles
// without copying.
type DoubleBuffer struct {
	bufs [2]*Field
	cur  int
}

func NewDoubleBuffer(n, dim int) (*DoubleBuffer, error) {
	a, err := NewField(n, dim)
	if err != nil {
		return nil, err
	}
	b, err := NewField(n, dim)
	if err != nil {
		return nil, err
	}
	return &DoubleBuffer{bufs: [2]*Field{a, b}}, nil
}

// WrapDoubleBuffer builds a buffer pair from existing fields, current first.
func WrapDoubleBuffer(current, scratch *Field) (*DoubleBuffer, error) {
	if !current.SameShape(scratch) {
		return nil, ErrShapeMismatch
	}
	return &DoubleBuffer{bufs: [2]*Field{current, scratch}}, nil
}

func (d *DoubleBuffer) Current() *Field { return d.bufs[d.cur] }

func (d *DoubleBuffer) Scratch() *Field { return d.bufs[1-d.cur] }

func (d *DoubleBuffer) Swap() { d.cur = 1 - d.cur }

// Zero clears both buffers.
func (d *DoubleBuffer) Zero() {
	d.bufs[0].Zero()
	d.bufs[1].Zero()
}

func (d *DoubleBuffer) N() int { return d.bufs[0].N }
