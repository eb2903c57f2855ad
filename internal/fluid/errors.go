package fluid

import (
	"errors"
	"fmt"

	"github.com/san-kum/fluidsim/internal/grid"
)

var (
	// ErrInvalidResolution indicates N below one interior cell.
	ErrInvalidResolution = grid.ErrInvalidResolution

	// ErrInvalidParams indicates a parameter outside its valid range.
	ErrInvalidParams = errors.New("fluid: parameter out of valid bounds")
)

// StageError reports the stage that failed during a step. The buffers are
// left mid-pipeline and must not be stepped again.
type StageError struct {
	Frame    int
	Pipeline string
	Stage    string
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("frame %d: %s pipeline: stage %s: %v", e.Frame, e.Pipeline, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
