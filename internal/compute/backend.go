package compute

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// DeviceClass groups backends with similar cost curves.
type DeviceClass int

const (
	ClassCPU DeviceClass = iota
	ClassGPU
)

func (c DeviceClass) String() string {
	if c == ClassGPU {
		return "gpu"
	}
	return "cpu"
}

// Backend runs solver stages. Dispatch returns only once the stage has
// completed, so consecutive dispatches never overlap.
type Backend interface {
	Name() string
	Class() DeviceClass
	Available() bool
	Dispatch(ctx context.Context, job Job) error
	Close() error
}

// Options configure Open.
type Options struct {
	// Workers bounds CPU fan-out. Zero uses every logical CPU.
	Workers int
	// Device prefers an OpenCL device type: "gpu" or "cpu".
	Device string
	Logger *zap.Logger
}

// Open constructs the named backend. The caller owns it and must Close it.
func Open(name string, opts Options) (Backend, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	switch name {
	case "cpu":
		return NewCPUBackend(opts.Workers), nil
	case "opencl":
		b, err := NewOpenCLBackend(opts.Device)
		if err != nil {
			return nil, fmt.Errorf("%w: opencl: %v", ErrBackendUnavailable, err)
		}
		return b, nil
	case "", "auto":
		return AutoSelect(opts, logger), nil
	}
	return nil, fmt.Errorf("unknown backend: %s", name)
}

// AutoSelect prefers OpenCL and falls back to the CPU backend.
func AutoSelect(opts Options, logger *zap.Logger) Backend {
	b, err := NewOpenCLBackend(opts.Device)
	if err == nil && b.Available() {
		return b
	}
	if err != nil {
		logger.Debug("opencl unavailable, using cpu", zap.Error(err))
	}
	return NewCPUBackend(opts.Workers)
}
