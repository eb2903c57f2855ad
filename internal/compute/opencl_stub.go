//go:build !opencl

package compute

import (
	"context"
	"errors"
)

var errOpenCLDisabled = errors.New("OpenCL support is not enabled; rebuild with -tags opencl")

type OpenCLBackend struct{}

func NewOpenCLBackend(device string) (*OpenCLBackend, error) {
	return nil, errOpenCLDisabled
}

func (b *OpenCLBackend) Name() string       { return "opencl (not available)" }
func (b *OpenCLBackend) Class() DeviceClass { return ClassGPU }
func (b *OpenCLBackend) Available() bool    { return false }
func (b *OpenCLBackend) Close() error       { return nil }

func (b *OpenCLBackend) Dispatch(ctx context.Context, job Job) error {
	return &DispatchError{Backend: b.Name(), Job: job.Name(), Err: errOpenCLDisabled}
}
