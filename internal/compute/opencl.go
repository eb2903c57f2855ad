//go:build opencl

package compute

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jgillich/go-opencl/cl"

	"github.com/san-kum/fluidsim/internal/grid"
)

var kernelNames = map[Stage]string{
	StageAddSource:  "add_source",
	StageRelax:      "relax",
	StageBoundary:   "set_bnd",
	StageDivergence: "divergence",
	StageGradient:   "gradient",
	StageAdvect:     "advect",
}

// OpenCLBackend runs each stage as one NDRange launch. Host fields stay
// authoritative: a dispatch uploads the fields its stage touches, launches,
// and reads the written ones back before returning.
type OpenCLBackend struct {
	context *cl.Context
	queue   *cl.CommandQueue
	program *cl.Program
	kernels map[Stage]*cl.Kernel
	device  string
	class   DeviceClass

	voxels  int
	buffers []*cl.MemObject
	staging [][]float32
}

// NewOpenCLBackend picks the first device of the preferred type ("gpu" or
// "cpu") and falls back to any other type.
func NewOpenCLBackend(preferred string) (*OpenCLBackend, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		msg := "querying OpenCL platforms"
		if strings.Contains(err.Error(), "-1001") {
			msg += ": no ICD loader reported any platforms"
		}
		return nil, fmt.Errorf("%s: %w", msg, err)
	}
	if len(platforms) == 0 {
		return nil, errors.New("no OpenCL platforms available")
	}

	order := []cl.DeviceType{cl.DeviceTypeGPU, cl.DeviceTypeCPU}
	if preferred == "cpu" {
		order[0], order[1] = order[1], order[0]
	}

	var device *cl.Device
	class := ClassGPU
	for _, typ := range order {
		for _, p := range platforms {
			devices, derr := p.GetDevices(typ)
			if derr != nil && derr != cl.ErrDeviceNotFound {
				continue
			}
			if len(devices) > 0 {
				device = devices[0]
				break
			}
		}
		if device != nil {
			if typ == cl.DeviceTypeCPU {
				class = ClassCPU
			}
			break
		}
	}
	if device == nil {
		return nil, errors.New("no suitable OpenCL devices found")
	}

	context, err := cl.CreateContext([]*cl.Device{device})
	if err != nil {
		return nil, fmt.Errorf("creating OpenCL context: %w", err)
	}
	b := &OpenCLBackend{
		context: context,
		kernels: make(map[Stage]*cl.Kernel, len(kernelNames)),
		device:  device.Name(),
		class:   class,
	}

	b.queue, err = context.CreateCommandQueue(device, 0)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("creating command queue: %w", err)
	}

	b.program, err = context.CreateProgramWithSource([]string{fluidKernelSource})
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("creating program: %w", err)
	}
	if err := b.program.BuildProgram([]*cl.Device{device}, ""); err != nil {
		b.Close()
		var buildErr cl.BuildError
		if errors.As(err, &buildErr) {
			return nil, fmt.Errorf("building program: %s", string(buildErr))
		}
		return nil, fmt.Errorf("building program: %w", err)
	}

	for stage, name := range kernelNames {
		k, err := b.program.CreateKernel(name)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("creating kernel %s: %w", name, err)
		}
		b.kernels[stage] = k
	}

	return b, nil
}

func (b *OpenCLBackend) Name() string       { return "opencl:" + b.device }
func (b *OpenCLBackend) Class() DeviceClass { return b.class }
func (b *OpenCLBackend) Available() bool    { return b.queue != nil }

func (b *OpenCLBackend) Dispatch(ctx context.Context, job Job) error {
	if err := job.Validate(); err != nil {
		return &DispatchError{Backend: b.Name(), Job: job.Name(), Err: err}
	}
	if err := ctx.Err(); err != nil {
		return &DispatchError{Backend: b.Name(), Job: job.Name(), Err: err}
	}
	if err := b.run(job); err != nil {
		return &DispatchError{Backend: b.Name(), Job: job.Name(), Err: err}
	}
	return nil
}

func (b *OpenCLBackend) run(job Job) error {
	shape := job.Dst
	if shape == nil {
		shape = job.Src
	}
	n, dim := int32(shape.N), int32(shape.Dim)
	depth := 1
	if shape.Dim == 3 {
		depth = shape.N
	}
	interior := []int{shape.N, shape.N, depth}

	var (
		fields  []*grid.Field
		written []*grid.Field
		global  = interior
	)
	vel := job.Vel.Components()
	if len(vel) == 2 {
		// 2D kernels never read w; bind u in its slot.
		vel = append(vel, vel[0])
	}

	switch job.Stage {
	case StageAddSource:
		fields, written = []*grid.Field{job.Dst, job.Src}, []*grid.Field{job.Dst}
		global = []int{shape.Voxels()}
	case StageRelax:
		fields, written = []*grid.Field{job.Dst, job.Src}, []*grid.Field{job.Dst}
	case StageBoundary:
		fields, written = []*grid.Field{job.Dst}, []*grid.Field{job.Dst}
		global = []int{1}
	case StageDivergence:
		fields = append([]*grid.Field{job.Dst, job.Aux}, vel...)
		written = []*grid.Field{job.Dst, job.Aux}
	case StageGradient:
		fields = append(vel, job.Src)
		written = job.Vel.Components()
	case StageAdvect:
		fields = append([]*grid.Field{job.Dst, job.Src}, vel...)
		written = []*grid.Field{job.Dst}
	default:
		return ErrUnknownStage
	}

	bufs, err := b.upload(fields)
	if err != nil {
		return err
	}

	var args []interface{}
	switch job.Stage {
	case StageAddSource:
		args = []interface{}{int32(shape.Voxels()), float32(job.Dt), bufs[0], bufs[1]}
	case StageRelax:
		args = []interface{}{n, dim, float32(job.A), float32(job.C), bufs[0], bufs[1]}
	case StageBoundary:
		args = []interface{}{n, dim, int32(job.Boundary), bufs[0]}
	case StageDivergence:
		args = []interface{}{n, dim, bufs[0], bufs[1], bufs[2], bufs[3], bufs[4]}
	case StageGradient:
		args = []interface{}{n, dim, bufs[0], bufs[1], bufs[2], bufs[3]}
	case StageAdvect:
		args = []interface{}{n, dim, float32(job.Dt), bufs[0], bufs[1], bufs[2], bufs[3], bufs[4]}
	}

	k := b.kernels[job.Stage]
	if err := k.SetArgs(args...); err != nil {
		return fmt.Errorf("setting kernel arguments: %w", err)
	}
	if _, err := b.queue.EnqueueNDRangeKernel(k, nil, global, nil, nil); err != nil {
		return fmt.Errorf("enqueueing kernel: %w", err)
	}
	if err := b.queue.Finish(); err != nil {
		return fmt.Errorf("waiting for kernel: %w", err)
	}

	return b.download(fields, written)
}

// upload copies each distinct field into its own device buffer. A field
// listed twice shares the first buffer.
func (b *OpenCLBackend) upload(fields []*grid.Field) ([]*cl.MemObject, error) {
	if err := b.ensure(fields[0].Voxels(), len(fields)); err != nil {
		return nil, err
	}

	bufs := make([]*cl.MemObject, len(fields))
	for i, f := range fields {
		if j := indexOf(fields[:i], f); j >= 0 {
			bufs[i] = bufs[j]
			continue
		}
		stage := b.staging[i]
		for c, v := range f.Data {
			stage[c] = float32(v)
		}
		if _, err := b.queue.EnqueueWriteBufferFloat32(b.buffers[i], false, 0, stage, nil); err != nil {
			return nil, fmt.Errorf("writing buffer %d: %w", i, err)
		}
		bufs[i] = b.buffers[i]
	}
	return bufs, nil
}

func (b *OpenCLBackend) download(fields, written []*grid.Field) error {
	for _, f := range written {
		i := indexOf(fields, f)
		stage := b.staging[i]
		if _, err := b.queue.EnqueueReadBufferFloat32(b.buffers[i], true, 0, stage, nil); err != nil {
			return fmt.Errorf("reading buffer %d: %w", i, err)
		}
		for c, v := range stage {
			f.Data[c] = float64(v)
		}
	}
	return nil
}

// ensure keeps at least count device buffers of the given voxel count,
// reallocating all of them when the lattice was resized.
func (b *OpenCLBackend) ensure(voxels, count int) error {
	if voxels != b.voxels {
		b.releaseBuffers()
		b.voxels = voxels
	}
	for len(b.buffers) < count {
		buf, err := b.context.CreateEmptyBuffer(cl.MemReadWrite, voxels*4)
		if err != nil {
			return fmt.Errorf("allocating device buffer: %w", err)
		}
		b.buffers = append(b.buffers, buf)
		b.staging = append(b.staging, make([]float32, voxels))
	}
	return nil
}

func (b *OpenCLBackend) releaseBuffers() {
	for _, buf := range b.buffers {
		buf.Release()
	}
	b.buffers = nil
	b.staging = nil
}

func (b *OpenCLBackend) Close() error {
	b.releaseBuffers()
	for stage, k := range b.kernels {
		k.Release()
		delete(b.kernels, stage)
	}
	if b.program != nil {
		b.program.Release()
		b.program = nil
	}
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.context != nil {
		b.context.Release()
		b.context = nil
	}
	return nil
}

func indexOf(fields []*grid.Field, f *grid.Field) int {
	for i, g := range fields {
		if g == f {
			return i
		}
	}
	return -1
}
