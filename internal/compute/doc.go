// Package compute provides the backends that run solver stages one at a
// time.
//
//   - CPU: splits cell-independent stages into layer slabs across goroutines
//   - OpenCL: launches one kernel per stage on a GPU or CPU device
//
// # Backend context
//
// Backends are plain values owned by the caller. Open one, hand it to the
// staged pipeline, and close it on every exit path:
//
//	backend, err := compute.Open("auto", compute.Options{Logger: log})
//	if err != nil {
//		return err
//	}
//	defer backend.Close()
//
// # Barriers
//
// Dispatch returns only after the stage has finished writing its buffers.
// The next stage may read them immediately.
//
// Build with OpenCL support:
//
//	go build -tags opencl ./...
package compute
