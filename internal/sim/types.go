package sim

import (
	"github.com/san-kum/fluidsim/internal/fluid"
)

// Frame describes one completed step.
type Frame struct {
	Index   int
	Seconds float64
	Average float64
	Metrics fluid.Metrics
	Mass    float64
	// Resized is set when a scripted event or the tuner changed N during
	// this frame.
	Resized bool
}

func (f Frame) FPS() float64 {
	if f.Average <= 0 {
		return 0
	}
	return 1 / f.Average
}

type Observer interface {
	OnFrame(f Frame)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(f Frame)

func (fn ObserverFunc) OnFrame(f Frame) { fn(f) }

type Result struct {
	Frames  []Frame
	Metrics map[string]float64
	Resizes int
	FinalN  int
}

// Seconds returns the per-frame step times, for plotting.
func (r *Result) Seconds() []float64 {
	out := make([]float64, len(r.Frames))
	for i, f := range r.Frames {
		out[i] = f.Seconds
	}
	return out
}

// Resolutions returns N after every frame.
func (r *Result) Resolutions() []float64 {
	out := make([]float64, len(r.Frames))
	for i, f := range r.Frames {
		out[i] = float64(f.Metrics.N)
	}
	return out
}
