package metrics

import "time"

// FPSCounter counts frames and publishes a rate once per window.
type FPSCounter struct {
	window time.Duration
	now    func() time.Time
	start  time.Time
	frames int
	fps    float64
}

func NewFPSCounter(window time.Duration, now func() time.Time) *FPSCounter {
	if now == nil {
		now = time.Now
	}
	if window <= 0 {
		window = time.Second
	}
	return &FPSCounter{window: window, now: now, start: now()}
}

// Tick records a frame. It returns true when a new rate was published.
func (f *FPSCounter) Tick() bool {
	f.frames++
	elapsed := f.now().Sub(f.start)
	if elapsed < f.window {
		return false
	}
	f.fps = float64(f.frames) / elapsed.Seconds()
	f.frames = 0
	f.start = f.now()
	return true
}

// FPS is the last published rate.
func (f *FPSCounter) FPS() float64 { return f.fps }
