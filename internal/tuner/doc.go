// Package tuner adapts grid resolution and solver steps to hold a frame
// rate.
//
// Every frame the caller reports the measured step time. The tuner keeps a
// moving average and, once per interval, compares it with the frame budget.
// Over budget it gives up whichever of resolution or precision is cheaper
// to lose according to the device profile's cost curves; under budget it
// spends the headroom the same way.
//
//	t, _ := tuner.New(sim, tuner.DefaultHistory, tuner.DefaultTargetFPS, tuner.ProfileCPU)
//	start := time.Now()
//	_ = sim.Step(ctx)
//	changed, err := t.Report(time.Since(start).Seconds())
package tuner
