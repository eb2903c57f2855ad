package tuner_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/fluidsim/internal/fluid"
	"github.com/san-kum/fluidsim/internal/tuner"
)

type fakeTarget struct {
	n, steps  int
	resizes   []int
	resizeErr error
}

func (f *fakeTarget) SetResolution(n int) (bool, error) {
	if f.resizeErr != nil {
		return false, f.resizeErr
	}
	if n == f.n {
		return false, nil
	}
	f.n = n
	f.resizes = append(f.resizes, n)
	return true, nil
}

func (f *fakeTarget) SetIterationBudget(steps int) { f.steps = max(steps, 1) }

func (f *fakeTarget) CurrentMetrics() fluid.Metrics {
	return fluid.Metrics{N: f.n, SolverSteps: f.steps, Dim: 3}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type decisions []tuner.Decision

func (d *decisions) ObserveTune(x tuner.Decision) { *d = append(*d, x) }

var _ = Describe("DeviceProfile", func() {
	It("parses names case-insensitively", func() {
		Expect(tuner.ParseProfile("GPU")).To(Equal(tuner.ProfileGPU))
		Expect(tuner.ParseProfile("cpu")).To(Equal(tuner.ProfileCPU))
		_, err := tuner.ParseProfile("tpu")
		Expect(err).To(HaveOccurred())
	})

	It("evaluates the calibration curves", func() {
		Expect(tuner.ProfileCPU.ResolutionCost(10)).To(BeNumerically("~", 2.347e-3+0.0112172, 1e-12))
		Expect(tuner.ProfileGPU.ResolutionCost(10)).To(BeNumerically("~", 2.1e-5+0.00961385, 1e-12))
		Expect(tuner.ProfileCPU.PrecisionCost(10)).To(BeNumerically("~", 1.29959e-2-1.57226e-3, 1e-12))
		Expect(tuner.ProfileGPU.PrecisionCost(10)).To(BeNumerically("~", 3.76968e-3-5.9281e-4, 1e-12))
	})
})

var _ = Describe("Tuner", func() {
	var (
		target *fakeTarget
		clock  *fakeClock
		seen   *decisions
	)

	newTuner := func(profile tuner.DeviceProfile) *tuner.Tuner {
		t, err := tuner.New(target, 10, 20, profile,
			tuner.WithClock(clock.Now),
			tuner.WithInterval(200*time.Millisecond),
			tuner.WithObserver(seen),
		)
		Expect(err).NotTo(HaveOccurred())
		return t
	}

	// report feeds one frame after the interval has elapsed.
	report := func(t *tuner.Tuner, seconds float64) bool {
		clock.Advance(250 * time.Millisecond)
		changed, err := t.Report(seconds)
		Expect(err).NotTo(HaveOccurred())
		return changed
	}

	BeforeEach(func() {
		target = &fakeTarget{n: 20, steps: 20}
		clock = &fakeClock{t: time.Unix(1000, 0)}
		seen = &decisions{}
	})

	Describe("New", func() {
		It("rejects bad configuration", func() {
			_, err := tuner.New(nil, 10, 20, tuner.ProfileCPU)
			Expect(err).To(MatchError(tuner.ErrInvalidConfig))
			_, err = tuner.New(target, 0, 20, tuner.ProfileCPU)
			Expect(err).To(MatchError(tuner.ErrInvalidConfig))
			_, err = tuner.New(target, 10, 0, tuner.ProfileCPU)
			Expect(err).To(MatchError(tuner.ErrInvalidConfig))
			_, err = tuner.New(target, 10, 20, tuner.ProfileCPU, tuner.WithInterval(0))
			Expect(err).To(MatchError(tuner.ErrInvalidConfig))
		})

		It("starts from the target's knobs", func() {
			s := newTuner(tuner.ProfileCPU).Stats()
			Expect(s.Resolution).To(Equal(20.0))
			Expect(s.Precision).To(Equal(20.0))
			Expect(s.Desired).To(Equal(0.05))
		})
	})

	Describe("moving average", func() {
		It("seeds with the first sample and then blends", func() {
			t := newTuner(tuner.ProfileCPU)
			_, _ = t.Report(0.1)
			Expect(t.Average()).To(BeNumerically("~", 0.1, 1e-12))
			_, _ = t.Report(0.2)
			Expect(t.Average()).To(BeNumerically("~", 0.11, 1e-12))
			Expect(t.Stats().Samples).To(Equal(2))
		})
	})

	Describe("interval gating", func() {
		It("only tunes once the interval has passed", func() {
			t := newTuner(tuner.ProfileCPU)

			clock.Advance(100 * time.Millisecond)
			_, _ = t.Report(0.2)
			Expect(t.Stats().Tunes).To(BeZero())

			clock.Advance(100 * time.Millisecond)
			_, _ = t.Report(0.2)
			Expect(t.Stats().Tunes).To(BeZero(), "exactly one interval is not enough")

			clock.Advance(time.Millisecond)
			_, _ = t.Report(0.2)
			Expect(t.Stats().Tunes).To(Equal(1))

			clock.Advance(50 * time.Millisecond)
			_, _ = t.Report(0.2)
			Expect(t.Stats().Tunes).To(Equal(1))
		})
	})

	Describe("a single pass", func() {
		It("cuts a solver step first on the CPU profile", func() {
			t := newTuner(tuner.ProfileCPU)
			changed := report(t, 0.2)

			Expect(changed).To(BeTrue())
			Expect(target.n).To(Equal(19))
			Expect(target.steps).To(Equal(19))
			Expect(t.Stats().Resolution).To(BeNumerically("~", 19.515, 1e-3))

			Expect(*seen).To(HaveLen(1))
			Expect((*seen)[0].Direction).To(Equal(tuner.Down))
			Expect((*seen)[0].Slope).To(BeNumerically(">=", 1))
		})

		It("cuts resolution first on the GPU profile", func() {
			t := newTuner(tuner.ProfileGPU)
			changed := report(t, 0.2)

			Expect(changed).To(BeTrue())
			Expect(target.n).To(Equal(19))
			Expect(target.steps).To(Equal(19))
			Expect(t.Stats().Precision).To(BeNumerically("~", 19.936, 1e-3))
		})

		It("adds a solver step first on the CPU profile", func() {
			t := newTuner(tuner.ProfileCPU)
			changed := report(t, 0.01)

			Expect(changed).To(BeFalse())
			Expect(target.n).To(Equal(20))
			Expect(target.steps).To(Equal(21))
			Expect(t.Stats().Resolution).To(BeNumerically("~", 20.439, 1e-3))
		})

		It("grows resolution first on the GPU profile", func() {
			t := newTuner(tuner.ProfileGPU)
			changed := report(t, 0.01)

			Expect(changed).To(BeTrue())
			Expect(target.resizes).To(Equal([]int{21}))
			Expect(target.steps).To(Equal(20))
		})

		It("holds inside the tolerance band", func() {
			t := newTuner(tuner.ProfileCPU)
			changed := report(t, 0.055)

			Expect(changed).To(BeFalse())
			Expect(target.n).To(Equal(20))
			Expect(target.steps).To(Equal(20))
			Expect((*seen)[0].Direction).To(Equal(tuner.Hold))
		})

		It("never shrinks past the floor", func() {
			target.n = 4
			t := newTuner(tuner.ProfileGPU)
			Expect(report(t, 1.0)).To(BeFalse())
			Expect(target.n).To(Equal(4))
			Expect(target.steps).To(Equal(20))
		})

		It("keeps at least one solver step", func() {
			target.steps = 1
			t := newTuner(tuner.ProfileCPU)
			Expect(report(t, 1.0)).To(BeFalse())
			Expect(target.steps).To(Equal(1))
		})

		It("wraps resize failures", func() {
			target.resizeErr = errors.New("out of memory")
			t := newTuner(tuner.ProfileGPU)
			clock.Advance(time.Second)
			_, err := t.Report(0.5)
			Expect(err).To(MatchError(ContainSubstring("out of memory")))
			Expect(target.n).To(Equal(20))
		})
	})

	DescribeTable("monotonic response",
		func(profile tuner.DeviceProfile, frame float64, up bool) {
			t := newTuner(profile)
			prevN, prevSteps := target.n, target.steps
			for range 60 {
				report(t, frame)
				if up {
					Expect(target.n).To(BeNumerically(">=", prevN))
					Expect(target.steps).To(BeNumerically(">=", prevSteps))
				} else {
					Expect(target.n).To(BeNumerically("<=", prevN))
					Expect(target.steps).To(BeNumerically("<=", prevSteps))
				}
				prevN, prevSteps = target.n, target.steps
			}
			if up {
				Expect(target.n + target.steps).To(BeNumerically(">", 40))
			} else {
				Expect(target.n + target.steps).To(BeNumerically("<", 40))
				Expect(target.n).To(BeNumerically(">=", 4))
				Expect(target.steps).To(BeNumerically(">=", 1))
			}
		},
		Entry("cpu, too slow", tuner.ProfileCPU, 0.5, false),
		Entry("gpu, too slow", tuner.ProfileGPU, 0.5, false),
		Entry("cpu, headroom", tuner.ProfileCPU, 0.001, true),
		Entry("gpu, headroom", tuner.ProfileGPU, 0.001, true),
	)

	It("resyncs after an external resize", func() {
		t := newTuner(tuner.ProfileGPU)
		report(t, 0.01)
		Expect(target.n).To(Equal(21))

		_, _ = target.SetResolution(30)
		report(t, 0.01)
		Expect(target.n).To(Equal(31))
		Expect(t.Stats().Resizes).To(Equal(2))
	})

	It("exposes live parameters", func() {
		t := newTuner(tuner.ProfileCPU)
		t.SetParam("target_fps", 40)
		t.SetParam("history", 0)
		Expect(t.GetParams()).To(HaveKeyWithValue("target_fps", BeNumerically("~", 40, 1e-9)))
		Expect(t.GetParams()).To(HaveKeyWithValue("history", 10.0))

		_, _ = t.Report(0.02)
		t.Reset()
		Expect(t.Average()).To(BeZero())
		Expect(t.FPS()).To(BeZero())
	})
})
