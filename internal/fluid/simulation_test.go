package fluid

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/san-kum/fluidsim/internal/compute"
	"github.com/san-kum/fluidsim/internal/grid"
)

func testParams(n, dim int) Params {
	p := DefaultParams()
	p.N = n
	p.Dim = dim
	return p
}

func TestNewRejectsInvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Params)
		want   error
	}{
		{"zero resolution", func(p *Params) { p.N = 0 }, ErrInvalidResolution},
		{"negative resolution", func(p *Params) { p.N = -3 }, ErrInvalidResolution},
		{"bad dimension", func(p *Params) { p.Dim = 4 }, grid.ErrInvalidDimension},
		{"zero solver steps", func(p *Params) { p.SolverSteps = 0 }, ErrInvalidParams},
		{"zero dt", func(p *Params) { p.Dt = 0 }, ErrInvalidParams},
		{"negative viscosity", func(p *Params) { p.Viscosity = -1 }, ErrInvalidParams},
		{"unknown resample", func(p *Params) { p.Resample = "cubic" }, ErrInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			p := DefaultParams()
			tt.modify(&p)

			sim, err := New(p, Fused{})
			g.Expect(err).To(MatchError(tt.want))
			g.Expect(sim).To(BeNil())
		})
	}
}

func TestSingleImpulseScenario(t *testing.T) {
	g := NewWithT(t)
	p := testParams(4, 3)

	sim, err := New(p, Fused{})
	g.Expect(err).NotTo(HaveOccurred())

	sim.AddFluid()
	_, pending := sim.DebugSums()
	g.Expect(pending).To(Equal(p.FluidAmount))

	g.Expect(sim.Step(context.Background())).To(Succeed())

	vol := sim.OutputVolume()
	injected := p.Dt * p.FluidAmount
	mass := vol.InteriorSum()
	g.Expect(mass).To(BeNumerically(">", 0))
	g.Expect(mass).To(BeNumerically("<=", injected+1e-9))

	// (6,6,6) clamps to the last interior cell of a 4-grid.
	seed := vol.At(4, 4, 4)
	g.Expect(vol.Max()).To(Equal(seed))

	for k := 1; k <= 4; k++ {
		for j := 1; j <= 4; j++ {
			for i := 1; i <= 4; i++ {
				v := vol.At(i, j, k)
				g.Expect(v).To(BeNumerically(">=", 0))
				dist := (4 - i) + (4 - j) + (4 - k)
				if dist > 2 {
					g.Expect(v).To(BeNumerically("<", seed*1e-6), "cell (%d,%d,%d)", i, j, k)
				}
			}
		}
	}

	for _, c := range sim.VelocityVolumes() {
		g.Expect(c.Values()).To(HaveEach(BeZero()))
	}

	dens, pending := sim.DebugSums()
	g.Expect(pending).To(BeZero())
	g.Expect(dens).To(Equal(mass))
}

func TestFusedAndStagedAgree(t *testing.T) {
	for _, dim := range []int{2, 3} {
		g := NewWithT(t)
		p := testParams(16, dim)
		p.FluidSeed = [3]int{8, 8, 8}
		p.ForceSeed = [3]int{6, 7, 8}
		p.SolverSteps = 6

		fused, err := New(p, Fused{})
		g.Expect(err).NotTo(HaveOccurred())
		staged, err := New(p, NewStaged(compute.NewCPUBackend(4)))
		g.Expect(err).NotTo(HaveOccurred())

		ctx := context.Background()
		for frame := 0; frame < 4; frame++ {
			for _, sim := range []*Simulation{fused, staged} {
				if frame%2 == 0 {
					sim.AddFluid()
					sim.AddForce()
				}
				g.Expect(sim.Step(ctx)).To(Succeed())
			}
		}

		g.Expect(staged.OutputVolume().Values()).To(Equal(fused.OutputVolume().Values()), "dim %d density", dim)
		sv, fv := staged.VelocityVolumes(), fused.VelocityVolumes()
		for axis := range fv {
			g.Expect(sv[axis].Values()).To(Equal(fv[axis].Values()), "dim %d axis %d", dim, axis)
		}
		g.Expect(fused.OutputVolume().InteriorSum()).To(BeNumerically(">", 0))
	}
}

type recordingObserver struct {
	counts map[string]int
}

func (r *recordingObserver) ObserveStage(label string, d time.Duration) {
	r.counts[label]++
}

func TestStagedReportsEveryStage(t *testing.T) {
	g := NewWithT(t)
	obs := &recordingObserver{counts: make(map[string]int)}
	p := testParams(4, 3)
	p.SolverSteps = 3

	sim, err := New(p, NewStaged(compute.NewCPUBackend(1), WithStageObserver(obs)))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(sim.Step(context.Background())).To(Succeed())

	// relax + boundary per sweep
	g.Expect(obs.counts["diffuse u"]).To(Equal(6))
	g.Expect(obs.counts["diffuse dens"]).To(Equal(6))
	// two projections, each 1 divergence + 2 boundaries
	g.Expect(obs.counts["project1"]).To(Equal(6))
	g.Expect(obs.counts["project2"]).To(Equal(12))
	// gradient + 3 component boundaries, twice
	g.Expect(obs.counts["project3"]).To(Equal(8))
	g.Expect(obs.counts["advect dens"]).To(Equal(2))
	g.Expect(obs.counts).To(HaveKey("add_source w"))
}

type failingBackend struct {
	compute.Backend
	failOn compute.Stage
}

func (f failingBackend) Dispatch(ctx context.Context, job compute.Job) error {
	if job.Stage == f.failOn {
		return &compute.DispatchError{Backend: "fake", Job: job.Name(), Err: errors.New("device lost")}
	}
	return f.Backend.Dispatch(ctx, job)
}

func TestStageErrorNamesFailingStage(t *testing.T) {
	g := NewWithT(t)
	backend := failingBackend{Backend: compute.NewCPUBackend(1), failOn: compute.StageAdvect}

	sim, err := New(testParams(4, 2), NewStaged(backend))
	g.Expect(err).NotTo(HaveOccurred())

	err = sim.Step(context.Background())
	var se *StageError
	g.Expect(errors.As(err, &se)).To(BeTrue())
	g.Expect(se.Stage).To(Equal("advect u"))
	g.Expect(se.Pipeline).To(Equal("staged"))
	g.Expect(se.Frame).To(Equal(0))

	var de *compute.DispatchError
	g.Expect(errors.As(err, &de)).To(BeTrue())
	g.Expect(err.Error()).To(ContainSubstring("device lost"))
}

func TestResize(t *testing.T) {
	g := NewWithT(t)
	p := testParams(8, 3)
	p.FluidSeed = [3]int{3, 3, 3}
	sim, err := New(p, Fused{})
	g.Expect(err).NotTo(HaveOccurred())

	sim.AddFluid()
	g.Expect(sim.Step(context.Background())).To(Succeed())
	before := sim.OutputVolume().Snapshot()

	changed, err := sim.Resize(0)
	g.Expect(err).To(MatchError(ErrInvalidResolution))
	g.Expect(changed).To(BeFalse())
	g.Expect(sim.N()).To(Equal(8))
	g.Expect(sim.OutputVolume().Values()).To(Equal(before.Data))

	changed, err = sim.Resize(8)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(changed).To(BeFalse())
	g.Expect(sim.OutputVolume().Values()).To(Equal(before.Data))

	old := sim.OutputVolume()
	changed, err = sim.Resize(12)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(changed).To(BeTrue())
	g.Expect(sim.N()).To(Equal(12))
	g.Expect(sim.CurrentMetrics().N).To(Equal(12))

	vol := sim.OutputVolume()
	g.Expect(vol.Values()).To(HaveLen(14 * 14 * 14))
	g.Expect(vol.At(3, 3, 3)).To(Equal(before.At(3, 3, 3)))
	g.Expect(vol.At(11, 11, 11)).To(BeZero())
	g.Expect(old.N()).To(Equal(8), "old view stays on the detached buffer")

	_, pending := sim.DebugSums()
	g.Expect(pending).To(BeZero())

	g.Expect(sim.Step(context.Background())).To(Succeed())
}

func TestResizeNearestKeepsMassRoughly(t *testing.T) {
	g := NewWithT(t)
	p := testParams(4, 2)
	p.Resample = grid.ResampleNearest
	sim, err := New(p, Fused{})
	g.Expect(err).NotTo(HaveOccurred())

	for j := 1; j <= 4; j++ {
		for i := 1; i <= 4; i++ {
			sim.AddFluidAt(i, j, 0, 1)
		}
	}
	g.Expect(sim.Step(context.Background())).To(Succeed())
	mass := sim.OutputVolume().InteriorSum()

	_, err = sim.Resize(8)
	g.Expect(err).NotTo(HaveOccurred())
	// every old cell covers four new ones
	g.Expect(sim.OutputVolume().InteriorSum()).To(BeNumerically("~", 4*mass, 1e-9))
}

func TestHooks(t *testing.T) {
	g := NewWithT(t)
	p := testParams(100, 2)
	p.FluidSeed = [3]int{50, 50, 0}
	p.FluidSplat = 2
	p.FluidAmount = 500
	sim, err := New(p, Fused{})
	g.Expect(err).NotTo(HaveOccurred())

	sim.AddFluid()
	_, pending := sim.DebugSums()
	g.Expect(pending).To(Equal(2000.0))

	sim.ClearEffects()
	_, pending = sim.DebugSums()
	g.Expect(pending).To(BeZero())

	sim.AddFluidAt(0, 5, 0, 10)
	sim.AddFluidAt(101, 5, 0, 10)
	_, pending = sim.DebugSums()
	g.Expect(pending).To(BeZero(), "ghost and outside cells are ignored")

	sim.AddFluid()
	sim.AddForce()
	g.Expect(sim.Step(context.Background())).To(Succeed())
	g.Expect(sim.OutputVolume().InteriorSum()).To(BeNumerically(">", 0))

	sim.Reset()
	dens, pending := sim.DebugSums()
	g.Expect(dens).To(BeZero())
	g.Expect(pending).To(BeZero())
	for _, c := range sim.VelocityVolumes() {
		g.Expect(c.Values()).To(HaveEach(BeZero()))
	}
}

func TestIterationBudget(t *testing.T) {
	g := NewWithT(t)
	sim, err := New(testParams(6, 3), Fused{})
	g.Expect(err).NotTo(HaveOccurred())

	sim.SetIterationBudget(7)
	g.Expect(sim.SolverSteps()).To(Equal(7))
	sim.SetIterationBudget(0)
	g.Expect(sim.SolverSteps()).To(Equal(1))

	m := sim.CurrentMetrics()
	g.Expect(m.N).To(Equal(6))
	g.Expect(m.SolverSteps).To(Equal(1))
}

func TestSeedCellClamps(t *testing.T) {
	tests := []struct {
		seed  [3]int
		n     int
		splat int
		want  [3]int
	}{
		{[3]int{6, 6, 6}, 4, 1, [3]int{4, 4, 4}},
		{[3]int{2, 2, 2}, 20, 1, [3]int{2, 2, 2}},
		{[3]int{0, -1, 3}, 5, 1, [3]int{1, 1, 3}},
		{[3]int{100, 100, 0}, 100, 2, [3]int{99, 99, 1}},
		{[3]int{3, 3, 3}, 1, 2, [3]int{1, 1, 1}},
	}

	for _, tt := range tests {
		if got := seedCell(tt.seed, tt.n, tt.splat); got != tt.want {
			t.Errorf("seedCell(%v, %d, %d) = %v, want %v", tt.seed, tt.n, tt.splat, got, tt.want)
		}
	}
}

func TestStepHonoursCanceledContext(t *testing.T) {
	sim, err := New(testParams(4, 3), Fused{})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sim.Step(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if sim.Frame() != 0 {
		t.Errorf("frame advanced to %d on a canceled step", sim.Frame())
	}
}
