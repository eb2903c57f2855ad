package metrics

import (
	"context"
	"io"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/san-kum/fluidsim/internal/fluid"
	"github.com/san-kum/fluidsim/internal/tuner"
)

func steppedSim(t *testing.T, frames int) *fluid.Simulation {
	t.Helper()
	p := fluid.DefaultParams()
	p.N = 8
	sim, err := fluid.New(p, fluid.Fused{})
	if err != nil {
		t.Fatal(err)
	}
	for range frames {
		sim.AddFluid()
		sim.AddForce()
		if err := sim.Step(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	return sim
}

func TestMassMatchesInteriorSum(t *testing.T) {
	sim := steppedSim(t, 3)
	m := NewMass()

	m.Observe(sim)
	want := sim.OutputVolume().InteriorSum()
	if math.Abs(m.Value()-want) > 1e-12 {
		t.Errorf("expected mass %f, got %f", want, m.Value())
	}
	if m.Peak() != m.Value() {
		t.Errorf("peak should equal the only sample")
	}

	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero mass after reset")
	}
}

func TestKineticEnergy(t *testing.T) {
	k := NewKineticEnergy()

	k.Observe(steppedSim(t, 0))
	if k.Value() != 0 {
		t.Errorf("still fluid should have no kinetic energy, got %f", k.Value())
	}

	k.Reset()
	sim := steppedSim(t, 2)
	k.Observe(sim)

	want := 0.0
	n := sim.N()
	for _, c := range sim.VelocityVolumes() {
		for kk := 1; kk <= n; kk++ {
			for j := 1; j <= n; j++ {
				for i := 1; i <= n; i++ {
					v := c.At(i, j, kk)
					want += v * v
				}
			}
		}
	}
	want *= 0.5
	if want == 0 {
		t.Fatal("force impulse should move the fluid")
	}
	if math.Abs(k.Latest()-want) > 1e-9*want {
		t.Errorf("expected %g, got %g", want, k.Latest())
	}
}

func TestDivergenceKeepsWorst(t *testing.T) {
	d := NewDivergence()
	sim := steppedSim(t, 4)
	d.Observe(sim)

	first := d.Value()
	if first != sim.Divergence() || first < 0 || math.IsNaN(first) {
		t.Fatalf("unexpected divergence %g (sim reports %g)", first, sim.Divergence())
	}

	d.Observe(steppedSim(t, 0))
	if d.Value() != first {
		t.Errorf("a still field must not lower the worst value: %g", d.Value())
	}
	d.Reset()
	if d.Value() != 0 {
		t.Error("expected zero after reset")
	}
}

func TestStability(t *testing.T) {
	s := NewStability(1e6)
	if s.Value() != 1 {
		t.Error("no samples should read as stable")
	}
	s.Observe(steppedSim(t, 2))
	if s.Value() != 1 {
		t.Errorf("expected stable run, got %f", s.Value())
	}

	tight := NewStability(1e-9)
	tight.Observe(steppedSim(t, 1))
	if tight.Value() != 0 {
		t.Errorf("expected violation below threshold, got %f", tight.Value())
	}
}

func TestCollectorExports(t *testing.T) {
	c := NewCollector()
	c.ObserveFrame(0.02, fluid.Metrics{N: 20, SolverSteps: 18})
	c.ObserveStage("advect dens", 3*time.Millisecond)
	c.ObserveTune(tuner.Decision{Direction: tuner.Down, Resized: true, N: 19, SolverSteps: 18})

	mass := NewMass()
	mass.Observe(steppedSim(t, 1))
	c.ObserveDiagnostics([]Diagnostic{mass})

	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	values := map[string]float64{}
	for _, mf := range families {
		m := mf.GetMetric()[0]
		switch {
		case m.GetGauge() != nil:
			values[mf.GetName()] = m.GetGauge().GetValue()
		case m.GetCounter() != nil:
			values[mf.GetName()] = m.GetCounter().GetValue()
		case m.GetHistogram() != nil:
			values[mf.GetName()] = float64(m.GetHistogram().GetSampleCount())
		}
	}

	checks := map[string]float64{
		"fluidsim_resolution":        19,
		"fluidsim_solver_steps":      18,
		"fluidsim_frames_total":      1,
		"fluidsim_resizes_total":     1,
		"fluidsim_tune_passes_total": 1,
		"fluidsim_frame_seconds":     1,
		"fluidsim_stage_seconds":     1,
	}
	for name, want := range checks {
		if got, ok := values[name]; !ok || got != want {
			t.Errorf("%s: expected %v, got %v (present %v)", name, want, got, ok)
		}
	}
	if values["fluidsim_diagnostic"] != mass.Value() {
		t.Errorf("diagnostic gauge %v, want %v", values["fluidsim_diagnostic"], mass.Value())
	}
}

func TestCollectorHandler(t *testing.T) {
	c := NewCollector()
	c.ObserveFrame(0.01, fluid.Metrics{N: 12, SolverSteps: 5})

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), "fluidsim_resolution 12") {
		t.Errorf("resolution gauge missing from exposition:\n%s", body)
	}
}

func TestStageProfiler(t *testing.T) {
	var forwarded int
	p := NewStageProfiler(func(string, time.Duration) { forwarded++ })

	p.ObserveStage("diffuse u", 2*time.Millisecond)
	p.ObserveStage("diffuse u", 4*time.Millisecond)
	p.ObserveStage("advect u", 10*time.Millisecond)

	snap := p.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 labels, got %d", len(snap))
	}
	if snap[0].Label != "advect u" {
		t.Errorf("expected slowest stage first, got %s", snap[0].Label)
	}
	if snap[1].Calls != 2 || snap[1].Mean() != 3*time.Millisecond {
		t.Errorf("unexpected diffuse totals %+v", snap[1])
	}
	if forwarded != 3 {
		t.Errorf("expected 3 forwarded observations, got %d", forwarded)
	}

	p.Reset()
	if len(p.Snapshot()) != 0 {
		t.Error("expected empty snapshot after reset")
	}
}

func TestFPSCounter(t *testing.T) {
	now := time.Unix(0, 0)
	f := NewFPSCounter(time.Second, func() time.Time { return now })

	for range 29 {
		now = now.Add(30 * time.Millisecond)
		if f.Tick() {
			t.Fatal("published before the window closed")
		}
	}
	now = now.Add(130 * time.Millisecond)
	if !f.Tick() {
		t.Fatal("expected a published rate")
	}
	if math.Abs(f.FPS()-30) > 1e-9 {
		t.Errorf("expected 30 fps, got %f", f.FPS())
	}
}
