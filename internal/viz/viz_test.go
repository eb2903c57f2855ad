package viz

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/fluidsim/internal/fluid"
	"github.com/san-kum/fluidsim/internal/sim"
)

func TestCanvasDots(t *testing.T) {
	c := NewCanvas(2, 1)
	c.Set(3, 2)
	if !c.IsSet(3, 2) {
		t.Fatal("dot (3,2) not set")
	}
	if c.IsSet(2, 2) || c.IsSet(-1, 0) || c.IsSet(10, 0) {
		t.Fatal("unexpected dot")
	}
	c.Clear()
	if c.IsSet(3, 2) {
		t.Fatal("clear left a dot")
	}
	if got := c.String(); got != "⠀⠀\n" {
		t.Fatalf("blank canvas = %q", got)
	}
}

func TestDrawPlane(t *testing.T) {
	full := Plane{N: 2, Values: []float64{1, 1, 1, 1}}
	c := NewCanvas(4, 2)
	c.DrawPlane(full, 1)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if !c.IsSet(x, y) {
				t.Fatalf("dot (%d,%d) should be set for a saturated plane", x, y)
			}
		}
	}

	c.Clear()
	c.DrawPlane(Plane{N: 2, Values: make([]float64, 4)}, 0)
	if strings.ContainsFunc(c.String(), func(r rune) bool { return r > 0x2800 }) {
		t.Fatal("empty plane drew dots")
	}

	// Only the bottom-left cell is dense; j=1 is drawn on the lower half.
	c.Clear()
	c.DrawPlane(Plane{N: 2, Values: []float64{1, 0, 0, 0}}, 0)
	if !c.IsSet(0, 7) || c.IsSet(7, 0) {
		t.Fatal("plane drawn with the wrong orientation")
	}
}

func TestProjectPlane(t *testing.T) {
	p := fluid.DefaultParams()
	p.N = 4
	p.FluidSeed = [3]int{2, 2, 2}
	s, err := fluid.New(p, fluid.Fused{})
	if err != nil {
		t.Fatal(err)
	}
	s.AddFluid()
	if err := s.Step(context.Background()); err != nil {
		t.Fatal(err)
	}

	proj := ProjectPlane(s.OutputVolume())
	total := 0.0
	for _, v := range proj.Values {
		total += v
	}
	if want := s.OutputVolume().InteriorSum(); total-want > 1e-9 || want-total > 1e-9 {
		t.Fatalf("projection sum %v, volume sum %v", total, want)
	}
}

func TestThemeCycle(t *testing.T) {
	defer SetTheme(ThemeSmoke.Name)
	SetTheme("ink")
	if CurrentTheme.Name != "ink" {
		t.Fatalf("theme = %s", CurrentTheme.Name)
	}
	NextTheme()
	if CurrentTheme.Name != "fire" {
		t.Fatalf("after ink got %s", CurrentTheme.Name)
	}
	NextTheme()
	if CurrentTheme.Name != "smoke" {
		t.Fatalf("cycle did not wrap, got %s", CurrentTheme.Name)
	}
	if GetTheme("nope").Name != "smoke" {
		t.Fatal("unknown theme should fall back to smoke")
	}
}

func key(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModelUpdate(t *testing.T) {
	p := fluid.DefaultParams()
	p.N = 8
	p.SolverSteps = 4
	s, err := fluid.New(p, fluid.Fused{})
	if err != nil {
		t.Fatal(err)
	}
	var m tea.Model = NewModel(context.Background(), sim.New(s), "cpu")

	send := func(msg tea.Msg) {
		t.Helper()
		m, _ = m.Update(msg)
	}

	send(TickMsg{})
	if s.Frame() != 1 {
		t.Fatalf("frame = %d after one tick", s.Frame())
	}

	send(key(" "))
	send(TickMsg{})
	if s.Frame() != 1 {
		t.Fatal("paused model still stepped")
	}
	send(key(" "))

	send(key("+"))
	if s.N() != 9 {
		t.Fatalf("N = %d after +", s.N())
	}
	send(key("-"))
	send(key("-"))
	if s.N() != 7 {
		t.Fatalf("N = %d after two -", s.N())
	}

	send(key("f"))
	if dens, pending := s.DebugSums(); pending == 0 || dens < 0 {
		t.Fatalf("f did not queue fluid, pending %v", pending)
	}
	send(key("d"))
	if !strings.Contains(m.(Model).debug, "pending") {
		t.Fatalf("debug line = %q", m.(Model).debug)
	}
	send(key("c"))
	if _, pending := s.DebugSums(); pending != 0 {
		t.Fatalf("c left pending %v", pending)
	}

	send(key("p"))
	send(key("v"))
	send(TickMsg{})
	if view := m.View(); !strings.Contains(view, "slice k=") {
		t.Fatal("view did not switch to a slice")
	}

	send(SettingsMsg{SolverSteps: 7})
	if s.SolverSteps() != 7 {
		t.Fatalf("steps = %d after settings", s.SolverSteps())
	}

	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("q should return a quit command")
	}
}
