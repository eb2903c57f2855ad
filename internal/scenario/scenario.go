// Package scenario scripts impulses for headless runs.
//
// A scenario is a yaml list of events keyed by frame number:
//
//	name: swirl
//	frames: 200
//	events:
//	  - {frame: 0, action: fluid, every: 10}
//	  - {frame: 0, action: force, every: 25}
//	  - {frame: 120, action: resize, n: 24}
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Action string

const (
	ActionFluid   Action = "fluid"
	ActionForce   Action = "force"
	ActionFluidAt Action = "fluid_at"
	ActionForceAt Action = "force_at"
	ActionReset   Action = "reset"
	ActionClear   Action = "clear"
	ActionResize  Action = "resize"
)

// Scenario defines a scripted simulation sequence
type Scenario struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Frames      int     `yaml:"frames"`
	Events      []Event `yaml:"events"`
}

// Event fires at Frame and then every Every frames when Every is set.
type Event struct {
	Frame  int       `yaml:"frame"`
	Every  int       `yaml:"every"`
	Action Action    `yaml:"action"`
	Cell   []int     `yaml:"cell"`
	Amount float64   `yaml:"amount"`
	Force  []float64 `yaml:"force"`
	N      int       `yaml:"n"`
}

// Target is the set of simulation hooks events can call.
type Target interface {
	AddFluid()
	AddForce()
	AddFluidAt(i, j, k int, amount float64)
	AddForceAt(i, j, k int, f [3]float64)
	Reset()
	ClearEffects()
	Resize(n int) (bool, error)
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (s *Scenario) Validate() error {
	if s.Frames < 0 {
		return fmt.Errorf("scenario %q: negative frame count", s.Name)
	}
	for i, e := range s.Events {
		if err := e.validate(); err != nil {
			return fmt.Errorf("scenario %q: event %d: %w", s.Name, i+1, err)
		}
	}
	return nil
}

func (e Event) validate() error {
	if e.Frame < 0 || e.Every < 0 {
		return fmt.Errorf("frame and every must not be negative")
	}
	switch e.Action {
	case ActionFluid, ActionForce, ActionReset, ActionClear:
	case ActionFluidAt, ActionForceAt:
		if len(e.Cell) < 2 || len(e.Cell) > 3 {
			return fmt.Errorf("%s needs a cell of 2 or 3 coordinates", e.Action)
		}
		if e.Action == ActionForceAt && (len(e.Force) == 0 || len(e.Force) > 3) {
			return fmt.Errorf("force_at needs 1 to 3 force components")
		}
	case ActionResize:
		if e.N < 1 {
			return fmt.Errorf("resize needs n >= 1, got %d", e.N)
		}
	default:
		return fmt.Errorf("unknown action %q", e.Action)
	}
	return nil
}

// Due reports whether the event fires on frame.
func (e Event) Due(frame int) bool {
	if frame == e.Frame {
		return true
	}
	return e.Every > 0 && frame > e.Frame && (frame-e.Frame)%e.Every == 0
}

// Apply runs every event due on frame against t, in file order. It reports
// whether any of them changed the resolution.
func (s *Scenario) Apply(frame int, t Target) (bool, error) {
	resized := false
	for i, e := range s.Events {
		if !e.Due(frame) {
			continue
		}
		changed, err := e.apply(t)
		if err != nil {
			return resized, fmt.Errorf("frame %d: event %d (%s): %w", frame, i+1, e.Action, err)
		}
		resized = resized || changed
	}
	return resized, nil
}

func (e Event) apply(t Target) (bool, error) {
	var c [3]int
	copy(c[:], e.Cell)

	switch e.Action {
	case ActionFluid:
		t.AddFluid()
	case ActionForce:
		t.AddForce()
	case ActionFluidAt:
		t.AddFluidAt(c[0], c[1], c[2], e.Amount)
	case ActionForceAt:
		var f [3]float64
		copy(f[:], e.Force)
		t.AddForceAt(c[0], c[1], c[2], f)
	case ActionReset:
		t.Reset()
	case ActionClear:
		t.ClearEffects()
	case ActionResize:
		return t.Resize(e.N)
	}
	return false, nil
}
