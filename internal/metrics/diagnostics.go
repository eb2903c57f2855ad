package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/fluidsim/internal/fluid"
)

// Source is what diagnostics read after each frame.
type Source interface {
	OutputVolume() fluid.Volume
	VelocityVolumes() []fluid.Volume
	Divergence() float64
}

// Diagnostic accumulates one scalar over a run.
type Diagnostic interface {
	Name() string
	Observe(src Source)
	Value() float64
	Reset()
}

// Mass tracks total interior density. Value is the latest sample.
type Mass struct {
	name    string
	current float64
	peak    float64
	samples int
}

func NewMass() *Mass { return &Mass{name: "mass"} }

func (m *Mass) Name() string { return m.name }

func (m *Mass) Observe(src Source) {
	m.current = src.OutputVolume().InteriorSum()
	m.peak = math.Max(m.peak, m.current)
	m.samples++
}

func (m *Mass) Value() float64 { return m.current }

func (m *Mass) Peak() float64 { return m.peak }

func (m *Mass) Reset() {
	m.current = 0
	m.peak = 0
	m.samples = 0
}

// KineticEnergy is 0.5 * sum(|v|^2) over interior cells, averaged over the
// observed frames.
type KineticEnergy struct {
	name    string
	latest  float64
	total   float64
	samples int
}

func NewKineticEnergy() *KineticEnergy { return &KineticEnergy{name: "kinetic_energy"} }

func (k *KineticEnergy) Name() string { return k.name }

func (k *KineticEnergy) Observe(src Source) {
	e := 0.0
	for _, c := range src.VelocityVolumes() {
		for _, row := range c.Rows() {
			e += floats.Dot(row, row)
		}
	}
	k.latest = 0.5 * e
	k.total += k.latest
	k.samples++
}

func (k *KineticEnergy) Value() float64 {
	if k.samples == 0 {
		return 0
	}
	return k.total / float64(k.samples)
}

func (k *KineticEnergy) Latest() float64 { return k.latest }

func (k *KineticEnergy) Reset() {
	k.latest = 0
	k.total = 0
	k.samples = 0
}

// Divergence keeps the largest squared divergence seen after a step.
// A working projection keeps it close to zero.
type Divergence struct {
	name    string
	worst   float64
	samples int
}

func NewDivergence() *Divergence { return &Divergence{name: "divergence"} }

func (d *Divergence) Name() string { return d.name }

func (d *Divergence) Observe(src Source) {
	d.worst = math.Max(d.worst, src.Divergence())
	d.samples++
}

func (d *Divergence) Value() float64 { return d.worst }

func (d *Divergence) Reset() {
	d.worst = 0
	d.samples = 0
}

// Stability is the fraction of frames whose fields stayed finite and below
// threshold in magnitude.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(src Source) {
	s.samples++
	fields := append([]fluid.Volume{src.OutputVolume()}, src.VelocityVolumes()...)
	for _, f := range fields {
		for _, val := range f.Values() {
			if math.IsNaN(val) || math.Abs(val) > s.threshold {
				s.violations++
				return
			}
		}
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// DefaultDiagnostics is the set the CLI records for every run.
func DefaultDiagnostics() []Diagnostic {
	return []Diagnostic{NewMass(), NewKineticEnergy(), NewDivergence(), NewStability(1e6)}
}
