package viz

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/fluidsim/internal/metrics"
	"github.com/san-kum/fluidsim/internal/sim"
)

const (
	width           = 60
	height          = 24
	historyCapacity = 300
	flowStride      = 4
)

type TickMsg time.Time

// SettingsMsg carries live-adjustable settings from outside the program,
// e.g. a reloaded config file. Zero fields are left alone.
type SettingsMsg struct {
	TargetFPS   int
	SolverSteps int
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/60, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Model is the live view: it advances the runner once per tick and draws
// the density field with an optional velocity overlay.
type Model struct {
	ctx     context.Context
	runner  *sim.Runner
	backend string

	canvas  *Canvas
	fps     *metrics.FPSCounter
	running bool
	project bool
	flow    bool
	layer   int

	frameHistory []float64
	nHistory     []float64
	last         sim.Frame
	debug        string
	err          error
	showHelp     bool

	recording bool
	frames    []*image.Paletted
}

// NewModel builds a live view over r. backend is only displayed.
func NewModel(ctx context.Context, r *sim.Runner, backend string) Model {
	return Model{
		ctx:          ctx,
		runner:       r,
		backend:      backend,
		canvas:       NewCanvas(width, height),
		fps:          metrics.NewFPSCounter(time.Second, nil),
		running:      true,
		project:      true,
		layer:        (r.Simulation().N() + 1) / 2,
		frameHistory: make([]float64, 0, historyCapacity),
		nHistory:     make([]float64, 0, historyCapacity),
	}
}

func (m Model) Init() tea.Cmd { return tick() }

// Err is the step failure that ended the session, if any.
func (m Model) Err() error { return m.err }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	s := m.runner.Simulation()
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.stopRecording()
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "f":
			s.AddFluid()
		case "g":
			s.AddForce()
		case "r":
			s.Reset()
			m.frameHistory = m.frameHistory[:0]
			m.nHistory = m.nHistory[:0]
			if t := m.runner.Tuner(); t != nil {
				t.Reset()
			}
		case "c":
			s.ClearEffects()
		case "+", "=":
			m.resize(s.N() + 1)
		case "-", "_":
			m.resize(s.N() - 1)
		case "d":
			dens, pending := s.DebugSums()
			m.debug = fmt.Sprintf("dens %.4g  pending %.4g", dens, pending)
		case "[":
			m.layer = max(m.layer-1, 1)
		case "]":
			m.layer = min(m.layer+1, s.N())
		case "p":
			m.project = !m.project
		case "v":
			m.flow = !m.flow
		case "t":
			NextTheme()
		case "o":
			if m.recording {
				m.stopRecording()
			} else {
				m.recording = true
			}
		case "?":
			m.showHelp = !m.showHelp
		}
		return m, nil

	case SettingsMsg:
		if t := m.runner.Tuner(); t != nil && msg.TargetFPS > 0 {
			t.SetTargetFPS(msg.TargetFPS)
		}
		if msg.SolverSteps > 0 {
			s.SetIterationBudget(msg.SolverSteps)
		}
		return m, nil

	case TickMsg:
		if m.running {
			frame, err := m.runner.Advance(m.ctx)
			if err != nil {
				m.err = err
				return m, tea.Quit
			}
			m.record(frame)
		}
		m.draw()
		if m.recording {
			m.captureFrame()
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) resize(n int) {
	s := m.runner.Simulation()
	if _, err := s.Resize(n); err != nil {
		m.debug = err.Error()
		return
	}
	m.layer = min(m.layer, s.N())
}

func (m *Model) record(f sim.Frame) {
	m.last = f
	m.fps.Tick()
	m.frameHistory = appendCapped(m.frameHistory, f.Seconds*1000)
	m.nHistory = appendCapped(m.nHistory, float64(f.Metrics.N))
	m.layer = min(m.layer, f.Metrics.N)
}

func appendCapped(h []float64, v float64) []float64 {
	h = append(h, v)
	if len(h) > historyCapacity {
		h = h[1:]
	}
	return h
}

func (m *Model) draw() {
	s := m.runner.Simulation()
	m.canvas.Clear()

	dens := s.OutputVolume()
	if m.project {
		m.canvas.DrawPlane(ProjectPlane(dens), 0)
	} else {
		m.canvas.DrawPlane(SlicePlane(dens, m.layer), 0)
	}

	if m.flow {
		vel := s.VelocityVolumes()
		k := m.layer
		if m.project {
			k = (s.N() + 1) / 2
		}
		m.canvas.DrawFlow(SlicePlane(vel[0], k), SlicePlane(vel[1], k), flowStride)
	}
}

func (m Model) View() string {
	s := m.runner.Simulation()
	canvasView := canvasStyle.Render(m.canvas.String())

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("FLUID %dD", s.Params().Dim)) + "\n")

	switch {
	case m.err != nil:
		b.WriteString(statusError.Render("FAILED") + "\n\n")
	case !m.running:
		b.WriteString(statusPaused.Render("PAUSED") + "\n\n")
	case m.recording:
		b.WriteString(statusError.Render("● REC") + "\n\n")
	default:
		b.WriteString(statusOK.Render("RUNNING") + "\n\n")
	}

	if len(m.frameHistory) > 1 {
		chart := asciigraph.Plot(m.frameHistory,
			asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("frame ms"))
		b.WriteString(graphStyle.Render(chart) + "\n")
	}
	if len(m.nHistory) > 1 {
		b.WriteString(labelStyle.Render("N trend") + Sparkline(m.nHistory, 24) + "\n")
	}

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("Frame", fmt.Sprintf("%d", s.Frame()))
	row("N", fmt.Sprintf("%d", s.N()))
	row("Steps", fmt.Sprintf("%d", s.SolverSteps()))
	row("FPS", fmt.Sprintf("%.1f", m.fps.FPS()))
	row("Pipeline", s.PipelineName())
	row("Backend", m.backend)
	row("Mass", fmt.Sprintf("%.4g", m.last.Mass))
	if m.project {
		row("View", "projection")
	} else {
		row("View", fmt.Sprintf("slice k=%d", m.layer))
	}

	if t := m.runner.Tuner(); t != nil {
		st := t.Stats()
		b.WriteString("\nTUNER " + t.Profile().String() + "\n")
		row("Avg", fmt.Sprintf("%.1f ms", st.Average*1000))
		row("Budget", BudgetBar(st.Average, st.Desired, 20))
		row("Last", st.Last.Direction.String())
	}
	if m.debug != "" {
		b.WriteString("\n" + valueStyle.Render(m.debug) + "\n")
	}
	if m.err != nil {
		b.WriteString("\n" + statusError.Render(m.err.Error()) + "\n")
	}

	b.WriteString(helpStyle.Render("─────────────────────\nSP:Pause F:Fluid G:Force\nR:Reset C:Clear +/-:N\nV:Flow P:Proj ?:Help Q:Quit"))
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(b.String()))

	if m.showHelp {
		return `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume             ║
║  F / G    - Inject fluid / force     ║
║  R        - Reset fields             ║
║  C        - Clear pending sources    ║
║  + / -    - Grow / shrink N          ║
║  [ / ]    - Move the slice layer     ║
║  P        - Projection / slice       ║
║  V        - Velocity overlay         ║
║  D        - Debug sums               ║
║  T        - Cycle themes             ║
║  O        - Toggle GIF recording     ║
║  Q        - Quit                     ║
╚══════════════════════════════════════╝
` + "\n\n" + mainView
	}
	return mainView
}

func (m *Model) stopRecording() {
	if !m.recording {
		return
	}
	m.recording = false
	m.saveGIF()
	m.frames = nil
}

// captureFrame rasterizes the braille canvas into a two-color image.
func (m *Model) captureFrame() {
	const charW, charH = 8, 16
	dotW, dotH := charW/2, charH/4
	img := image.NewPaletted(image.Rect(0, 0, m.canvas.Width*charW, m.canvas.Height*charH),
		color.Palette{color.Black, color.White})

	for y := 0; y < m.canvas.Height*4; y++ {
		for x := 0; x < m.canvas.Width*2; x++ {
			if !m.canvas.IsSet(x, y) {
				continue
			}
			for py := 0; py < dotH; py++ {
				for px := 0; px < dotW; px++ {
					img.SetColorIndex(x*dotW+px, y*dotH+py, 1)
				}
			}
		}
	}
	m.frames = append(m.frames, img)
}

func (m *Model) saveGIF() {
	if len(m.frames) == 0 {
		return
	}
	anim := gif.GIF{}
	for _, frame := range m.frames {
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, 2)
	}
	f, err := os.Create("fluid.gif")
	if err != nil {
		m.debug = err.Error()
		return
	}
	defer f.Close()
	if err := gif.EncodeAll(f, &anim); err != nil {
		m.debug = err.Error()
	}
}

func NewProgram(ctx context.Context, r *sim.Runner, backend string) *tea.Program {
	return tea.NewProgram(NewModel(ctx, r, backend), tea.WithAltScreen())
}

// Run executes p and returns the error that stopped the simulation, if any.
func Run(p *tea.Program) error {
	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(Model); ok {
		return m.Err()
	}
	return nil
}
