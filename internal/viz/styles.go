package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	canvasStyle  lipgloss.Style
	statsStyle   lipgloss.Style
	headerStyle  lipgloss.Style
	labelStyle   lipgloss.Style
	valueStyle   lipgloss.Style
	graphStyle   lipgloss.Style
	helpStyle    lipgloss.Style
	statusOK     lipgloss.Style
	statusPaused lipgloss.Style
	statusError  lipgloss.Style
	sparkHigh    lipgloss.Style
	sparkMid     lipgloss.Style
	sparkLow     lipgloss.Style
)

func init() { applyTheme() }

// applyTheme rebuilds the package styles from CurrentTheme.
func applyTheme() {
	t := CurrentTheme
	canvasStyle = lipgloss.NewStyle().Padding(1, 2).Foreground(t.Smoke)
	statsStyle = lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(t.Muted).
		Padding(1, 2).
		Width(44)
	headerStyle = lipgloss.NewStyle().Foreground(t.Accent).Bold(true).MarginBottom(1)
	labelStyle = lipgloss.NewStyle().Foreground(t.Muted).Width(12)
	valueStyle = lipgloss.NewStyle().Foreground(t.Text)
	graphStyle = lipgloss.NewStyle().Foreground(t.Flow).Padding(1, 0)
	helpStyle = lipgloss.NewStyle().Foreground(t.Muted).MarginTop(1)
	statusOK = lipgloss.NewStyle().Bold(true).Foreground(t.Success)
	statusPaused = lipgloss.NewStyle().Bold(true).Foreground(t.Warning)
	statusError = lipgloss.NewStyle().Bold(true).Foreground(t.Error)
	sparkHigh = lipgloss.NewStyle().Foreground(t.Error)
	sparkMid = lipgloss.NewStyle().Foreground(t.Warning)
	sparkLow = lipgloss.NewStyle().Foreground(t.Success)
}

// BudgetBar shows how much of the frame budget the average frame uses.
// A full bar means the frame takes at least twice the budget.
func BudgetBar(avg, desired float64, width int) string {
	if desired <= 0 {
		return strings.Repeat("░", width)
	}
	ratio := avg / (2 * desired)
	filled := min(max(int(ratio*float64(width)), 0), width)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	switch {
	case avg > desired+0.01:
		return sparkHigh.Render(bar)
	case avg > desired:
		return sparkMid.Render(bar)
	}
	return sparkLow.Render(bar)
}

// Sparkline renders the last width values as block characters.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 {
		return strings.Repeat("─", width)
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo, hi = min(lo, v), max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	var b strings.Builder
	for _, v := range values {
		norm := (v - lo) / rng
		idx := min(max(int(norm*float64(len(chars)-1)), 0), len(chars)-1)
		b.WriteRune(chars[idx])
	}
	return b.String()
}
