// Package tui provides Bubble Tea views for the camrelay CLI.
//
// The TUI is opt-in (--tui) and read-only. It renders the same payloads
// as the json, table and yaml outputs; there is no TUI-only data.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent = lipgloss.Color("#0EA5E9")
	colorGood   = lipgloss.Color("#10B981")
	colorWarn   = lipgloss.Color("#F59E0B")
	colorBad    = lipgloss.Color("#EF4444")
	colorDim    = lipgloss.Color("#6B7280")
	colorFrame  = lipgloss.Color("#8B5CF6")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).MarginBottom(1)
	labelStyle = lipgloss.NewStyle().Foreground(colorDim).Width(20)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF"))
	helpStyle  = lipgloss.NewStyle().Foreground(colorDim).MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(1, 2)

	// One tile per counter in the stats view.
	tileStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorFrame).
			Padding(0, 2).
			Width(18).
			Align(lipgloss.Center)
	tileLabelStyle = lipgloss.NewStyle().Foreground(colorDim).Align(lipgloss.Center)
	tileValueStyle = lipgloss.NewStyle().Bold(true).Align(lipgloss.Center)
)

// stateColors maps session outcomes and fragment statuses to a color.
var stateColors = map[string]lipgloss.Color{
	"completed": colorGood,
	"canceled":  colorWarn,
	"ignored":   colorWarn,
	"started":   colorWarn,
	"failed":    colorBad,
	"rejected":  colorBad,
}

func stateStyle(state string) lipgloss.Style {
	if c, ok := stateColors[state]; ok {
		return lipgloss.NewStyle().Foreground(c)
	}
	return valueStyle
}
