package tui

import (
	"fmt"
	"slices"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// TUI view names.
const (
	ViewInspectCapture = "inspect_capture"
	ViewStatsSession   = "stats_session"
	ViewStatsImages    = "stats_images"
)

// keyMap defines key bindings shared by all views.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// Run starts the TUI for view and blocks until the user quits.
func Run(view string, data any) error {
	model, err := NewModel(view, data)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

// NewModel returns the Bubble Tea model for view.
func NewModel(view string, data any) (tea.Model, error) {
	switch view {
	case ViewStatsSession:
		return NewStatsModel(data), nil
	case ViewInspectCapture, ViewStatsImages:
		return NewTableModel(view, data), nil
	default:
		return nil, fmt.Errorf("TUI mode is not supported for %s", view)
	}
}

// IsTUISupported returns true if the view supports TUI mode.
// Only read-only views (inspect, stats) do.
func IsTUISupported(view string) bool {
	return slices.Contains(SupportedTUIViews(), view)
}

// SupportedTUIViews returns the views that support TUI mode.
func SupportedTUIViews() []string {
	return []string{ViewInspectCapture, ViewStatsSession, ViewStatsImages}
}
