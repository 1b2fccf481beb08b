package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/camrelay/cli/reader"
)

// StatsModel shows the counters of one session.
type StatsModel struct {
	data     any
	width    int
	quitting bool
}

// NewStatsModel creates a stats model over a *reader.SessionStats.
func NewStatsModel(data any) StatsModel {
	return StatsModel{data: data}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}
	return m.render() + "\n" + helpStyle.Render("Press q or Ctrl+C to quit")
}

func (m StatsModel) render() string {
	data, ok := m.data.(*reader.SessionStats)
	if !ok {
		return "Invalid data type for " + ViewStatsSession
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Session " + data.SessionID))
	b.WriteString("\n")

	rows := [][2]string{
		{"Source", data.Source},
		{"Input", data.Input},
		{"Output", data.Output},
		{"Ended", data.EndedAt},
	}
	for _, row := range rows {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(row[0]+":"), valueStyle.Render(row[1]))
	}
	fmt.Fprintf(&b, "%s %s\n\n", labelStyle.Render("Outcome:"), stateStyle(data.Outcome).Render(data.Outcome))

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		tile("Datagrams", data.DatagramsReceived, colorFrame),
		tile("Rejected", data.DatagramsRejected, colorBad),
		tile("Ignored", data.FragmentsIgnored, colorWarn),
	))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		tile("Images", data.ImagesCompleted, colorGood),
		tile("Discarded", data.ImagesDiscarded, colorWarn),
		tile("Fallback", data.ImagesFallback, colorDim),
	))
	b.WriteString("\n")

	if line := reasonLine(data.RejectedByReason); line != "" {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Rejected by:"), valueStyle.Render(line))
	}
	if line := reasonLine(data.IgnoredByReason); line != "" {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Ignored by:"), valueStyle.Render(line))
	}
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Image bytes:"), valueStyle.Render(fmt.Sprintf("%d", data.ImageBytes)))

	return boxStyle.Render(b.String())
}

func tile(label string, value int64, color lipgloss.Color) string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		tileValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value)),
		tileLabelStyle.Render(label),
	)
	return tileStyle.BorderForeground(color).Render(content)
}

// reasonLine formats reason counts as "a=1 b=2", sorted by reason.
func reasonLine(counts map[string]int64) string {
	reasons := make([]string, 0, len(counts))
	for r := range counts {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	parts := make([]string, len(reasons))
	for i, r := range reasons {
		parts[i] = fmt.Sprintf("%s=%d", r, counts[r])
	}
	return strings.Join(parts, " ")
}
