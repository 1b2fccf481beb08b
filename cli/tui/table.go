package tui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/camrelay/cli/reader"
)

// defaultTableHeight is used until the first WindowSizeMsg arrives.
const defaultTableHeight = 20

// TableModel is a scrollable list of fragments or stored images.
type TableModel struct {
	view     string
	title    string
	summary  string
	table    table.Model
	err      string
	quitting bool
}

// NewTableModel builds a table over *reader.InspectCaptureResponse
// (inspect_capture) or []reader.ImageItem (stats_images).
func NewTableModel(view string, data any) TableModel {
	m := TableModel{view: view}

	var cols []table.Column
	var rows []table.Row
	switch d := data.(type) {
	case *reader.InspectCaptureResponse:
		m.title = "Capture " + d.Summary.Input
		m.summary = fmt.Sprintf("%d datagrams, %d rejected, %d ignored, %d/%d images completed, %d streams",
			d.Summary.Datagrams, d.Summary.Rejected, d.Summary.Ignored,
			d.Summary.ImagesCompleted, d.Summary.ImagesStarted, d.Summary.Streams)
		cols, rows = fragmentTable(d.Fragments)
	case []reader.ImageItem:
		m.title = "Stored images"
		m.summary = fmt.Sprintf("%d images", len(d))
		cols, rows = imageTable(d)
	default:
		m.err = "Invalid data type for " + view
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(defaultTableHeight),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorDim).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(colorFrame)
	t.SetStyles(s)
	m.table = t
	return m
}

func fragmentTable(frags []reader.FragmentRow) ([]table.Column, []table.Row) {
	cols := []table.Column{
		{Title: "#", Width: 6},
		{Title: "Kind", Width: 7},
		{Title: "Chunk", Width: 6},
		{Title: "Frame", Width: 10},
		{Title: "Stream", Width: 10},
		{Title: "Len", Width: 6},
		{Title: "Status", Width: 10},
		{Title: "Reason", Width: 15},
	}
	rows := make([]table.Row, 0, len(frags))
	for _, f := range frags {
		rows = append(rows, table.Row{
			strconv.Itoa(f.Index),
			f.Kind,
			strconv.FormatUint(uint64(f.ChunkIndex), 10),
			strconv.FormatUint(uint64(f.FrameID), 10),
			strconv.FormatUint(uint64(f.StreamID), 10),
			strconv.Itoa(f.Length),
			f.Status,
			f.Reason,
		})
	}
	return cols, rows
}

func imageTable(items []reader.ImageItem) ([]table.Column, []table.Row) {
	cols := []table.Column{
		{Title: "Received", Width: 30},
		{Title: "Stream", Width: 10},
		{Title: "Frame", Width: 10},
		{Title: "Bytes", Width: 9},
		{Title: "Frags", Width: 6},
		{Title: "Fallback", Width: 8},
	}
	rows := make([]table.Row, 0, len(items))
	for _, it := range items {
		rows = append(rows, table.Row{
			it.Ts,
			strconv.FormatInt(it.StreamID, 10),
			strconv.FormatInt(it.FrameID, 10),
			strconv.FormatInt(it.SizeBytes, 10),
			strconv.FormatInt(it.Fragments, 10),
			strconv.FormatBool(it.Fallback),
		})
	}
	return cols, rows
}

// Init implements tea.Model.
func (m TableModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m TableModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// Title, summary, help and borders take about eight lines.
		if h := msg.Height - 8; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m TableModel) View() string {
	if m.quitting {
		return ""
	}
	if m.err != "" {
		return m.err
	}
	return titleStyle.Render(m.title) + "\n" +
		valueStyle.Render(m.summary) + "\n\n" +
		m.table.View() + "\n" +
		helpStyle.Render("↑/↓ scroll • q quit")
}

// Selected returns the row under the cursor, nil when empty.
func (m TableModel) Selected() []string {
	return m.table.SelectedRow()
}
