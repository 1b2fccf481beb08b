package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/justapithecus/camrelay/cli/reader"
)

func TestIsTUISupported(t *testing.T) {
	tests := []struct {
		view string
		want bool
	}{
		{ViewInspectCapture, true},
		{ViewStatsSession, true},
		{ViewStatsImages, true},
		{"listen", false},
		{"replay", false},
		{"version", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.view, func(t *testing.T) {
			if got := IsTUISupported(tt.view); got != tt.want {
				t.Errorf("IsTUISupported(%q) = %v, want %v", tt.view, got, tt.want)
			}
		})
	}
}

func TestRun_UnsupportedView(t *testing.T) {
	if err := Run("listen", nil); err == nil {
		t.Error("expected error for unsupported view")
	}
}

func TestStatsModel_View(t *testing.T) {
	m := NewStatsModel(&reader.SessionStats{
		SessionID:         "s-1",
		Source:            "cam-1",
		Outcome:           "completed",
		DatagramsReceived: 1400,
		ImagesCompleted:   100,
		RejectedByReason:  map[string]int64{"unknown_type": 2, "short": 1},
	})

	view := m.View()
	for _, want := range []string{"Session s-1", "cam-1", "1400", "100", "short=1 unknown_type=2", "quit"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestStatsModel_WrongData(t *testing.T) {
	m := NewStatsModel("nope")
	if !strings.Contains(m.View(), "Invalid data type") {
		t.Error("expected invalid data message")
	}
}

func TestStatsModel_Quit(t *testing.T) {
	m := NewStatsModel(&reader.SessionStats{})
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if next.(StatsModel).View() != "" {
		t.Error("view should be empty after quit")
	}
}

func TestTableModel_Capture(t *testing.T) {
	resp := &reader.InspectCaptureResponse{
		Summary: reader.CaptureSummary{Input: "capture://cam.cap", Datagrams: 2, ImagesStarted: 1},
		Fragments: []reader.FragmentRow{
			{Index: 0, Kind: "first", FrameID: 42, StreamID: 7, Length: 1400, Status: "started"},
			{Index: 1, Length: 3, Status: reader.StatusRejected, Reason: "short"},
		},
	}
	m := NewTableModel(ViewInspectCapture, resp)

	view := m.View()
	if !strings.Contains(view, "capture://cam.cap") || !strings.Contains(view, "2 datagrams") {
		t.Errorf("view missing title or summary:\n%s", view)
	}

	if sel := m.Selected(); len(sel) == 0 || sel[3] != "42" {
		t.Errorf("selected row = %v, want frame 42 first", sel)
	}
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if sel := next.(TableModel).Selected(); len(sel) == 0 || sel[6] != reader.StatusRejected {
		t.Errorf("selected row after down = %v", sel)
	}
}

func TestTableModel_Images(t *testing.T) {
	m := NewTableModel(ViewStatsImages, []reader.ImageItem{
		{Ts: "2026-03-01T12:00:00Z", StreamID: 7, FrameID: 1, SizeBytes: 18342, Fragments: 14},
	})
	if !strings.Contains(m.View(), "1 images") {
		t.Errorf("view missing summary:\n%s", m.View())
	}
}

func TestNewModel(t *testing.T) {
	for _, view := range SupportedTUIViews() {
		if _, err := NewModel(view, nil); err != nil {
			t.Errorf("NewModel(%q) failed: %v", view, err)
		}
	}
	if _, err := NewModel("listen", nil); err == nil {
		t.Error("expected error for unsupported view")
	}
}
