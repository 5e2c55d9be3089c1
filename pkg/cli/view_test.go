package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/josancamon19/realtime-tutor/pkg/audio/spectrum"
	"github.com/josancamon19/realtime-tutor/pkg/transcript"
)

func TestTranscriptLines(t *testing.T) {
	s := NewStyles(DefaultTheme)
	lines := s.TranscriptLines([]transcript.Turn{
		{Sender: "user", Text: "what is a tide?"},
		{Sender: "assistant", Text: "the rise and fall of the sea"},
	})
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if !strings.Contains(lines[0], "user:") || !strings.HasSuffix(lines[0], "what is a tide?") {
		t.Errorf("line 0 = %q", lines[0])
	}
}

func TestEventLinesShowCount(t *testing.T) {
	s := NewStyles(DefaultTheme)
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	lines := s.EventLines([]transcript.LogEntry{
		{Time: at, Source: "client", Type: "input_audio_buffer.append", Count: 12},
		{Time: at, Source: "server", Type: "response.done", Count: 1},
	})
	if !strings.Contains(lines[0], "↑ input_audio_buffer.append") || !strings.Contains(lines[0], "(12)") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.Contains(lines[1], "↓ response.done") || strings.Contains(lines[1], "(1)") {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestMeter(t *testing.T) {
	snap := spectrum.Snapshot{Values: []float64{0, 0.5, 1, 1}}
	if got := Meter(snap, 4); got != " ▄██" {
		t.Errorf("Meter = %q", got)
	}
	if got := Meter(snap, 2); got != "▄█" {
		t.Errorf("Meter(2) = %q", got)
	}
	if got := Meter(spectrum.Snapshot{}, 3); got != "   " {
		t.Errorf("Meter(empty) = %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{850 * time.Millisecond, "850ms"},
		{12500 * time.Millisecond, "12.5s"},
		{184 * time.Second, "3m4.0s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFrameRender(t *testing.T) {
	f := Frame{
		Styles: NewStyles(DefaultTheme),
		Title:  "tutor",
		Status: "recording",
		Sections: []Section{
			{Label: "Transcript", Content: func() []string {
				return []string{"one", "two", "three", "four", "five", strings.Repeat("x", 200)}
			}},
		},
		Help: "ctrl+c to quit",
	}
	out := f.Render(40, 10)
	lines := strings.Split(out, "\n")
	for i, line := range lines[:len(lines)-1] {
		if w := lipgloss.Width(line); w != 40 {
			t.Errorf("line %d width = %d, want 40: %q", i, w, line)
		}
	}
	if !strings.Contains(out, "…") {
		t.Error("long line was not truncated")
	}
	if strings.Contains(out, "one") {
		t.Error("oldest line should scroll out")
	}
	if got := (Frame{}).Render(0, 0); got != "Loading..." {
		t.Errorf("Render(0,0) = %q", got)
	}
}

func TestLogWriterKeepsLastLines(t *testing.T) {
	w := NewLogWriter(3)
	w.Write([]byte("one\ntwo\n"))
	w.Write([]byte("three\n"))
	w.Write([]byte("four\n"))
	got := w.Lines()
	if strings.Join(got, ",") != "two,three,four" {
		t.Errorf("Lines() = %q", got)
	}
}
