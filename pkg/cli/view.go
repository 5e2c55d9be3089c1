package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/josancamon19/realtime-tutor/pkg/audio/spectrum"
	"github.com/josancamon19/realtime-tutor/pkg/transcript"
)

// Theme is the color scheme of the live view.
type Theme struct {
	Primary   lipgloss.Color
	User      lipgloss.Color
	Assistant lipgloss.Color
	Dim       lipgloss.Color
	Alert     lipgloss.Color
}

// DefaultTheme is green on dark.
var DefaultTheme = Theme{
	Primary:   lipgloss.Color("#00ff9f"),
	User:      lipgloss.Color("#58a6ff"),
	Assistant: lipgloss.Color("#00ff9f"),
	Dim:       lipgloss.Color("#6e7681"),
	Alert:     lipgloss.Color("#ff7b72"),
}

// Styles are derived from a Theme.
type Styles struct {
	Title     lipgloss.Style
	Label     lipgloss.Style
	Border    lipgloss.Style
	Help      lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	Tool      lipgloss.Style
	Alert     lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Label:     lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Border:    lipgloss.NewStyle().Foreground(t.Primary),
		Help:      lipgloss.NewStyle().Foreground(t.Dim),
		User:      lipgloss.NewStyle().Bold(true).Foreground(t.User),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(t.Assistant),
		Tool:      lipgloss.NewStyle().Italic(true).Foreground(t.Dim),
		Alert:     lipgloss.NewStyle().Bold(true).Foreground(t.Alert),
	}
}

// TranscriptLines renders one line per turn, the sender styled by role.
func (s Styles) TranscriptLines(turns []transcript.Turn) []string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		style := s.Assistant
		switch t.Sender {
		case "user":
			style = s.User
		case transcript.SenderTool:
			style = s.Tool
		}
		lines = append(lines, style.Render(t.Sender+":")+" "+t.Text)
	}
	return lines
}

// EventLines renders the coalesced event log, newest last.
func (s Styles) EventLines(entries []transcript.LogEntry) []string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		arrow := "↑"
		if e.Source == "server" {
			arrow = "↓"
		}
		line := fmt.Sprintf("%s %s %s", s.Help.Render(e.Time.Format("15:04:05.000")), arrow, e.Type)
		if e.Count > 1 {
			line += s.Help.Render(fmt.Sprintf(" (%d)", e.Count))
		}
		lines = append(lines, line)
	}
	return lines
}

const meterLevels = " ▁▂▃▄▅▆▇█"

// Meter renders a snapshot as a row of block characters, one per band,
// resampled to width.
func Meter(snap spectrum.Snapshot, width int) string {
	levels := []rune(meterLevels)
	if width <= 0 || len(snap.Values) == 0 {
		return strings.Repeat(" ", max(width, 0))
	}
	var b strings.Builder
	for i := range width {
		lo := i * len(snap.Values) / width
		hi := max((i+1)*len(snap.Values)/width, lo+1)
		var v float64
		for _, x := range snap.Values[lo:hi] {
			v = max(v, x)
		}
		idx := int(v * float64(len(levels)-1))
		b.WriteRune(levels[min(max(idx, 0), len(levels)-1)])
	}
	return b.String()
}

// FormatDuration formats a duration as 850ms, 12.5s or 3m4.0s.
func FormatDuration(d time.Duration) string {
	ms := int(d / time.Millisecond)
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	secs := float64(ms) / 1000
	if secs < 60 {
		return fmt.Sprintf("%.1fs", secs)
	}
	mins := int(secs / 60)
	secs -= float64(mins * 60)
	return fmt.Sprintf("%dm%.1fs", mins, secs)
}

// Section is a labeled panel whose content is fetched at render time.
type Section struct {
	Label   string
	Content func() []string
}

// Frame is one full-screen render of the live session.
type Frame struct {
	Styles   Styles
	Title    string
	Status   string
	Sections []Section
	Help     string
}

// Render draws the frame in a width x height box. Sections share the
// height evenly and show their last lines.
func (f Frame) Render(width, height int) string {
	if width < 8 || height < 8 {
		return "Loading..."
	}

	bc := f.Styles.Border
	inner := width - 4
	var lines []string

	lines = append(lines, bc.Render("╭"+strings.Repeat("─", width-2)+"╮"))
	title := f.Styles.Title.Render(f.Title)
	status := f.Styles.Help.Render("[" + f.Status + "]")
	pad := max(0, width-5-lipgloss.Width(title)-lipgloss.Width(status))
	lines = append(lines, bc.Render("│")+" "+title+" "+status+strings.Repeat(" ", pad)+" "+bc.Render("│"))

	n := max(len(f.Sections), 1)
	rows := max((height-4-n)/n, 2)
	for _, sec := range f.Sections {
		label := f.Styles.Label.Render(sec.Label)
		fill := max(0, width-3-lipgloss.Width(label))
		lines = append(lines, bc.Render("├─")+label+bc.Render(strings.Repeat("─", fill)+"┤"))

		content := sec.Content()
		if len(content) > rows {
			content = content[len(content)-rows:]
		}
		for i := range rows {
			text := ""
			if i < len(content) {
				text = content[i]
			}
			if lipgloss.Width(text) > inner {
				text = truncate(text, inner-1) + "…"
			}
			lines = append(lines, bc.Render("│")+" "+text+strings.Repeat(" ", max(0, inner-lipgloss.Width(text)))+" "+bc.Render("│"))
		}
	}

	lines = append(lines, bc.Render("╰"+strings.Repeat("─", width-2)+"╯"))
	lines = append(lines, f.Styles.Help.Render(f.Help))
	return strings.Join(lines, "\n")
}

// truncate cuts s to at most width display cells.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	w := 0
	for i, r := range s {
		rw := lipgloss.Width(string(r))
		if w+rw > width {
			return s[:i]
		}
		w += rw
	}
	return s
}
