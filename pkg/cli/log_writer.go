package cli

import (
	"strings"
	"sync"
)

// LogWriter is an io.Writer that keeps the last lines written to it, so
// log output can be shown inside the live view instead of scrolling it.
type LogWriter struct {
	mu    sync.Mutex
	lines []string
	max   int
}

// NewLogWriter keeps at most maxLines lines.
func NewLogWriter(maxLines int) *LogWriter {
	return &LogWriter{max: max(maxLines, 1)}
}

// Write splits p into lines and appends them.
func (w *LogWriter) Write(p []byte) (int, error) {
	text := strings.TrimRight(string(p), "\n")
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lines = append(w.lines, strings.Split(text, "\n")...)
	if over := len(w.lines) - w.max; over > 0 {
		w.lines = append(w.lines[:0], w.lines[over:]...)
	}
	return len(p), nil
}

// Lines returns a copy of the buffered lines, oldest first.
func (w *LogWriter) Lines() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.lines...)
}
