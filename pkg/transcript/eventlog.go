package transcript

import (
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/josancamon19/realtime-tutor/pkg/realtime"
)

// LogEntry is one displayed event log row. Count is the number of adjacent
// events of the same type it stands for; Time and Raw are the first's.
type LogEntry struct {
	Time   time.Time       `json:"time"`
	Source realtime.Source `json:"source"`
	Type   string          `json:"type"`
	Count  int             `json:"count"`
	Raw    json.RawMessage `json:"raw,omitempty"`
}

// EventLog records wire events. An event merges into the previous entry if
// and only if it has the same type.
type EventLog struct {
	mu      sync.Mutex
	entries []LogEntry
	limit   int
}

// NewEventLog keeps at most limit entries (0 for no limit), dropping the
// oldest.
func NewEventLog(limit int) *EventLog {
	return &EventLog{limit: limit}
}

// Record adds ev to the log.
func (l *EventLog) Record(ev realtime.WireEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := len(l.entries); n > 0 && l.entries[n-1].Type == ev.Type {
		l.entries[n-1].Count++
		return
	}
	l.entries = append(l.entries, LogEntry{Time: ev.Time, Source: ev.Source, Type: ev.Type, Count: 1, Raw: ev.Raw})
	if l.limit > 0 && len(l.entries) > l.limit {
		l.entries = slices.Delete(l.entries, 0, len(l.entries)-l.limit)
	}
}

// Entries returns a copy of the log, oldest first.
func (l *EventLog) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}
