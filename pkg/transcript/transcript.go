// Package transcript turns the protocol client's stream of item updates into
// a live transcript, a persisted message history, an event log and a cache
// of playable audio.
package transcript

import (
	"net/url"
	"strings"

	"github.com/josancamon19/realtime-tutor/pkg/history"
	"github.com/josancamon19/realtime-tutor/pkg/realtime"
)

// SenderTool labels function call items and their outputs.
const SenderTool = "tool"

// ExtractText returns the best text for an item: the transcript, else the
// raw text, else the per-part transcripts (or texts) of its content joined
// in order. The result is trimmed.
func ExtractText(it *realtime.Item) string {
	if it == nil {
		return ""
	}
	if s := strings.TrimSpace(it.Formatted.Transcript); s != "" {
		return s
	}
	if s := strings.TrimSpace(it.Formatted.Text); s != "" {
		return s
	}
	var b strings.Builder
	for _, p := range it.Content {
		s := p.Transcript
		if s == "" {
			s = p.Text
		}
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s)
	}
	return b.String()
}

// Sender returns the item's role, or SenderTool for function items.
func Sender(it *realtime.Item) string {
	switch it.Type {
	case realtime.ItemTypeFunctionCall, realtime.ItemTypeFunctionCallOutput:
		return SenderTool
	}
	return it.Role
}

// Turn is one displayed transcript entry.
type Turn struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// Render builds the displayed transcript from an item snapshot. Items with
// no text are skipped; adjacent items from the same sender merge into one
// turn joined by a space.
func Render(items []*realtime.Item) []Turn {
	var turns []Turn
	for _, it := range items {
		turns = appendTurn(turns, Sender(it), ExtractText(it))
	}
	return turns
}

// Join builds the displayed transcript from persisted history.
func Join(msgs []history.Message) []Turn {
	var turns []Turn
	for _, m := range msgs {
		turns = appendTurn(turns, m.Sender, strings.TrimSpace(m.Text))
	}
	return turns
}

func appendTurn(turns []Turn, sender, text string) []Turn {
	if text == "" {
		return turns
	}
	if n := len(turns); n > 0 && turns[n-1].Sender == sender {
		turns[n-1].Text += " " + text
		return turns
	}
	return append(turns, Turn{Sender: sender, Text: text})
}

// Plain formats turns as "sender: text" lines.
func Plain(turns []Turn) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(t.Sender)
		b.WriteString(": ")
		b.WriteString(t.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// ChatURL returns base with the plain transcript, prefixed by prompt, set as
// the "q" query parameter.
func ChatURL(base, prompt string, turns []Turn) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("q", strings.TrimSpace(prompt+"\n\n"+Plain(turns)))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
