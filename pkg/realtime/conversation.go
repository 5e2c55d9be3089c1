package realtime

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/josancamon19/realtime-tutor/pkg/audio/pcm"
)

// ErrItemNotFound is returned when an event or call names an unknown item.
var ErrItemNotFound = errors.New("realtime: item not found")

type queuedSpeech struct {
	startMs int
	endMs   int
	audio   []int16
}

// Conversation folds server events into an ordered item list. It also
// buffers the input audio sent so far so that VAD speech boundaries can be
// mapped back onto user items. It is safe for concurrent use.
type Conversation struct {
	format pcm.Format

	mu     sync.Mutex
	items  []*Item
	lookup map[string]*Item

	queuedSpeech      map[string]*queuedSpeech
	queuedTranscripts map[string]string
	queuedInputAudio  []int16

	// input holds input audio from sample inputBase onwards.
	input     []int16
	inputBase int
}

// NewConversation returns an empty conversation for 24 kHz audio.
func NewConversation() *Conversation {
	c := &Conversation{format: pcm.Realtime}
	c.clearLocked()
	return c
}

// Clear drops every item and all buffered audio.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

func (c *Conversation) clearLocked() {
	c.items = nil
	c.lookup = make(map[string]*Item)
	c.queuedSpeech = make(map[string]*queuedSpeech)
	c.queuedTranscripts = make(map[string]string)
	c.queuedInputAudio = nil
	c.input = nil
	c.inputBase = 0
}

// Items returns snapshots of all items in creation order.
func (c *Conversation) Items() []*Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Item, len(c.items))
	for i, it := range c.items {
		out[i] = it.Clone()
	}
	return out
}

// Item returns a snapshot of the item with id.
func (c *Conversation) Item(id string) (*Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.lookup[id]
	if !ok {
		return nil, false
	}
	return it.Clone(), true
}

// Delete removes an item locally. It reports whether the item existed.
func (c *Conversation) Delete(id string) (*Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleteLocked(id)
}

func (c *Conversation) deleteLocked(id string) (*Item, bool) {
	it, ok := c.lookup[id]
	if !ok {
		return nil, false
	}
	delete(c.lookup, id)
	c.items = slices.DeleteFunc(c.items, func(x *Item) bool { return x.ID == id })
	return it, true
}

// AppendInput records input audio that was sent to the server.
func (c *Conversation) AppendInput(samples []int16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = append(c.input, samples...)
}

// CommitInput moves buffered input audio onto the next user item, as the
// server does on input_audio_buffer.commit. It reports whether anything
// was buffered.
func (c *Conversation) CommitInput() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.input) == 0 {
		return false
	}
	c.queuedInputAudio = c.input
	c.inputBase += len(c.input)
	c.input = nil
	return true
}

// HasInput reports whether uncommitted input audio is buffered.
func (c *Conversation) HasInput() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.input) > 0
}

// Apply folds one server event into the conversation. It returns the
// affected item (nil when the event changed nothing visible), the delta
// carried by the event, and the kind of change.
func (c *Conversation) Apply(ev *ServerEvent) (*Item, *Delta, ChangeKind, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Type {
	case EventTypeConversationItemCreated:
		return c.itemCreated(ev)

	case EventTypeConversationItemTruncated:
		it, ok := c.lookup[ev.ItemID]
		if !ok {
			return nil, nil, 0, fmt.Errorf("%s %q: %w", ev.Type, ev.ItemID, ErrItemNotFound)
		}
		end := c.format.SamplesInMillis(ev.AudioEndMs)
		it.Formatted.Transcript = ""
		if end < len(it.Formatted.Audio) {
			it.Formatted.Audio = it.Formatted.Audio[:end]
		}
		return it, nil, ChangeTruncated, nil

	case EventTypeConversationItemDeleted:
		it, ok := c.deleteLocked(ev.ItemID)
		if !ok {
			// Already removed locally by Client.DeleteItem.
			return nil, nil, 0, nil
		}
		return it, nil, ChangeDeleted, nil

	case EventTypeConversationItemInputAudioTranscriptionCompleted:
		transcript := ev.Transcript
		if transcript == "" {
			transcript = " "
		}
		it, ok := c.lookup[ev.ItemID]
		if !ok {
			c.queuedTranscripts[ev.ItemID] = transcript
			return nil, nil, 0, nil
		}
		if ev.ContentIndex < len(it.Content) {
			it.Content[ev.ContentIndex].Transcript = ev.Transcript
		}
		it.Formatted.Transcript = transcript
		return it, &Delta{Transcript: ev.Transcript}, ChangeTranscribed, nil

	case EventTypeInputAudioBufferSpeechStarted:
		c.queuedSpeech[ev.ItemID] = &queuedSpeech{startMs: ev.AudioStartMs}
		return nil, nil, 0, nil

	case EventTypeInputAudioBufferSpeechStopped:
		sp, ok := c.queuedSpeech[ev.ItemID]
		if !ok {
			sp = &queuedSpeech{startMs: ev.AudioEndMs}
			c.queuedSpeech[ev.ItemID] = sp
		}
		sp.endMs = ev.AudioEndMs
		sp.audio = c.sliceInputLocked(sp.startMs, sp.endMs)
		return nil, nil, 0, nil

	case EventTypeResponseOutputItemDone:
		if ev.Item == nil {
			return nil, nil, 0, fmt.Errorf("%s: missing item", ev.Type)
		}
		it, ok := c.lookup[ev.Item.ID]
		if !ok {
			return nil, nil, 0, fmt.Errorf("%s %q: %w", ev.Type, ev.Item.ID, ErrItemNotFound)
		}
		it.Status = ev.Item.Status
		return it, nil, ChangeDone, nil

	case EventTypeResponseContentPartAdded:
		it, ok := c.lookup[ev.ItemID]
		if !ok {
			return nil, nil, 0, fmt.Errorf("%s %q: %w", ev.Type, ev.ItemID, ErrItemNotFound)
		}
		if ev.Part != nil {
			it.Content = append(it.Content, *ev.Part)
		}
		return it, nil, ChangeContentAdded, nil

	case EventTypeResponseAudioTranscriptDelta:
		it, ok := c.lookup[ev.ItemID]
		if !ok {
			return nil, nil, 0, fmt.Errorf("%s %q: %w", ev.Type, ev.ItemID, ErrItemNotFound)
		}
		if ev.ContentIndex < len(it.Content) {
			it.Content[ev.ContentIndex].Transcript += ev.Delta
		}
		it.Formatted.Transcript += ev.Delta
		return it, &Delta{Transcript: ev.Delta}, ChangeDelta, nil

	case EventTypeResponseAudioDelta:
		it, ok := c.lookup[ev.ItemID]
		if !ok {
			return nil, nil, 0, fmt.Errorf("%s %q: %w", ev.Type, ev.ItemID, ErrItemNotFound)
		}
		it.Formatted.Audio = append(it.Formatted.Audio, ev.Audio...)
		return it, &Delta{Audio: ev.Audio}, ChangeDelta, nil

	case EventTypeResponseTextDelta:
		it, ok := c.lookup[ev.ItemID]
		if !ok {
			return nil, nil, 0, fmt.Errorf("%s %q: %w", ev.Type, ev.ItemID, ErrItemNotFound)
		}
		if ev.ContentIndex < len(it.Content) {
			it.Content[ev.ContentIndex].Text += ev.Delta
		}
		it.Formatted.Text += ev.Delta
		return it, &Delta{Text: ev.Delta}, ChangeDelta, nil

	case EventTypeResponseFunctionCallArgumentsDelta:
		it, ok := c.lookup[ev.ItemID]
		if !ok {
			return nil, nil, 0, fmt.Errorf("%s %q: %w", ev.Type, ev.ItemID, ErrItemNotFound)
		}
		it.Arguments += ev.Delta
		if it.Formatted.Tool != nil {
			it.Formatted.Tool.Arguments += ev.Delta
		}
		return it, &Delta{Arguments: ev.Delta}, ChangeDelta, nil
	}
	return nil, nil, 0, nil
}

func (c *Conversation) itemCreated(ev *ServerEvent) (*Item, *Delta, ChangeKind, error) {
	if ev.Item == nil {
		return nil, nil, 0, fmt.Errorf("%s: missing item", ev.Type)
	}
	w := ev.Item
	if _, ok := c.lookup[w.ID]; ok {
		return nil, nil, 0, nil
	}
	it := &Item{
		ID:        w.ID,
		Type:      w.Type,
		Role:      w.Role,
		Status:    w.Status,
		Content:   slices.Clone(w.Content),
		CallID:    w.CallID,
		Name:      w.Name,
		Arguments: w.Arguments,
		Output:    w.Output,
	}
	c.items = append(c.items, it)
	c.lookup[it.ID] = it

	if sp, ok := c.queuedSpeech[it.ID]; ok {
		it.Formatted.Audio = sp.audio
		delete(c.queuedSpeech, it.ID)
	}
	for _, part := range it.Content {
		if part.Type == "text" || part.Type == "input_text" {
			it.Formatted.Text += part.Text
		}
	}
	if t, ok := c.queuedTranscripts[it.ID]; ok {
		it.Formatted.Transcript = t
		delete(c.queuedTranscripts, it.ID)
	}

	switch it.Type {
	case ItemTypeMessage:
		if it.Role == RoleUser {
			it.Status = StatusCompleted
			if c.queuedInputAudio != nil {
				it.Formatted.Audio = c.queuedInputAudio
				c.queuedInputAudio = nil
			}
		} else {
			it.Status = StatusInProgress
		}
	case ItemTypeFunctionCall:
		it.Formatted.Tool = &FormattedTool{Type: "function", Name: it.Name, CallID: it.CallID}
		it.Status = StatusInProgress
	case ItemTypeFunctionCallOutput:
		it.Status = StatusCompleted
		it.Formatted.Output = it.Output
	}
	return it, nil, ChangeCreated, nil
}

// sliceInputLocked returns a copy of input audio between two offsets
// measured from the start of the session, and drops everything before end.
func (c *Conversation) sliceInputLocked(startMs, endMs int) []int16 {
	start := c.format.SamplesInMillis(startMs) - c.inputBase
	end := c.format.SamplesInMillis(endMs) - c.inputBase
	start = max(0, min(start, len(c.input)))
	end = max(start, min(end, len(c.input)))
	out := slices.Clone(c.input[start:end])
	c.input = slices.Clone(c.input[end:])
	c.inputBase += end
	return out
}
