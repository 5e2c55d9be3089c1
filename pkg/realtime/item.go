package realtime

import "slices"

// Item is a conversation item as tracked by the client: the wire fields
// plus a Formatted view accumulated from deltas.
type Item struct {
	ID        string
	Type      string
	Role      string
	Status    string
	Content   []ContentPart
	CallID    string
	Name      string
	Arguments string
	Output    string

	Formatted Formatted
}

// Formatted is the display-ready projection of an item.
type Formatted struct {
	// Audio is the item's PCM16 audio at 24 kHz: assistant speech from
	// deltas, or the user's speech sliced from the input buffer.
	Audio      []int16
	Text       string
	Transcript string
	Tool       *FormattedTool
	Output     string
}

// FormattedTool is a function call requested by the model.
type FormattedTool struct {
	Type      string
	Name      string
	CallID    string
	Arguments string
}

// Clone returns a copy that does not share mutable state with it. Audio is
// shared but capacity-clipped, since audio is only ever appended to or
// resliced shorter.
func (it *Item) Clone() *Item {
	c := *it
	c.Content = slices.Clone(it.Content)
	c.Formatted.Audio = it.Formatted.Audio[:len(it.Formatted.Audio):len(it.Formatted.Audio)]
	if it.Formatted.Tool != nil {
		t := *it.Formatted.Tool
		c.Formatted.Tool = &t
	}
	return &c
}

// Delta is the incremental fragment attached to an update. Exactly one
// field is set.
type Delta struct {
	Audio      []int16
	Text       string
	Transcript string
	Arguments  string
}

// ChangeKind says what happened to an item.
type ChangeKind int

const (
	// ChangeCreated: the item was added to the conversation.
	ChangeCreated ChangeKind = iota + 1
	// ChangeDelta: text, transcript, audio, or arguments were appended.
	ChangeDelta
	// ChangeContentAdded: a content part was added.
	ChangeContentAdded
	// ChangeTranscribed: the input audio transcription arrived.
	ChangeTranscribed
	// ChangeTruncated: assistant audio was cut at the point heard.
	ChangeTruncated
	// ChangeDone: the server finished the item; Status is final.
	ChangeDone
	// ChangeDeleted: the item was removed.
	ChangeDeleted
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeCreated:
		return "created"
	case ChangeDelta:
		return "delta"
	case ChangeContentAdded:
		return "content_added"
	case ChangeTranscribed:
		return "transcribed"
	case ChangeTruncated:
		return "truncated"
	case ChangeDone:
		return "done"
	case ChangeDeleted:
		return "deleted"
	}
	return "unknown"
}

// Change identifies the item an update is about.
type Change struct {
	ItemID string
	Kind   ChangeKind
}
