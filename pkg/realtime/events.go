package realtime

import (
	"encoding/json"
	"time"
)

// Event is the closed set of notifications a Client delivers. The
// implementations are ChannelOpened, ChannelError, ItemUpdated,
// Interrupted, ToolInvoked and WireEvent.
type Event interface {
	isEvent()
}

// Handler receives events. Server-sourced events are delivered serially
// from the read loop in arrival order; client-sourced WireEvents arrive on
// the calling goroutine, so handlers must be safe for concurrent use.
type Handler func(Event)

// ChannelOpened is delivered once per successful Connect.
type ChannelOpened struct{}

// ChannelError reports a server error event or a dropped channel.
type ChannelError struct {
	Err error
	// Closed is true when the channel is gone and the client is
	// disconnected.
	Closed bool
}

// ItemUpdated reports a created or changed item.
type ItemUpdated struct {
	Change Change
	// Item is a snapshot of the changed item.
	Item *Item
	// Delta is set for incremental updates.
	Delta *Delta
	// Items is the full, ordered item list after the change.
	Items []*Item
}

// Interrupted reports that the server detected user speech.
type Interrupted struct {
	ItemID       string
	AudioStartMs int
}

// ToolInvoked reports a completed tool call.
type ToolInvoked struct {
	CallID string
	Name   string
	// Arguments is the raw JSON the model produced.
	Arguments string
	// Output is the JSON sent back to the model.
	Output string
	// Err is the handler's error, already converted into Output.
	Err error
}

// Source tells which side produced a wire event.
type Source string

const (
	SourceClient Source = "client"
	SourceServer Source = "server"
)

// WireEvent is one raw protocol message.
type WireEvent struct {
	Time   time.Time
	Source Source
	Type   string
	Raw    json.RawMessage
}

func (ChannelOpened) isEvent() {}
func (ChannelError) isEvent()  {}
func (ItemUpdated) isEvent()   {}
func (Interrupted) isEvent()   {}
func (ToolInvoked) isEvent()   {}
func (WireEvent) isEvent()     {}
