package realtime

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/josancamon19/realtime-tutor/pkg/audio/pcm"
)

// Client event types (sent from client to server).
const (
	EventTypeSessionUpdate = "session.update"

	EventTypeInputAudioBufferAppend = "input_audio_buffer.append"
	EventTypeInputAudioBufferCommit = "input_audio_buffer.commit"

	EventTypeConversationItemCreate   = "conversation.item.create"
	EventTypeConversationItemTruncate = "conversation.item.truncate"
	EventTypeConversationItemDelete   = "conversation.item.delete"

	EventTypeResponseCreate = "response.create"
	EventTypeResponseCancel = "response.cancel"
)

// Server event types (sent from server to client).
const (
	EventTypeError = "error"

	EventTypeSessionCreated = "session.created"
	EventTypeSessionUpdated = "session.updated"

	EventTypeConversationItemCreated                          = "conversation.item.created"
	EventTypeConversationItemInputAudioTranscriptionCompleted = "conversation.item.input_audio_transcription.completed"
	EventTypeConversationItemInputAudioTranscriptionFailed    = "conversation.item.input_audio_transcription.failed"
	EventTypeConversationItemTruncated                        = "conversation.item.truncated"
	EventTypeConversationItemDeleted                          = "conversation.item.deleted"

	EventTypeInputAudioBufferCommitted     = "input_audio_buffer.committed"
	EventTypeInputAudioBufferSpeechStarted = "input_audio_buffer.speech_started"
	EventTypeInputAudioBufferSpeechStopped = "input_audio_buffer.speech_stopped"

	EventTypeResponseCreated          = "response.created"
	EventTypeResponseDone             = "response.done"
	EventTypeResponseOutputItemAdded  = "response.output_item.added"
	EventTypeResponseOutputItemDone   = "response.output_item.done"
	EventTypeResponseContentPartAdded = "response.content_part.added"

	EventTypeResponseTextDelta                  = "response.text.delta"
	EventTypeResponseAudioDelta                 = "response.audio.delta"
	EventTypeResponseAudioTranscriptDelta       = "response.audio_transcript.delta"
	EventTypeResponseFunctionCallArgumentsDelta = "response.function_call_arguments.delta"

	EventTypeRateLimitsUpdated = "rate_limits.updated"
)

// ServerEvent is a decoded server event. Only the fields this package acts
// on are modeled; Raw keeps the full message.
type ServerEvent struct {
	Type    string `json:"type"`
	EventID string `json:"event_id,omitzero"`

	Item *ConversationItem `json:"item,omitzero"`

	ItemID       string `json:"item_id,omitzero"`
	ContentIndex int    `json:"content_index,omitzero"`
	AudioStartMs int    `json:"audio_start_ms,omitzero"`
	AudioEndMs   int    `json:"audio_end_ms,omitzero"`
	Transcript   string `json:"transcript,omitzero"`

	Error *EventError `json:"error,omitzero"`

	ResponseID string       `json:"response_id,omitzero"`
	Part       *ContentPart `json:"part,omitzero"`
	Delta      string       `json:"delta,omitzero"`

	// Audio holds the decoded samples of a response.audio.delta.
	Audio []int16 `json:"-"`

	Raw []byte `json:"-"`
}

func parseServerEvent(message []byte) (*ServerEvent, error) {
	var ev ServerEvent
	if err := json.Unmarshal(message, &ev); err != nil {
		return nil, fmt.Errorf("realtime: parse event: %w", err)
	}
	ev.Raw = message
	if ev.Type == EventTypeResponseAudioDelta && ev.Delta != "" {
		b, err := base64.StdEncoding.DecodeString(ev.Delta)
		if err != nil {
			return nil, fmt.Errorf("realtime: decode audio delta: %w", err)
		}
		ev.Audio = pcm.Samples(b)
	}
	return &ev, nil
}

// Error is an error reported by the server in an "error" event.
type Error struct {
	Type    string `json:"type,omitzero"`
	Code    string `json:"code,omitzero"`
	Message string `json:"message,omitzero"`
	Param   string `json:"param,omitzero"`
	EventID string `json:"event_id,omitzero"`
}

func (e *Error) Error() string {
	switch {
	case e.Code != "":
		return fmt.Sprintf("realtime: %s: %s", e.Code, e.Message)
	case e.Type != "":
		return fmt.Sprintf("realtime: %s: %s", e.Type, e.Message)
	}
	return "realtime: " + e.Message
}

// EventError is the wire shape of Error.
type EventError Error

func (e *EventError) toError() *Error {
	if e == nil {
		return &Error{Message: "unknown error"}
	}
	err := Error(*e)
	return &err
}
