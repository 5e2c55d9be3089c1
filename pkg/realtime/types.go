package realtime

import (
	"encoding/base64"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/josancamon19/realtime-tutor/pkg/audio/pcm"
)

// ModelGPT4oRealtimePreview is the default realtime model.
const ModelGPT4oRealtimePreview = "gpt-4o-realtime-preview"

const (
	AudioFormatPCM16 = "pcm16"

	VADServerVAD = "server_vad"

	ModalityText  = "text"
	ModalityAudio = "audio"

	TranscriptionWhisper1 = "whisper-1"
)

// Item types.
const (
	ItemTypeMessage            = "message"
	ItemTypeFunctionCall       = "function_call"
	ItemTypeFunctionCallOutput = "function_call_output"
)

// Item roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Item statuses.
const (
	StatusInProgress = "in_progress"
	StatusIncomplete = "incomplete"
	StatusCompleted  = "completed"
)

// SessionConfig is the body of a session.update. Zero fields are left
// unchanged by [Client.UpdateSession].
type SessionConfig struct {
	Modalities        []string `json:"modalities,omitzero"`
	Instructions      string   `json:"instructions,omitzero"`
	Voice             string   `json:"voice,omitzero"`
	InputAudioFormat  string   `json:"input_audio_format,omitzero"`
	OutputAudioFormat string   `json:"output_audio_format,omitzero"`

	InputAudioTranscription *TranscriptionConfig `json:"input_audio_transcription,omitzero"`

	// TurnDetection enables server-side voice activity detection.
	TurnDetection *TurnDetection `json:"turn_detection,omitzero"`
	// TurnDetectionDisabled sends "turn_detection": null, selecting manual
	// turns where CreateResponse commits buffered input audio.
	TurnDetectionDisabled bool `json:"-"`

	Tools       []Tool   `json:"tools,omitzero"`
	ToolChoice  string   `json:"tool_choice,omitzero"`
	Temperature *float64 `json:"temperature,omitzero"`
}

// MarshalJSON emits an explicit null turn_detection when disabled.
func (s SessionConfig) MarshalJSON() ([]byte, error) {
	type alias SessionConfig
	b, err := json.Marshal(alias(s))
	if err != nil || !s.TurnDetectionDisabled {
		return b, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	m["turn_detection"] = json.RawMessage("null")
	return json.Marshal(m)
}

// merge overlays the non-zero fields of u.
func (s *SessionConfig) merge(u SessionConfig) {
	if len(u.Modalities) > 0 {
		s.Modalities = u.Modalities
	}
	if u.Instructions != "" {
		s.Instructions = u.Instructions
	}
	if u.Voice != "" {
		s.Voice = u.Voice
	}
	if u.InputAudioFormat != "" {
		s.InputAudioFormat = u.InputAudioFormat
	}
	if u.OutputAudioFormat != "" {
		s.OutputAudioFormat = u.OutputAudioFormat
	}
	if u.InputAudioTranscription != nil {
		s.InputAudioTranscription = u.InputAudioTranscription
	}
	switch {
	case u.TurnDetectionDisabled:
		s.TurnDetection, s.TurnDetectionDisabled = nil, true
	case u.TurnDetection != nil:
		s.TurnDetection, s.TurnDetectionDisabled = u.TurnDetection, false
	}
	if u.Tools != nil {
		s.Tools = u.Tools
	}
	if u.ToolChoice != "" {
		s.ToolChoice = u.ToolChoice
	}
	if u.Temperature != nil {
		s.Temperature = u.Temperature
	}
}

func defaultSessionConfig() SessionConfig {
	return SessionConfig{
		Modalities:            []string{ModalityText, ModalityAudio},
		Voice:                 "verse",
		InputAudioFormat:      AudioFormatPCM16,
		OutputAudioFormat:     AudioFormatPCM16,
		TurnDetectionDisabled: true,
		ToolChoice:            "auto",
	}
}

// TranscriptionConfig configures input audio transcription.
type TranscriptionConfig struct {
	Model string `json:"model,omitzero"`
}

// TurnDetection configures server-side voice activity detection.
type TurnDetection struct {
	Type              string  `json:"type,omitzero"`
	Threshold         float64 `json:"threshold,omitzero"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms,omitzero"`
	SilenceDurationMs int     `json:"silence_duration_ms,omitzero"`
}

// Tool is a function the model may call.
type Tool struct {
	Type        string             `json:"type"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitzero"`
	Parameters  *jsonschema.Schema `json:"parameters,omitzero"`
}

// ConversationItem is the wire shape of an item.
type ConversationItem struct {
	ID        string        `json:"id,omitzero"`
	Object    string        `json:"object,omitzero"`
	Type      string        `json:"type,omitzero"`
	Status    string        `json:"status,omitzero"`
	Role      string        `json:"role,omitzero"`
	Content   []ContentPart `json:"content,omitzero"`
	CallID    string        `json:"call_id,omitzero"`
	Name      string        `json:"name,omitzero"`
	Arguments string        `json:"arguments,omitzero"`
	Output    string        `json:"output,omitzero"`
}

// ContentPart is one segment of a message item.
type ContentPart struct {
	// Type is one of input_text, input_audio, text, audio.
	Type       string `json:"type"`
	Text       string `json:"text,omitzero"`
	Audio      string `json:"audio,omitzero"`
	Transcript string `json:"transcript,omitzero"`
}

// InputText is a user text part.
func InputText(text string) ContentPart {
	return ContentPart{Type: "input_text", Text: text}
}

// InputAudio is a user audio part carrying 24 kHz PCM16 samples.
func InputAudio(samples []int16) ContentPart {
	return ContentPart{Type: "input_audio", Audio: base64.StdEncoding.EncodeToString(pcm.Bytes(samples))}
}
