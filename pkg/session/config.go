package session

import (
	"time"

	"github.com/googleapis/gax-go/v2"

	"github.com/josancamon19/realtime-tutor/pkg/history"
	"github.com/josancamon19/realtime-tutor/pkg/realtime"
)

const (
	DefaultGreeting         = "Hey there!"
	DefaultResumptionPhrase = "Continue from last conversation."
)

// Config is everything a Machine needs to know up front.
type Config struct {
	Topic history.Topic

	// Instructions is the base system prompt. The topic and prior history
	// are appended to it.
	Instructions string
	// Greeting opens a topic with no history.
	Greeting string
	// ResumptionPhrase reopens a topic with history.
	ResumptionPhrase string

	Voice string
	// TranscriptionModel enables input transcription; "" disables it.
	TranscriptionModel string
	// ServerVAD selects server-side turn detection instead of manual turns.
	ServerVAD bool

	Reconnect ReconnectPolicy
}

// ReconnectPolicy bounds recovery from audio streaming failures. The first
// attempt is immediate; later attempts wait an exponentially growing,
// jittered delay. Attempts are counted until a reconnected recording has
// streamed for Stable.
type ReconnectPolicy struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
	Multiplier  float64
	Stable      time.Duration
}

// DefaultReconnectPolicy allows five attempts over roughly fifteen seconds.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		MaxAttempts: 5,
		Initial:     500 * time.Millisecond,
		Max:         8 * time.Second,
		Multiplier:  2,
		Stable:      10 * time.Second,
	}
}

func (p ReconnectPolicy) backoff() *gax.Backoff {
	return &gax.Backoff{Initial: p.Initial, Max: p.Max, Multiplier: p.Multiplier}
}

func (c *Config) setDefaults() {
	if c.Greeting == "" {
		c.Greeting = DefaultGreeting
	}
	if c.ResumptionPhrase == "" {
		c.ResumptionPhrase = DefaultResumptionPhrase
	}
	if c.Reconnect.MaxAttempts <= 0 {
		c.Reconnect = DefaultReconnectPolicy()
	}
}

func (c *Config) session(instructions string) realtime.SessionConfig {
	s := realtime.SessionConfig{Instructions: instructions, Voice: c.Voice}
	if c.TranscriptionModel != "" {
		s.InputAudioTranscription = &realtime.TranscriptionConfig{Model: c.TranscriptionModel}
	}
	if c.ServerVAD {
		s.TurnDetection = &realtime.TurnDetection{Type: realtime.VADServerVAD}
	} else {
		s.TurnDetectionDisabled = true
	}
	return s
}
