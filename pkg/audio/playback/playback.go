// Package playback plays incremental assistant speech on the speaker.
//
// Audio arrives as PCM16 chunks keyed by a track id (one track per assistant
// utterance). Chunks of one track play in arrival order. Only one track is
// audible at a time: the most recently started track that still has queued
// audio. Interrupt stops output immediately and reports how far into the
// audible track playback got, so the remote side can truncate its record of
// what was heard.
package playback

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/josancamon19/realtime-tutor/pkg/audio"
	"github.com/josancamon19/realtime-tutor/pkg/audio/pcm"
	"github.com/josancamon19/realtime-tutor/pkg/audio/spectrum"
)

// DefaultFrame is the length written to the device per call.
const DefaultFrame = 20 * time.Millisecond

// Device is an open output device. Write blocks until the frame is queued.
type Device interface {
	Write(samples []int16) error
	Close() error
}

// Opener acquires an output device.
type Opener func(format pcm.Format, frame time.Duration) (Device, error)

// TrackOffset identifies how many samples of a track were handed to the
// device before an interrupt.
type TrackOffset struct {
	TrackID string
	Offset  int
}

// Option configures a Player.
type Option func(*Player)

// WithFormat overrides the playback format (default pcm.Realtime).
func WithFormat(f pcm.Format) Option {
	return func(p *Player) { p.format = f }
}

// WithFrame overrides the device write length (default DefaultFrame).
func WithFrame(d time.Duration) Option {
	return func(p *Player) { p.frame = d }
}

type track struct {
	id      string
	seq     int
	pending []int16
	played  int
}

// Player is the playback pipeline. It is safe for concurrent use.
type Player struct {
	open   Opener
	format pcm.Format
	frame  time.Duration

	analyzer *spectrum.Analyzer

	mu          sync.Mutex
	dev         Device
	tracks      map[string]*track
	interrupted map[string]bool
	current     *track
	writing     bool
	seq         int
	wake        chan struct{}
	stop        chan struct{}
	done        chan struct{}
}

// New creates a Player that acquires devices through open.
func New(open Opener, opts ...Option) *Player {
	p := &Player{
		open:        open,
		format:      pcm.Realtime,
		frame:       DefaultFrame,
		tracks:      make(map[string]*track),
		interrupted: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.analyzer = spectrum.NewAnalyzer(p.format.SampleRate())
	return p
}

// Format returns the playback format.
func (p *Player) Format() pcm.Format { return p.format }

// Connect opens the output device and starts the playback pump. Calling it
// while connected is a no-op. Failures wrap audio.ErrDeviceUnavailable.
func (p *Player) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dev != nil {
		return nil
	}
	dev, err := p.open(p.format, p.frame)
	if err != nil {
		return fmt.Errorf("playback: connect: %w: %w", audio.ErrDeviceUnavailable, err)
	}
	p.dev = dev
	p.interrupted = make(map[string]bool)
	p.wake = make(chan struct{}, 1)
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.pump(dev, p.wake, p.stop, p.done)
	slog.Debug("playback: device acquired", "format", p.format)
	return nil
}

// Add16BitPCM queues samples on trackID. Chunks for a track that was
// interrupted are dropped, since the remote side truncates that response.
func (p *Player) Add16BitPCM(samples []int16, trackID string) {
	if len(samples) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.interrupted[trackID] {
		return
	}
	t, ok := p.tracks[trackID]
	if !ok {
		p.seq++
		t = &track{id: trackID, seq: p.seq}
		p.tracks[trackID] = t
	}
	t.pending = append(t.pending, samples...)
	if p.wake != nil {
		select {
		case p.wake <- struct{}{}:
		default:
		}
	}
}

// Interrupt discards all queued audio and reports the track that was
// audible and the sample offset reached in it. ok is false when nothing was
// playing.
func (p *Player) Interrupt() (TrackOffset, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var (
		off TrackOffset
		ok  bool
	)
	if cur := p.current; cur != nil && (len(cur.pending) > 0 || p.writing) {
		off, ok = TrackOffset{TrackID: cur.id, Offset: cur.played}, true
	} else if next := p.nextLocked(); next != nil {
		off, ok = TrackOffset{TrackID: next.id, Offset: next.played}, true
	}
	for id, t := range p.tracks {
		if len(t.pending) > 0 || t == p.current {
			p.interrupted[id] = true
		}
	}
	clear(p.tracks)
	p.current = nil
	p.writing = false
	return off, ok
}

// Close stops the pump, discards queued audio, and releases the device.
func (p *Player) Close() error {
	p.mu.Lock()
	dev, stop, done := p.dev, p.stop, p.done
	p.dev, p.stop, p.done, p.wake = nil, nil, nil, nil
	clear(p.tracks)
	p.current = nil
	p.mu.Unlock()

	if dev == nil {
		return nil
	}
	close(stop)
	<-done
	p.analyzer.Reset()
	if err := dev.Close(); err != nil {
		return fmt.Errorf("playback: close device: %w", err)
	}
	return nil
}

// Playing reports whether any track has audio queued or in flight.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writing || p.nextLocked() != nil
}

// Frequencies returns a spectrum of the audio most recently played, or a
// zeroed snapshot when nothing is playing.
func (p *Player) Frequencies(kind spectrum.Kind) spectrum.Snapshot {
	if !p.Playing() {
		return p.analyzer.Zero(kind)
	}
	return p.analyzer.Snapshot(kind)
}

// nextLocked picks the most recently started track with queued audio.
func (p *Player) nextLocked() *track {
	var best *track
	for _, t := range p.tracks {
		if len(t.pending) == 0 {
			continue
		}
		if best == nil || t.seq > best.seq {
			best = t
		}
	}
	return best
}

func (p *Player) pump(dev Device, wake <-chan struct{}, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	n := p.format.SamplesInDuration(p.frame)
	for {
		p.mu.Lock()
		t := p.nextLocked()
		if t == nil {
			p.writing = false
			p.mu.Unlock()
			select {
			case <-wake:
				continue
			case <-stop:
				return
			}
		}
		k := min(n, len(t.pending))
		buf := make([]int16, k)
		copy(buf, t.pending[:k])
		t.pending = t.pending[k:]
		t.played += k
		p.current = t
		p.writing = true
		p.mu.Unlock()

		p.analyzer.Push(buf)
		if err := dev.Write(buf); err != nil {
			select {
			case <-stop:
				return
			default:
			}
			slog.Warn("playback: device write failed", "track", t.id, "error", err)
		}

		p.mu.Lock()
		p.writing = false
		p.mu.Unlock()

		select {
		case <-stop:
			return
		default:
		}
	}
}
