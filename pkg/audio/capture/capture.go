// Package capture owns the microphone and pushes fixed-size PCM frames to a
// registered sink.
//
// A Recorder goes through Begin, Record, End. Record runs the capture loop
// on its own goroutine until End is called, the device fails, or the sink
// returns an error; the terminating error (if any) is delivered on the
// channel Record returns. A sink error is not handled here: callers decide
// whether it warrants reconnecting.
package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/josancamon19/realtime-tutor/pkg/audio"
	"github.com/josancamon19/realtime-tutor/pkg/audio/pcm"
	"github.com/josancamon19/realtime-tutor/pkg/audio/spectrum"
)

// DefaultFrame is the capture frame length.
const DefaultFrame = 20 * time.Millisecond

var (
	// ErrNotBegun is returned by Record before Begin succeeded.
	ErrNotBegun = errors.New("capture: not begun")
	// ErrBusy is returned by Begin while a device is already held, and by
	// Record while a loop is already running.
	ErrBusy = errors.New("capture: already in use")
)

// Device is an open input device delivering frames by blocking reads.
// Close must unblock or shortly terminate a pending ReadFrame.
type Device interface {
	ReadFrame() ([]int16, error)
	Close() error
}

// Opener acquires an input device.
type Opener func(format pcm.Format, frame time.Duration) (Device, error)

// Frame is one captured frame.
type Frame struct {
	// Mono holds the samples, ready for analysis or streaming.
	Mono []int16
	// Raw is Mono encoded as little-endian PCM16.
	Raw []byte
}

// Sink receives frames in capture order. Returning an error stops the loop.
type Sink func(Frame) error

// Option configures a Recorder.
type Option func(*Recorder)

// WithFormat overrides the capture format (default pcm.Realtime).
func WithFormat(f pcm.Format) Option {
	return func(r *Recorder) { r.format = f }
}

// WithFrame overrides the frame length (default DefaultFrame).
func WithFrame(d time.Duration) Option {
	return func(r *Recorder) { r.frame = d }
}

// Recorder is the capture pipeline. It is safe for concurrent use, except
// that End must not be called from inside the sink.
type Recorder struct {
	open   Opener
	format pcm.Format
	frame  time.Duration

	analyzer *spectrum.Analyzer

	mu   sync.Mutex
	dev  Device
	stop chan struct{}
	done chan struct{}
}

// New creates a Recorder that acquires devices through open.
func New(open Opener, opts ...Option) *Recorder {
	r := &Recorder{open: open, format: pcm.Realtime, frame: DefaultFrame}
	for _, opt := range opts {
		opt(r)
	}
	r.analyzer = spectrum.NewAnalyzer(r.format.SampleRate())
	return r
}

// Format returns the capture format.
func (r *Recorder) Format() pcm.Format { return r.format }

// Begin acquires the input device. Failures wrap audio.ErrDeviceUnavailable.
func (r *Recorder) Begin() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dev != nil {
		return ErrBusy
	}
	dev, err := r.open(r.format, r.frame)
	if err != nil {
		if errors.Is(err, audio.ErrDeviceUnavailable) {
			return fmt.Errorf("capture: begin: %w", err)
		}
		return fmt.Errorf("capture: begin: %w: %w", audio.ErrDeviceUnavailable, err)
	}
	r.dev = dev
	slog.Debug("capture: device acquired", "format", r.format, "frame", r.frame)
	return nil
}

// Record starts the capture loop. The returned channel receives at most one
// error (a device read failure or the sink's error) and is closed when the
// loop exits, including after End.
func (r *Recorder) Record(sink Sink) (<-chan error, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dev == nil {
		return nil, ErrNotBegun
	}
	if r.done != nil {
		return nil, ErrBusy
	}
	errc := make(chan error, 1)
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go r.loop(r.dev, sink, r.stop, r.done, errc)
	return errc, nil
}

func (r *Recorder) loop(dev Device, sink Sink, stop, done chan struct{}, errc chan<- error) {
	defer close(done)
	defer close(errc)
	for {
		samples, err := dev.ReadFrame()
		select {
		case <-stop:
			return
		default:
		}
		if err != nil {
			errc <- fmt.Errorf("capture: read: %w", err)
			return
		}
		r.analyzer.Push(samples)
		if err := sink(Frame{Mono: samples, Raw: pcm.Bytes(samples)}); err != nil {
			errc <- err
			return
		}
	}
}

// Recording reports whether a capture loop is running.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// End stops the loop and releases the device. It is a no-op when nothing is
// held.
func (r *Recorder) End() error {
	r.mu.Lock()
	dev, stop, done := r.dev, r.stop, r.done
	r.dev, r.stop, r.done = nil, nil, nil
	r.mu.Unlock()

	if dev == nil {
		return nil
	}
	if stop != nil {
		close(stop)
	}
	err := dev.Close()
	if done != nil {
		<-done
	}
	r.analyzer.Reset()
	slog.Debug("capture: device released")
	if err != nil {
		return fmt.Errorf("capture: close device: %w", err)
	}
	return nil
}

// Frequencies returns a spectrum of the most recent audio, or a zeroed
// snapshot when not recording.
func (r *Recorder) Frequencies(kind spectrum.Kind) spectrum.Snapshot {
	if !r.Recording() {
		return r.analyzer.Zero(kind)
	}
	return r.analyzer.Snapshot(kind)
}
