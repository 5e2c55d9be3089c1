package portaudio

import (
	"time"

	"github.com/josancamon19/realtime-tutor/pkg/audio/capture"
	"github.com/josancamon19/realtime-tutor/pkg/audio/pcm"
	"github.com/josancamon19/realtime-tutor/pkg/audio/playback"
)

// Input is the default microphone opened for blocking reads.
type Input struct{ s *stream }

// OpenInput opens the default input device. Its signature matches
// [capture.Opener].
func OpenInput(format pcm.Format, frame time.Duration) (capture.Device, error) {
	s, err := open(true, format.SampleRate(), format.SamplesInDuration(frame))
	if err != nil {
		return nil, err
	}
	return &Input{s: s}, nil
}

// ReadFrame blocks until one frame has been captured.
func (in *Input) ReadFrame() ([]int16, error) { return in.s.read() }

// Close stops the stream; a blocked ReadFrame returns once its frame completes.
func (in *Input) Close() error { return in.s.close() }

// Output is the default speaker opened for blocking writes.
type Output struct{ s *stream }

// OpenOutput opens the default output device. Its signature matches
// [playback.Opener].
func OpenOutput(format pcm.Format, frame time.Duration) (playback.Device, error) {
	s, err := open(false, format.SampleRate(), format.SamplesInDuration(frame))
	if err != nil {
		return nil, err
	}
	return &Output{s: s}, nil
}

// Write blocks until the frame has been queued to the device.
func (out *Output) Write(samples []int16) error { return out.s.write(samples) }

func (out *Output) Close() error { return out.s.close() }
