package playback

import (
	"fmt"

	"github.com/josancamon19/realtime-tutor/pkg/audio/pcm"
	"github.com/josancamon19/realtime-tutor/pkg/audio/resampler"
)

// Asset is a decoded, self-contained playable clip.
type Asset struct {
	Format  pcm.Format
	Samples []int16
}

// WAV encodes the asset as a WAV file.
func (a *Asset) WAV() []byte { return a.Format.WAV(a.Samples) }

// Decode turns raw PCM16 recorded at sourceRate into an asset at targetRate.
// It does not touch any device.
func Decode(raw []int16, sourceRate, targetRate int) (*Asset, error) {
	f, err := pcm.FormatForRate(targetRate)
	if err != nil {
		return nil, fmt.Errorf("playback: decode: %w", err)
	}
	samples, err := resampler.Resample(raw, sourceRate, targetRate)
	if err != nil {
		return nil, fmt.Errorf("playback: decode: %w", err)
	}
	return &Asset{Format: f, Samples: samples}, nil
}
