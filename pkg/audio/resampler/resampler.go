// Package resampler converts whole PCM16 buffers between sample rates using
// a high-quality polyphase resampler.
package resampler

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/josancamon19/realtime-tutor/pkg/audio/pcm"
)

// Resample converts mono samples recorded at srcRate to dstRate. When the
// rates match, a copy of samples is returned.
func Resample(samples []int16, srcRate, dstRate int) ([]int16, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("resampler: invalid rates %d -> %d", srcRate, dstRate)
	}
	if srcRate == dstRate || len(samples) == 0 {
		return append([]int16(nil), samples...), nil
	}

	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("resampler: create %d -> %d: %w", srcRate, dstRate, err)
	}
	out, err := r.Process(pcm.Float64s(samples))
	if err != nil {
		return nil, fmt.Errorf("resampler: process: %w", err)
	}
	return pcm.FromFloat64s(out), nil
}
