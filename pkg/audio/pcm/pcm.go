// Package pcm describes the signed 16-bit little-endian PCM formats used on
// the realtime link and converts between sample and byte representations.
package pcm

import (
	"fmt"
	"time"
)

const (
	// L16Mono16K represents audio/L16; rate=16000; channels=1
	L16Mono16K Format = iota
	// L16Mono24K represents audio/L16; rate=24000; channels=1
	L16Mono24K
	// L16Mono44K represents audio/L16; rate=44100; channels=1
	L16Mono44K
	// L16Mono48K represents audio/L16; rate=48000; channels=1
	L16Mono48K
)

// Realtime is the format spoken on the realtime link in both directions.
const Realtime = L16Mono24K

// Format is a mono 16-bit PCM format identified by its sample rate.
type Format int

// FormatForRate returns the format with the given sample rate.
func FormatForRate(rate int) (Format, error) {
	switch rate {
	case 16000:
		return L16Mono16K, nil
	case 24000:
		return L16Mono24K, nil
	case 44100:
		return L16Mono44K, nil
	case 48000:
		return L16Mono48K, nil
	}
	return 0, fmt.Errorf("pcm: unsupported sample rate %d", rate)
}

// SampleRate returns the sample rate in Hz for this format.
func (f Format) SampleRate() int {
	switch f {
	case L16Mono16K:
		return 16000
	case L16Mono24K:
		return 24000
	case L16Mono44K:
		return 44100
	case L16Mono48K:
		return 48000
	}
	panic("pcm: invalid audio format")
}

// Channels is always 1; every supported format is mono.
func (f Format) Channels() int { return 1 }

// Depth is the bit depth.
func (f Format) Depth() int { return 16 }

// SamplesInDuration returns the number of samples in d.
func (f Format) SamplesInDuration(d time.Duration) int {
	return int(time.Duration(f.SampleRate()) * d / time.Second)
}

// BytesInDuration returns the number of bytes in d.
func (f Format) BytesInDuration(d time.Duration) int {
	return f.SamplesInDuration(d) * 2
}

// Duration returns how long n samples play for.
func (f Format) Duration(samples int) time.Duration {
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate())
}

// Millis converts a sample count into whole milliseconds, rounding down.
func (f Format) Millis(samples int) int {
	return samples * 1000 / f.SampleRate()
}

// SamplesInMillis converts milliseconds into a sample count.
func (f Format) SamplesInMillis(ms int) int {
	return ms * f.SampleRate() / 1000
}

// String returns the MIME-style description of the format.
func (f Format) String() string {
	return fmt.Sprintf("audio/L16; rate=%d; channels=1", f.SampleRate())
}

// Bytes encodes samples as little-endian PCM16.
func Bytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	return buf
}

// Samples decodes little-endian PCM16. A trailing odd byte is dropped.
func Samples(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return out
}

// Float64s normalizes samples to [-1, 1).
func Float64s(samples []int16) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s) / 32768.0
	}
	return out
}

// FromFloat64s converts normalized samples back to PCM16, clipping values
// outside [-1, 1].
func FromFloat64s(in []float64) []int16 {
	out := make([]int16, len(in))
	for i, s := range in {
		switch {
		case s >= 1.0:
			out[i] = 32767
		case s <= -1.0:
			out[i] = -32768
		default:
			out[i] = int16(s * 32767.0)
		}
	}
	return out
}
