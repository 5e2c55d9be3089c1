// Package audio holds what the capture and playback pipelines share.
//
// Sub-packages:
//   - pcm: sample format descriptors and PCM16 conversion
//   - spectrum: frequency-domain snapshots for visualization
//   - resampler: sample-rate conversion
//   - capture: microphone capture loop
//   - playback: track-based speaker playback with interrupt
//   - portaudio: device primitives backed by PortAudio
package audio

import "errors"

// ErrDeviceUnavailable is returned when no input or output device could be
// acquired, either because none exists or because access was denied.
var ErrDeviceUnavailable = errors.New("audio: device unavailable")
