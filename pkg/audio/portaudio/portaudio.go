// Package portaudio opens the default input and output devices through the
// PortAudio C library.
//
// Building requires PortAudio discoverable via pkg-config
// (brew install portaudio, apt install portaudio19-dev).
package portaudio

/*
#cgo pkg-config: portaudio-2.0

#include <portaudio.h>
#include <stdlib.h>
#include <string.h>

static PaError pa_open(void **stream, const PaStreamParameters *in,
                       const PaStreamParameters *out, double rate,
                       unsigned long frames) {
    return Pa_OpenStream((PaStream**)stream, in, out, rate, frames, paClipOff, NULL, NULL);
}

static PaError pa_start(void *stream) { return Pa_StartStream((PaStream*)stream); }
static PaError pa_stop(void *stream)  { return Pa_StopStream((PaStream*)stream); }
static PaError pa_close(void *stream) { return Pa_CloseStream((PaStream*)stream); }

static PaError pa_read(void *stream, void *buf, unsigned long frames) {
    return Pa_ReadStream((PaStream*)stream, buf, frames);
}

static PaError pa_write(void *stream, const void *buf, unsigned long frames) {
    return Pa_WriteStream((PaStream*)stream, buf, frames);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/josancamon19/realtime-tutor/pkg/audio"
)

var (
	initOnce sync.Once
	initErr  error
)

func paError(code C.PaError) error {
	if code == C.paNoError {
		return nil
	}
	return errors.New(C.GoString(C.Pa_GetErrorText(code)))
}

func initialize() error {
	initOnce.Do(func() {
		initErr = paError(C.Pa_Initialize())
	})
	return initErr
}

// Terminate releases the PortAudio library. Call once at process exit.
func Terminate() error {
	return paError(C.Pa_Terminate())
}

// DeviceInfo describes one host audio device.
type DeviceInfo struct {
	Index             int     `json:"index"`
	Name              string  `json:"name"`
	MaxInputChannels  int     `json:"max_input_channels"`
	MaxOutputChannels int     `json:"max_output_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate"`
	IsDefaultInput    bool    `json:"default_input,omitempty"`
	IsDefaultOutput   bool    `json:"default_output,omitempty"`
}

// Devices lists the host's audio devices.
func Devices() ([]DeviceInfo, error) {
	if err := initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	count := int(C.Pa_GetDeviceCount())
	if count < 0 {
		return nil, fmt.Errorf("portaudio: device count: %w", paError(C.PaError(count)))
	}
	defIn := int(C.Pa_GetDefaultInputDevice())
	defOut := int(C.Pa_GetDefaultOutputDevice())

	devices := make([]DeviceInfo, 0, count)
	for i := range count {
		info := C.Pa_GetDeviceInfo(C.PaDeviceIndex(i))
		if info == nil {
			continue
		}
		devices = append(devices, DeviceInfo{
			Index:             i,
			Name:              C.GoString(info.name),
			MaxInputChannels:  int(info.maxInputChannels),
			MaxOutputChannels: int(info.maxOutputChannels),
			DefaultSampleRate: float64(info.defaultSampleRate),
			IsDefaultInput:    i == defIn,
			IsDefaultOutput:   i == defOut,
		})
	}
	return devices, nil
}

// stream is an open, started blocking-mode PortAudio stream with a C-side
// transfer buffer of one frame.
type stream struct {
	mu     sync.Mutex
	ptr    unsafe.Pointer
	buf    unsafe.Pointer
	frames int
	closed bool
}

// open starts a mono stream on the default input (input=true) or output
// device. Missing devices and open failures wrap audio.ErrDeviceUnavailable.
func open(input bool, sampleRate, frames int) (*stream, error) {
	if err := initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w: %w", audio.ErrDeviceUnavailable, err)
	}

	var params C.PaStreamParameters
	params.channelCount = 1
	params.sampleFormat = C.paInt16
	if input {
		params.device = C.Pa_GetDefaultInputDevice()
	} else {
		params.device = C.Pa_GetDefaultOutputDevice()
	}
	if params.device == C.paNoDevice {
		return nil, fmt.Errorf("portaudio: no default device: %w", audio.ErrDeviceUnavailable)
	}
	info := C.Pa_GetDeviceInfo(params.device)
	if info == nil {
		return nil, fmt.Errorf("portaudio: device info: %w", audio.ErrDeviceUnavailable)
	}

	var in, out *C.PaStreamParameters
	if input {
		params.suggestedLatency = info.defaultLowInputLatency
		in = &params
	} else {
		params.suggestedLatency = info.defaultLowOutputLatency
		out = &params
	}

	var ptr unsafe.Pointer
	if err := paError(C.pa_open(&ptr, in, out, C.double(sampleRate), C.ulong(frames))); err != nil {
		return nil, fmt.Errorf("portaudio: open stream: %w: %w", audio.ErrDeviceUnavailable, err)
	}
	if err := paError(C.pa_start(ptr)); err != nil {
		C.pa_close(ptr)
		return nil, fmt.Errorf("portaudio: start stream: %w: %w", audio.ErrDeviceUnavailable, err)
	}
	return &stream{
		ptr:    ptr,
		buf:    C.malloc(C.size_t(frames * 2)),
		frames: frames,
	}, nil
}

var errClosed = errors.New("portaudio: stream closed")

func (s *stream) read() ([]int16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}
	if err := paError(C.pa_read(s.ptr, s.buf, C.ulong(s.frames))); err != nil {
		return nil, fmt.Errorf("portaudio: read: %w", err)
	}
	samples := make([]int16, s.frames)
	C.memcpy(unsafe.Pointer(&samples[0]), s.buf, C.size_t(s.frames*2))
	return samples, nil
}

// write plays exactly one frame; shorter input is padded with silence.
func (s *stream) write(samples []int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	n := min(len(samples), s.frames)
	C.memset(s.buf, 0, C.size_t(s.frames*2))
	if n > 0 {
		C.memcpy(s.buf, unsafe.Pointer(&samples[0]), C.size_t(n*2))
	}
	if err := paError(C.pa_write(s.ptr, s.buf, C.ulong(s.frames))); err != nil {
		return fmt.Errorf("portaudio: write: %w", err)
	}
	return nil
}

func (s *stream) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	C.pa_stop(s.ptr)
	err := paError(C.pa_close(s.ptr))
	C.free(s.buf)
	return err
}
