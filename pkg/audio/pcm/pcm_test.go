package pcm

import (
	"encoding/binary"
	"testing"
	"time"
)

func TestFormatDurations(t *testing.T) {
	f := L16Mono24K
	if got := f.SamplesInDuration(20 * time.Millisecond); got != 480 {
		t.Errorf("SamplesInDuration(20ms) = %d, want 480", got)
	}
	if got := f.BytesInDuration(20 * time.Millisecond); got != 960 {
		t.Errorf("BytesInDuration(20ms) = %d, want 960", got)
	}
	if got := f.Millis(36000); got != 1500 {
		t.Errorf("Millis(36000) = %d, want 1500", got)
	}
	if got := f.SamplesInMillis(250); got != 6000 {
		t.Errorf("SamplesInMillis(250) = %d, want 6000", got)
	}
	if got := f.Duration(12000); got != 500*time.Millisecond {
		t.Errorf("Duration(12000) = %v, want 500ms", got)
	}
}

func TestFormatForRate(t *testing.T) {
	for _, rate := range []int{16000, 24000, 44100, 48000} {
		f, err := FormatForRate(rate)
		if err != nil {
			t.Fatalf("FormatForRate(%d): %v", rate, err)
		}
		if f.SampleRate() != rate {
			t.Errorf("FormatForRate(%d).SampleRate() = %d", rate, f.SampleRate())
		}
	}
	if _, err := FormatForRate(8000); err == nil {
		t.Error("FormatForRate(8000) should fail")
	}
}

func TestBytesSamples(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768, 258}
	b := Bytes(in)
	if len(b) != len(in)*2 {
		t.Fatalf("len(Bytes) = %d, want %d", len(b), len(in)*2)
	}
	if b[10] != 0x02 || b[11] != 0x01 {
		t.Errorf("258 encoded as %#x %#x, want little-endian 0x02 0x01", b[10], b[11])
	}
	out := Samples(append(b, 0xff))
	if len(out) != len(in) {
		t.Fatalf("len(Samples) = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d = %d, want %d", i, out[i], in[i])
		}
	}
}

func TestFromFloat64sClips(t *testing.T) {
	got := FromFloat64s([]float64{2, -2, 0, 0.5})
	want := []int16{32767, -32768, 0, 16383}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestWAVHeader(t *testing.T) {
	wav := L16Mono24K.WAV([]int16{1, 2, 3})
	if len(wav) != 44+6 {
		t.Fatalf("len = %d, want 50", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Fatalf("bad chunk ids: %q", wav[:40])
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 24000 {
		t.Errorf("sample rate = %d, want 24000", rate)
	}
	if n := binary.LittleEndian.Uint32(wav[40:44]); n != 6 {
		t.Errorf("data length = %d, want 6", n)
	}
}
