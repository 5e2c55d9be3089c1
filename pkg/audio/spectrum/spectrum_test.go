package spectrum

import (
	"math"
	"testing"
)

func sine(freq float64, rate, n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(300 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestZeroSnapshot(t *testing.T) {
	a := NewAnalyzer(24000)
	for _, kind := range []Kind{Frequency, Music, Voice} {
		s := a.Zero(kind)
		if len(s.Values) == 0 {
			t.Fatalf("%v: empty snapshot", kind)
		}
		if len(s.Values) != len(s.Labels) || len(s.Values) != len(s.Frequencies) {
			t.Fatalf("%v: mismatched lengths", kind)
		}
		if s.Peak() != 0 {
			t.Errorf("%v: peak = %v, want 0", kind, s.Peak())
		}
	}
}

func TestSnapshotFindsTone(t *testing.T) {
	a := NewAnalyzer(24000)
	a.Push(sine(440, 24000, Size))

	s := a.Snapshot(Frequency)
	best := 0
	for i, v := range s.Values {
		if v > s.Values[best] {
			best = i
		}
	}
	if f := s.Frequencies[best]; math.Abs(f-440) > 24000.0/Size {
		t.Errorf("peak bin at %.1f Hz, want ~440", f)
	}

	m := a.Snapshot(Music)
	best = 0
	for i, v := range m.Values {
		if v > m.Values[best] {
			best = i
		}
	}
	if m.Labels[best] != "A4" {
		t.Errorf("music peak = %s, want A4", m.Labels[best])
	}
}

func TestVoiceBandsWithinRange(t *testing.T) {
	a := NewAnalyzer(24000)
	s := a.Zero(Voice)
	for _, f := range s.Frequencies {
		if f < voiceLow || f > voiceHigh {
			t.Errorf("voice band %.1f Hz outside [%v, %v]", f, voiceLow, voiceHigh)
		}
	}
	if len(s.Values) >= len(a.Zero(Music).Values) {
		t.Error("voice view should be narrower than music view")
	}
}

func TestResetSilences(t *testing.T) {
	a := NewAnalyzer(24000)
	a.Push(sine(1000, 24000, Size))
	if a.Snapshot(Frequency).Peak() == 0 {
		t.Fatal("expected energy before reset")
	}
	a.Reset()
	if p := a.Snapshot(Frequency).Peak(); p != 0 {
		t.Errorf("peak after reset = %v, want 0", p)
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{Frequency, Music, Voice} {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseKind("bogus"); err == nil {
		t.Error("ParseKind(bogus) should fail")
	}
}
