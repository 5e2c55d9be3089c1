package resampler

import (
	"math"
	"testing"
)

func TestResampleSameRateCopies(t *testing.T) {
	in := []int16{1, 2, 3}
	out, err := Resample(in, 24000, 24000)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if len(out) != 3 || out[2] != 3 {
		t.Fatalf("Resample = %v, want copy of input", out)
	}
	out[0] = 99
	if in[0] != 1 {
		t.Fatal("Resample returned the input slice instead of a copy")
	}
}

func TestResampleInvalidRate(t *testing.T) {
	if _, err := Resample([]int16{1}, 0, 24000); err == nil {
		t.Fatal("expected error for zero source rate")
	}
}

func TestResampleUpsample(t *testing.T) {
	in := make([]int16, 24000)
	for i := range in {
		in[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/24000))
	}
	out, err := Resample(in, 24000, 48000)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if len(out) == 0 || len(out) > 2*len(in)+1024 {
		t.Fatalf("len(out) = %d, want roughly %d", len(out), 2*len(in))
	}
}
