// Package spectrum turns the most recent window of PCM samples into a
// normalized frequency-domain snapshot for visualization.
//
// Three views are supported: raw FFT bins ([Frequency]), equal-tempered
// note buckets from C1 to B8 ([Music]), and the note buckets within the
// human voice range ([Voice]). Magnitudes are expressed in decibels and
// mapped linearly from [MinDecibels, MaxDecibels] onto [0, 1].
package spectrum

import (
	"fmt"
	"math"
	"sync"
)

// Size is the analysis window length in samples.
const Size = 1024

const (
	MinDecibels = -100.0
	MaxDecibels = -30.0

	voiceLow  = 32.0
	voiceHigh = 2000.0
)

// Kind selects the snapshot view.
type Kind int

const (
	Frequency Kind = iota
	Music
	Voice
)

// String returns the view name.
func (k Kind) String() string {
	switch k {
	case Frequency:
		return "frequency"
	case Music:
		return "music"
	case Voice:
		return "voice"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind parses a view name as printed by [Kind.String].
func ParseKind(s string) (Kind, error) {
	switch s {
	case "frequency", "":
		return Frequency, nil
	case "music":
		return Music, nil
	case "voice":
		return Voice, nil
	}
	return 0, fmt.Errorf("spectrum: unknown kind %q", s)
}

// Snapshot is one point-in-time view. Values[i] is in [0, 1] and describes
// the band centered at Frequencies[i], named Labels[i].
type Snapshot struct {
	Values      []float64
	Frequencies []float64
	Labels      []string
}

// Peak returns the largest value, or 0 for an empty snapshot.
func (s Snapshot) Peak() float64 {
	var p float64
	for _, v := range s.Values {
		p = max(p, v)
	}
	return p
}

type band struct {
	freq  float64
	label string
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// notes lists C1..B8 tuned to A4 = 440 Hz.
var notes = func() []band {
	var out []band
	for octave := 1; octave <= 8; octave++ {
		for i, name := range noteNames {
			semis := (octave-4)*12 + i - 9
			out = append(out, band{
				freq:  440 * math.Pow(2, float64(semis)/12),
				label: fmt.Sprintf("%s%d", name, octave),
			})
		}
	}
	return out
}()

var voiceNotes = func() []band {
	var out []band
	for _, n := range notes {
		if n.freq >= voiceLow && n.freq <= voiceHigh {
			out = append(out, n)
		}
	}
	return out
}()

// Analyzer keeps the latest [Size] samples pushed to it. It is safe for
// concurrent use: one goroutine pushes while another takes snapshots.
type Analyzer struct {
	sampleRate int

	mu     sync.Mutex
	window []float64
	pos    int
	filled bool
}

// NewAnalyzer returns an analyzer for audio at sampleRate.
func NewAnalyzer(sampleRate int) *Analyzer {
	return &Analyzer{sampleRate: sampleRate, window: make([]float64, Size)}
}

// Push appends samples to the ring window.
func (a *Analyzer) Push(samples []int16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range samples {
		a.window[a.pos] = float64(s) / 32768.0
		a.pos++
		if a.pos == Size {
			a.pos = 0
			a.filled = true
		}
	}
}

// Reset clears the window.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.window)
	a.pos = 0
	a.filled = false
}

// Snapshot analyzes the current window.
func (a *Analyzer) Snapshot(kind Kind) Snapshot {
	re := make([]float64, Size)
	im := make([]float64, Size)
	a.mu.Lock()
	for i := range Size {
		re[i] = a.window[(a.pos+i)%Size] * hann[i]
	}
	a.mu.Unlock()

	fft(re, im)

	bins := Size / 2
	db := make([]float64, bins)
	for i := range bins {
		mag := math.Hypot(re[i], im[i]) / Size
		if mag <= 0 {
			db[i] = math.Inf(-1)
			continue
		}
		db[i] = 20 * math.Log10(mag)
	}
	return a.view(kind, db)
}

// Zero returns an all-zero snapshot with the same shape as [Analyzer.Snapshot].
func (a *Analyzer) Zero(kind Kind) Snapshot {
	db := make([]float64, Size/2)
	for i := range db {
		db[i] = math.Inf(-1)
	}
	return a.view(kind, db)
}

func (a *Analyzer) view(kind Kind, db []float64) Snapshot {
	binHz := float64(a.sampleRate) / Size
	if kind == Frequency {
		s := Snapshot{
			Values:      make([]float64, len(db)),
			Frequencies: make([]float64, len(db)),
			Labels:      make([]string, len(db)),
		}
		for i, d := range db {
			f := float64(i) * binHz
			s.Values[i] = normalize(d)
			s.Frequencies[i] = f
			s.Labels[i] = fmt.Sprintf("%.0f Hz", f)
		}
		return s
	}

	bands := notes
	if kind == Voice {
		bands = voiceNotes
	}
	peak := make([]float64, len(bands))
	for i := range peak {
		peak[i] = math.Inf(-1)
	}
	for i, d := range db {
		f := float64(i) * binHz
		if f < bands[0].freq/math.Pow(2, 1.0/24) || f > bands[len(bands)-1].freq*math.Pow(2, 1.0/24) {
			continue
		}
		j := nearest(bands, f)
		peak[j] = max(peak[j], d)
	}
	s := Snapshot{
		Values:      make([]float64, len(bands)),
		Frequencies: make([]float64, len(bands)),
		Labels:      make([]string, len(bands)),
	}
	for i, b := range bands {
		s.Values[i] = normalize(peak[i])
		s.Frequencies[i] = b.freq
		s.Labels[i] = b.label
	}
	return s
}

func nearest(bands []band, f float64) int {
	best, dist := 0, math.Inf(1)
	for i, b := range bands {
		if d := math.Abs(math.Log2(f / b.freq)); d < dist {
			best, dist = i, d
		}
	}
	return best
}

func normalize(db float64) float64 {
	v := (db - MinDecibels) / (MaxDecibels - MinDecibels)
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
