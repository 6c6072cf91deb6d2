package lfo

import "math"

// Waveform constants.
const (
	WaveSine     = 0
	WaveTriangle = 1
	WaveSquare   = 2
)

var waveNames = map[string]int{
	"sine":     WaveSine,
	"triangle": WaveTriangle,
	"square":   WaveSquare,
}

// WaveByName maps "sine", "triangle" or "square" to its waveform constant.
func WaveByName(name string) (int, bool) {
	w, ok := waveNames[name]
	return w, ok
}

// LFO is a low-frequency oscillator producing one modulation value per
// sample. It is owned by a single sound and is not safe to share.
type LFO struct {
	depth    float64 // peak modulation, in the caller's units (cents for vibrato)
	rateHz   float64
	waveform int
	phase    float64 // [0, 1)
	delay    float64 // seconds of silence before modulation starts
	elapsed  float64
}

// New returns an LFO with the given depth, rate and waveform.
func New(depth, rateHz float64, waveform int) *LFO {
	l := &LFO{}
	l.Set(depth, rateHz, waveform)
	return l
}

// Set configures the LFO parameters.
func (l *LFO) Set(depth, rateHz float64, waveform int) {
	l.depth = depth
	l.rateHz = rateHz
	if waveform < WaveSine || waveform > WaveSquare {
		waveform = WaveSine
	}
	l.waveform = waveform
}

// SetDelay holds the LFO at zero for the first d seconds, so modulation
// fades in after the onset instead of wobbling the attack.
func (l *LFO) SetDelay(d float64) {
	if d < 0 {
		d = 0
	}
	l.delay = d
}

// Sample advances the LFO by one sample and returns a value in
// [-depth, +depth]. Returns 0 while inactive or still delayed.
func (l *LFO) Sample(sampleRate float64) float64 {
	if !l.Active() || sampleRate <= 0 {
		return 0
	}
	if l.elapsed < l.delay {
		l.elapsed += 1 / sampleRate
		return 0
	}

	var v float64
	switch l.waveform {
	case WaveTriangle:
		if l.phase < 0.5 {
			v = 4.0*l.phase - 1.0
		} else {
			v = 3.0 - 4.0*l.phase
		}
	case WaveSquare:
		if l.phase < 0.5 {
			v = 1
		} else {
			v = -1
		}
	default:
		v = math.Sin(2 * math.Pi * l.phase)
	}

	l.phase += l.rateHz / sampleRate
	l.phase -= math.Floor(l.phase)
	return v * l.depth
}

// Active returns true if the LFO has non-zero depth and rate.
func (l *LFO) Active() bool {
	return l.depth != 0 && l.rateHz != 0
}
