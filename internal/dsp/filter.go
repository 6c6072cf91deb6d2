package dsp

import "math"

// LowPass is two cascaded one-pole low-pass stages (12 dB/octave).
type LowPass struct {
	alpha  float64
	s1, s2 float64
	cutoff float64
}

// NewLowPass returns a filter tuned to cutoff Hz. Cutoffs at or above
// Nyquist leave the signal untouched.
func NewLowPass(sampleRate, cutoff float64) *LowPass {
	f := &LowPass{}
	f.SetCutoff(sampleRate, cutoff)
	return f
}

// SetCutoff retunes the filter without clearing its state.
func (f *LowPass) SetCutoff(sampleRate, cutoff float64) {
	f.cutoff = cutoff
	if cutoff <= 0 || sampleRate <= 0 || cutoff >= sampleRate/2 {
		f.alpha = 1
		return
	}
	rc := 1.0 / (twoPi * cutoff)
	dt := 1.0 / sampleRate
	f.alpha = dt / (rc + dt)
}

// Cutoff returns the tuned cutoff in Hz.
func (f *LowPass) Cutoff() float64 { return f.cutoff }

func (f *LowPass) Process(x float64) float64 {
	f.s1 += f.alpha * (x - f.s1)
	f.s2 += f.alpha * (f.s1 - f.s2)
	return f.s2
}

func (f *LowPass) Reset() {
	f.s1, f.s2 = 0, 0
}

// CutoffFloor is the lowest cutoff worth using at sampleRate: ratio of the
// sample rate, but never below min.
func CutoffFloor(sampleRate, ratio, min float64) float64 {
	return math.Max(min, sampleRate*ratio)
}

// FloorCutoff raises cutoff to floor when it falls below it and returns the
// gain compensation for the lost brightness. The compensation grows smoothly
// with how far below the floor the cutoff was and never exceeds maxComp.
func FloorCutoff(cutoff, floor, maxComp float64) (float64, float64) {
	if floor <= 0 || cutoff >= floor {
		return cutoff, 1
	}
	if maxComp < 1 {
		maxComp = 1
	}
	deficit := (floor - cutoff) / floor
	return floor, 1 + (maxComp-1)*(1-math.Exp(-3*deficit))
}

// EqualPower returns left/right gains for pan in [-1, 1].
func EqualPower(pan float64) (float64, float64) {
	if pan < -1 {
		pan = -1
	} else if pan > 1 {
		pan = 1
	}
	angle := (pan + 1) / 2 * (math.Pi / 2)
	return math.Cos(angle), math.Sin(angle)
}
