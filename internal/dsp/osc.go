package dsp

import "math"

const twoPi = 2 * math.Pi

// Waveform selects the oscillator shape.
type Waveform int

const (
	WaveSine Waveform = iota
	WaveTriangle
)

// Osc is a phase-accumulating oscillator that only sounds between its start
// and stop times.
type Osc struct {
	Wave   Waveform
	Freq   float64 // Hz
	Detune float64 // cents

	phase float64
	start float64
	stop  float64
}

// NewOsc returns an oscillator that starts sounding at start.
func NewOsc(wave Waveform, freq, detuneCents, start float64) *Osc {
	return &Osc{Wave: wave, Freq: freq, Detune: detuneCents, start: start, stop: math.Inf(1)}
}

// Stop schedules the oscillator to fall silent at at. A later call can only
// bring the stop time forward.
func (o *Osc) Stop(at float64) {
	if at < o.stop {
		o.stop = at
	}
}

// StopTime returns the scheduled stop time, +Inf when none is set.
func (o *Osc) StopTime() float64 { return o.stop }

// Sounding reports whether t lies within the start/stop window.
func (o *Osc) Sounding(t float64) bool {
	return t >= o.start && t < o.stop
}

// Next returns one sample at time t and advances the phase. modCents is an
// extra pitch offset applied for this sample only.
func (o *Osc) Next(t, sampleRate, modCents float64) float64 {
	if !o.Sounding(t) || sampleRate <= 0 {
		return 0
	}
	var v float64
	switch o.Wave {
	case WaveTriangle:
		if o.phase < 0.5 {
			v = 4*o.phase - 1
		} else {
			v = 3 - 4*o.phase
		}
	default:
		v = math.Sin(twoPi * o.phase)
	}
	freq := o.Freq * math.Pow(2, (o.Detune+modCents)/1200)
	o.phase += freq / sampleRate
	o.phase -= math.Floor(o.phase)
	return v
}
