package effects

import "math"

// FeedbackDelay is a mono delay line whose feedback path runs through a
// one-pole low-pass, so each repeat is quieter and darker than the last.
type FeedbackDelay struct {
	buf      []float64
	pos      int
	feedback float64
	alpha    float64
	lp       float64
	delaySec float64
}

// NewFeedbackDelay creates the tail network.
// delayMs: delay time in milliseconds
// feedback: loop gain 0..0.95
// dampHz: low-pass cutoff inside the loop
func NewFeedbackDelay(sampleRate int, delayMs, feedback, dampHz float64) *FeedbackDelay {
	samples := int(delayMs * float64(sampleRate) / 1000.0)
	if samples < 1 {
		samples = 1
	}
	d := &FeedbackDelay{
		buf:      make([]float64, samples),
		feedback: clamp(feedback, 0, 0.95),
		alpha:    1,
		delaySec: float64(samples) / float64(sampleRate),
	}
	if dampHz > 0 && dampHz < float64(sampleRate)/2 {
		rc := 1.0 / (2.0 * math.Pi * dampHz)
		dt := 1.0 / float64(sampleRate)
		d.alpha = dt / (rc + dt)
	}
	return d
}

// Tick feeds x into the loop and returns the delayed output.
func (d *FeedbackDelay) Tick(x float64) float64 {
	y := d.buf[d.pos]
	d.lp += d.alpha * (y - d.lp)
	d.buf[d.pos] = x + d.lp*d.feedback
	d.pos++
	if d.pos >= len(d.buf) {
		d.pos = 0
	}
	return y
}

// DecayTime returns how long an impulse takes to fall below -60 dB.
func (d *FeedbackDelay) DecayTime() float64 {
	if d.feedback <= 0 {
		return d.delaySec
	}
	repeats := math.Log(0.001) / math.Log(d.feedback)
	return d.delaySec * (repeats + 1)
}
