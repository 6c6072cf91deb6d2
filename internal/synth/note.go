package synth

import (
	"math"

	"github.com/cbegin/orbitone/internal/dsp"
	"github.com/cbegin/orbitone/internal/effects"
	"github.com/cbegin/orbitone/internal/state"
)

type voice struct {
	osc  *dsp.Osc
	gain *dsp.Param
}

// noteSource is one finite note: a stack of harmonic voices through a shared
// low-pass, plus a feedback-delay tail mixed in after the filter.
type noteSource struct {
	owner      state.EntityID
	sampleRate float64
	voices     []voice
	filter     *dsp.LowPass
	panL, panR float64

	tail     *effects.FeedbackDelay
	tailSend float64
	tailGain *dsp.Param

	start float64
	end   float64
}

func (n *noteSource) Owner() state.EntityID { return n.owner }

func (n *noteSource) Render(t float64) (float64, float64, bool) {
	if t < n.start {
		return 0, 0, t >= n.end
	}
	var sum float64
	for _, v := range n.voices {
		if v.osc.Sounding(t) {
			sum += v.osc.Next(t, n.sampleRate, 0) * v.gain.Value(t)
		}
	}
	y := n.filter.Process(sum)
	if n.tail != nil {
		y += n.tail.Tick(y*n.tailSend) * n.tailGain.Value(t)
	}
	return y * n.panL, y * n.panR, t >= n.end
}

// Fade ramps every voice and the tail to silence and moves the end of the
// source to now+d.
func (n *noteSource) Fade(now, d float64) {
	end := now + d
	if end >= n.end {
		return
	}
	for _, v := range n.voices {
		fadeParam(v.gain, now, end)
		v.osc.Stop(end)
	}
	if n.tailGain != nil {
		fadeParam(n.tailGain, now, end)
	}
	n.end = end
}

// fadeParam replaces the future of p with a linear ramp to zero. If the ramp
// is rejected the value drops to zero at end instead.
func fadeParam(p *dsp.Param, now, end float64) {
	p.HoldAt(now)
	if err := p.LinearRampTo(0, end); err != nil {
		p.CancelFrom(now)
		_ = p.SetValueAt(0, end)
	}
}

// envelope schedules attack, hold and exponential release on a fresh gain
// parameter.
func envelope(base, start, attack, dur, release float64) (*dsp.Param, error) {
	g := dsp.NewParam(0)
	if err := g.SetValueAt(0, start); err != nil {
		return nil, err
	}
	if err := g.LinearRampTo(base, start+attack); err != nil {
		return nil, err
	}
	if err := g.SetValueAt(base, start+dur); err != nil {
		return nil, err
	}
	if err := g.ExponentialRampTo(silentGain, start+dur+release); err != nil {
		return nil, err
	}
	if err := g.SetValueAt(0, start+dur+release); err != nil {
		return nil, err
	}
	return g, nil
}

// silentGain is the floor an exponential release ends on.
const silentGain = 1e-4

func harmonicCount(complexity int) int {
	if complexity < 0 {
		complexity = 0
	}
	return 1 + complexity/3
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
