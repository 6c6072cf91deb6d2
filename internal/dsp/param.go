package dsp

import (
	"errors"
	"math"
)

var (
	// ErrNonFinite is returned for NaN or infinite values and times.
	ErrNonFinite = errors.New("dsp: non-finite automation value")
	// ErrOutOfOrder is returned when an event is scheduled before the last
	// event already on the timeline.
	ErrOutOfOrder = errors.New("dsp: automation event out of order")
	// ErrNonPositive is returned when an exponential ramp would start or end
	// at a value that is not strictly positive.
	ErrNonPositive = errors.New("dsp: exponential ramp needs positive values")
)

type rampKind int

const (
	rampStep rampKind = iota
	rampLinear
	rampExp
)

type paramEvent struct {
	kind  rampKind
	at    float64
	value float64
}

// Param is a value that follows a timeline of scheduled changes, evaluated
// in seconds of output-clock time. Events must be appended in time order.
type Param struct {
	initial float64
	events  []paramEvent
	cursor  int
}

// NewParam returns a Param that holds v until its first event.
func NewParam(v float64) *Param {
	return &Param{initial: v, cursor: -1}
}

// SetValueAt jumps to v at time at.
func (p *Param) SetValueAt(v, at float64) error {
	return p.push(paramEvent{kind: rampStep, at: at, value: v})
}

// LinearRampTo ramps linearly from the previous event to v, arriving at end.
func (p *Param) LinearRampTo(v, end float64) error {
	return p.push(paramEvent{kind: rampLinear, at: end, value: v})
}

// ExponentialRampTo ramps geometrically from the previous event to v,
// arriving at end. Both endpoints must be positive.
func (p *Param) ExponentialRampTo(v, end float64) error {
	if v <= 0 || p.lastValue() <= 0 {
		return ErrNonPositive
	}
	return p.push(paramEvent{kind: rampExp, at: end, value: v})
}

// CancelFrom drops every event scheduled at or after at.
func (p *Param) CancelFrom(at float64) {
	n := len(p.events)
	for n > 0 && p.events[n-1].at >= at {
		n--
	}
	p.events = p.events[:n]
	if p.cursor >= n {
		p.cursor = n - 1
	}
}

// HoldAt cancels the future of the timeline and pins the current value at at,
// so that a new ramp can start from where the value actually is.
func (p *Param) HoldAt(at float64) float64 {
	v := p.Value(at)
	p.CancelFrom(at)
	p.events = append(p.events, paramEvent{kind: rampStep, at: at, value: v})
	return v
}

// End returns the time of the last scheduled event.
func (p *Param) End() float64 {
	if len(p.events) == 0 {
		return 0
	}
	return p.events[len(p.events)-1].at
}

// Value evaluates the timeline at time t. Evaluation is cheapest when t is
// non-decreasing between calls.
func (p *Param) Value(t float64) float64 {
	if len(p.events) == 0 {
		return p.initial
	}
	if p.cursor >= 0 && p.events[p.cursor].at > t {
		p.cursor = -1
	}
	for p.cursor+1 < len(p.events) && p.events[p.cursor+1].at <= t {
		p.cursor++
	}
	if p.cursor > 32 {
		p.events = p.events[p.cursor:]
		p.cursor = 0
	}

	prevAt, prevV := 0.0, p.initial
	if p.cursor >= 0 {
		prevAt, prevV = p.events[p.cursor].at, p.events[p.cursor].value
	}
	if p.cursor+1 >= len(p.events) {
		return prevV
	}
	next := p.events[p.cursor+1]
	span := next.at - prevAt
	if next.kind == rampStep || span <= 0 {
		return prevV
	}
	frac := (t - prevAt) / span
	if frac < 0 {
		frac = 0
	}
	switch next.kind {
	case rampExp:
		if prevV <= 0 {
			return next.value
		}
		return prevV * math.Pow(next.value/prevV, frac)
	default:
		return prevV + (next.value-prevV)*frac
	}
}

func (p *Param) lastValue() float64 {
	if len(p.events) == 0 {
		return p.initial
	}
	return p.events[len(p.events)-1].value
}

func (p *Param) push(ev paramEvent) error {
	if !finite(ev.at) || !finite(ev.value) || ev.at < 0 {
		return ErrNonFinite
	}
	if len(p.events) > 0 && ev.at < p.events[len(p.events)-1].at {
		return ErrOutOfOrder
	}
	p.events = append(p.events, ev)
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
