// Package clock runs deferred callbacks against the output sample clock.
// Time only moves when frames are rendered, so every wait in the engine
// (scheduler ticks, fades, cleanups) is a callback fired between two frames.
package clock

import (
	"math"
	"sort"
)

// ID identifies a scheduled callback. The zero ID is never issued.
type ID uint64

type event struct {
	id       ID
	frame    int64
	seq      uint64
	interval int64
	f        func()
}

// Timers is a frame-counted callback queue. It is not safe for concurrent
// use; the engine serializes access.
type Timers struct {
	sampleRate float64
	frame      int64
	nextID     ID
	seq        uint64
	events     []event
}

// New returns a queue whose clock starts at zero.
func New(sampleRate int) *Timers {
	if sampleRate <= 0 {
		panic("clock.New: sampleRate must be positive")
	}
	return &Timers{sampleRate: float64(sampleRate)}
}

func (t *Timers) SampleRate() float64 { return t.sampleRate }

// Frame returns the index of the frame about to be rendered.
func (t *Timers) Frame() int64 { return t.frame }

// Now returns the current clock time in seconds.
func (t *Timers) Now() float64 { return float64(t.frame) / t.sampleRate }

// FrameOf converts a time in seconds to the first frame at or after it.
func (t *Timers) FrameOf(at float64) int64 {
	return int64(math.Ceil(at*t.sampleRate - 1e-9))
}

// At runs f at the first frame at or after time at. Times already in the past
// fire on the next call to Fire.
func (t *Timers) At(at float64, f func()) ID {
	return t.insert(t.FrameOf(at), 0, f)
}

// After runs f d seconds from now.
func (t *Timers) After(d float64, f func()) ID {
	return t.At(t.Now()+d, f)
}

// Every runs f every interval seconds, the first time one interval from now.
func (t *Timers) Every(interval float64, f func()) ID {
	n := int64(math.Round(interval * t.sampleRate))
	if n < 1 {
		n = 1
	}
	return t.insert(t.frame+n, n, f)
}

// Cancel removes the callback. It reports whether anything was removed;
// cancelling an unknown or already fired ID is a no-op.
func (t *Timers) Cancel(id ID) bool {
	for i := range t.events {
		if t.events[i].id == id {
			t.events = append(t.events[:i], t.events[i+1:]...)
			return true
		}
	}
	return false
}

// Pending returns the number of queued callbacks.
func (t *Timers) Pending() int { return len(t.events) }

// Fire runs every callback due at the current frame, in schedule order, and
// returns how many ran. Callbacks may schedule or cancel other callbacks.
func (t *Timers) Fire() int {
	n := 0
	for len(t.events) > 0 && t.events[0].frame <= t.frame {
		ev := t.events[0]
		t.events = t.events[1:]
		if ev.interval > 0 {
			// a stalled clock does not replay the ticks it missed
			if ev.frame+ev.interval <= t.frame {
				ev.frame = t.frame
			}
			t.reinsert(ev)
		}
		ev.f()
		n++
	}
	return n
}

// Advance moves the clock forward by n frames without firing anything.
func (t *Timers) Advance(n int64) {
	if n > 0 {
		t.frame += n
	}
}

func (t *Timers) insert(frame, interval int64, f func()) ID {
	t.nextID++
	t.reinsert(event{id: t.nextID, frame: frame - interval, interval: interval, f: f})
	return t.nextID
}

func (t *Timers) reinsert(ev event) {
	ev.frame += ev.interval
	if ev.interval == 0 && ev.frame < t.frame {
		ev.frame = t.frame
	}
	t.seq++
	ev.seq = t.seq
	i := sort.Search(len(t.events), func(i int) bool {
		e := t.events[i]
		return e.frame > ev.frame || (e.frame == ev.frame && e.seq > ev.seq)
	})
	t.events = append(t.events, event{})
	copy(t.events[i+1:], t.events[i:])
	t.events[i] = ev
}
