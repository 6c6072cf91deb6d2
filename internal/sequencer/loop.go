// Package sequencer turns a frozen on/off pattern into an endless stream of
// notes. A recurring tick keeps a single watermark, ScheduledUntil, ahead of
// the clock by a fixed lookahead, scheduling whole rotations at a time.
package sequencer

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/cbegin/orbitone/internal/clock"
	"github.com/cbegin/orbitone/internal/state"
)

// Renderer receives every scheduled note.
type Renderer interface {
	RenderNote(rt *state.Runtime, p *state.Pattern, n Note)
}

// Options tunes the lookahead loop.
type Options struct {
	Lookahead           float64 // seconds kept scheduled ahead of the clock
	TickInterval        float64 // seconds between ticks, shorter than Lookahead
	StartDelay          float64 // gap between finalize and the first rotation
	MinRotation         float64 // shorter periods are ignored
	MaxRotationsPerTick int
}

// Scheduler runs the loop state machine for any number of entities. Each
// entity's state lives on its own Runtime; the scheduler holds none.
type Scheduler struct {
	clock  *clock.Timers
	render Renderer
	opts   Options
	log    *slog.Logger
}

func New(clk *clock.Timers, r Renderer, opts Options, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	if opts.MaxRotationsPerTick < 1 {
		opts.MaxRotationsPerTick = 1
	}
	if opts.TickInterval <= 0 || opts.TickInterval >= opts.Lookahead {
		opts.TickInterval = opts.Lookahead / 2
	}
	return &Scheduler{clock: clk, render: r, opts: opts, log: log}
}

// Start moves rt from Idle to Scheduled and fills the first lookahead window.
// It reports false, leaving rt Idle, when rt has no pattern, is already
// scheduled, or its period is too short to loop.
func (s *Scheduler) Start(rt *state.Runtime) bool {
	p := rt.Pattern
	if p == nil || rt.Phase == state.Scheduled {
		return false
	}
	if p.Period < s.opts.MinRotation || s.opts.Lookahead <= 0 {
		s.log.Debug("rotation too short to loop", "entity", rt.ID, "period", p.Period)
		return false
	}
	rt.Phase = state.Scheduled
	rt.ScheduledUntil = s.clock.Now() + s.opts.StartDelay
	s.Tick(rt)
	rt.Tick = s.clock.Every(s.opts.TickInterval, func() { s.Tick(rt) })
	return true
}

// Stop cancels the recurring tick and returns rt to Idle. Notes already
// handed to the renderer are left to finish. Stopping an idle entity is a
// no-op.
func (s *Scheduler) Stop(rt *state.Runtime) {
	if rt.Tick != 0 {
		s.clock.Cancel(rt.Tick)
		rt.Tick = 0
	}
	rt.Phase = state.Idle
}

// Tick schedules whole rotations until the watermark covers now+Lookahead,
// at most MaxRotationsPerTick of them, and returns how many it scheduled. A
// watermark that fell behind the clock is first moved forward by whole
// rotations, so no past instant is scheduled and the rotation grid is kept.
func (s *Scheduler) Tick(rt *state.Runtime) int {
	if rt.Phase != state.Scheduled || rt.Pattern == nil {
		return 0
	}
	p := rt.Pattern
	now := s.clock.Now()
	if rt.ScheduledUntil < now {
		skip := math.Ceil((now - rt.ScheduledUntil) / p.Period)
		rt.ScheduledUntil += skip * p.Period
		s.log.Warn("loop fell behind, skipping rotations", "entity", rt.ID, "skipped", int(skip))
	}
	horizon := now + s.opts.Lookahead
	n := 0
	for rt.ScheduledUntil < horizon && n < s.opts.MaxRotationsPerTick {
		s.scheduleRotation(rt, p, rt.ScheduledUntil)
		rt.ScheduledUntil += p.Period
		n++
	}
	return n
}

func (s *Scheduler) scheduleRotation(rt *state.Runtime, p *state.Pattern, start float64) {
	for _, n := range Rotation(p, start, rt.Float64) {
		s.renderNote(rt, p, n)
	}
}

// renderNote isolates one note so a failure cannot stop the rotation or the
// ticks after it.
func (s *Scheduler) renderNote(rt *state.Runtime, p *state.Pattern, n Note) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("note render panicked", "entity", rt.ID, "freq", n.Freq, "start", n.Start, "err", fmt.Sprint(r))
		}
	}()
	s.render.RenderNote(rt, p, n)
}
