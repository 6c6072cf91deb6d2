// Package state is the per-entity runtime store. Every piece of audio state
// an entity owns (timers, sounding voices, the live preview, the loop
// watermark) hangs off its Runtime, so clearing an entity has exactly one
// place to look.
package state

import (
	"math/rand/v2"
	"slices"

	"github.com/cbegin/orbitone/internal/clock"
	"github.com/cbegin/orbitone/internal/dsp"
	"github.com/cbegin/orbitone/internal/segment"
)

// EntityID identifies one placed entity. IDs are never reused within a Store.
type EntityID uint64

// Phase is the loop state of an entity.
type Phase int

const (
	Idle Phase = iota
	Scheduled
)

func (p Phase) String() string {
	if p == Scheduled {
		return "scheduled"
	}
	return "idle"
}

// ActiveNote is one sounding harmonic voice.
type ActiveNote struct {
	Voice    *dsp.Osc
	Gain     *dsp.Param
	BaseGain float64
}

// LiveBundle is the sustained preview sound started while recording.
// Stopping is set once its fade-out has begun; the bundle stays on the
// runtime until the cleanup after the fade removes it.
type LiveBundle struct {
	Freq     float64
	Voices   []*dsp.Osc
	Gain     *dsp.Param
	Start    float64
	Stopping bool
}

// Pattern is a finalized, frozen loop: proportional segments plus the
// analysis and transposed scale computed once at finalize.
type Pattern struct {
	Segments []segment.Segment
	Total    float64
	Period   float64
	Analysis segment.Analysis
	Scale    segment.Scale
}

// Runtime is the mutable state of one entity.
type Runtime struct {
	ID   EntityID
	X, Y float64
	Seed uint64

	// Recorded holds wall-clock segments while the entity is being drawn.
	Recorded []segment.Segment
	Live     *LiveBundle

	ActiveNotes []ActiveNote

	Phase          Phase
	Tick           clock.ID
	ScheduledUntil float64
	Pattern        *Pattern

	rng    *rand.Rand
	timers map[clock.ID]struct{}
}

func newRuntime(id EntityID, x, y float64, seed uint64) *Runtime {
	return &Runtime{
		ID:     id,
		X:      x,
		Y:      y,
		Seed:   seed,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		timers: make(map[clock.ID]struct{}),
	}
}

// Float64 draws the next value in [0, 1) from the entity's seeded generator.
func (r *Runtime) Float64() float64 { return r.rng.Float64() }

// Finalized reports whether a loop pattern has been frozen for the entity.
func (r *Runtime) Finalized() bool { return r.Pattern != nil }

// Track records a pending timer owned by the entity.
func (r *Runtime) Track(id clock.ID) {
	if id != 0 {
		r.timers[id] = struct{}{}
	}
}

// Untrack forgets a timer, typically from inside its own callback.
func (r *Runtime) Untrack(id clock.ID) { delete(r.timers, id) }

// Timers returns the tracked timer IDs in creation order.
func (r *Runtime) Timers() []clock.ID {
	ids := make([]clock.ID, 0, len(r.timers))
	for id := range r.timers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// TakeTimers returns the tracked timers and forgets them all.
func (r *Runtime) TakeTimers() []clock.ID {
	ids := r.Timers()
	clear(r.timers)
	return ids
}

// AddNote registers a voice as sounding.
func (r *Runtime) AddNote(n ActiveNote) {
	r.ActiveNotes = append(r.ActiveNotes, n)
}

// RemoveVoice unregisters the note driven by voice. Removing a voice that is
// not registered is a no-op.
func (r *Runtime) RemoveVoice(voice *dsp.Osc) bool {
	for i, n := range r.ActiveNotes {
		if n.Voice == voice {
			r.ActiveNotes = slices.Delete(r.ActiveNotes, i, i+1)
			return true
		}
	}
	return false
}

// TakeNotes returns the active notes and empties the list.
func (r *Runtime) TakeNotes() []ActiveNote {
	notes := r.ActiveNotes
	r.ActiveNotes = nil
	return notes
}

// Store maps entity IDs to their runtime state. It is not safe for
// concurrent use; the engine serializes access.
type Store struct {
	next     EntityID
	entities map[EntityID]*Runtime
}

func NewStore() *Store {
	return &Store{entities: make(map[EntityID]*Runtime)}
}

// Create registers a new entity at (x, y) with its own seeded generator.
func (s *Store) Create(x, y float64, seed uint64) *Runtime {
	s.next++
	rt := newRuntime(s.next, x, y, seed)
	s.entities[rt.ID] = rt
	return rt
}

func (s *Store) Get(id EntityID) (*Runtime, bool) {
	rt, ok := s.entities[id]
	return rt, ok
}

// Delete removes the entry. Deleting a missing entity is a no-op.
func (s *Store) Delete(id EntityID) {
	delete(s.entities, id)
}

// IDs returns every live entity ID in ascending order.
func (s *Store) IDs() []EntityID {
	ids := make([]EntityID, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *Store) Len() int { return len(s.entities) }
