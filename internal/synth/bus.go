package synth

import (
	"github.com/cbegin/orbitone/internal/master"
	"github.com/cbegin/orbitone/internal/state"
)

// Source is one sound connected to the bus.
type Source interface {
	// Render returns the source's stereo contribution at time t and whether
	// it has finished for good.
	Render(t float64) (l, r float64, done bool)
	// Owner is the entity the source belongs to, 0 for engine-level sounds.
	Owner() state.EntityID
	// Fade ramps the source to silence over d seconds starting at now.
	Fade(now, d float64)
}

// Bus sums every connected source and feeds the result through the master
// pipeline. Sources only ever add into the bus; none can see another.
type Bus struct {
	master  *master.Lazy
	sources []Source
}

func NewBus(m *master.Lazy) *Bus {
	return &Bus{master: m}
}

// Add connects s. The master pipeline is built on the first connection.
func (b *Bus) Add(s Source) {
	b.master.Get()
	b.sources = append(b.sources, s)
}

// Remove disconnects s. Removing a source that is not connected is a no-op.
func (b *Bus) Remove(s Source) {
	for i, src := range b.sources {
		if src == s {
			b.sources = append(b.sources[:i], b.sources[i+1:]...)
			return
		}
	}
}

// FadeOwner fades every source owned by id and returns how many it touched.
func (b *Bus) FadeOwner(id state.EntityID, now, d float64) int {
	n := 0
	for _, s := range b.sources {
		if s.Owner() == id {
			s.Fade(now, d)
			n++
		}
	}
	return n
}

// Owned counts the connected sources owned by id.
func (b *Bus) Owned(id state.EntityID) int {
	n := 0
	for _, s := range b.sources {
		if s.Owner() == id {
			n++
		}
	}
	return n
}

func (b *Bus) Len() int { return len(b.sources) }

// Mix renders one frame at time t. Finished sources are disconnected.
func (b *Bus) Mix(t float64) (float64, float64) {
	if !b.master.Built() {
		return 0, 0
	}
	var sumL, sumR float64
	kept := b.sources[:0]
	for _, s := range b.sources {
		l, r, done := s.Render(t)
		sumL += l
		sumR += r
		if !done {
			kept = append(kept, s)
		}
	}
	for i := len(kept); i < len(b.sources); i++ {
		b.sources[i] = nil
	}
	b.sources = kept
	return b.master.Get().Process(sumL, sumR)
}
