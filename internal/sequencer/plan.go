package sequencer

import (
	"math"

	"github.com/cbegin/orbitone/internal/melody"
	"github.com/cbegin/orbitone/internal/segment"
	"github.com/cbegin/orbitone/internal/state"
)

// Note is one note of a rotation.
type Note struct {
	Segment  int     // index of the on segment that produced it
	Freq     float64 // Hz
	Offset   float64 // seconds from the start of the rotation
	Start    float64 // clock time
	Duration float64 // seconds
}

// Freeze builds the loop pattern for a finalized entity: segments rescaled to
// extent, with the analysis and the transposed scale computed once. It
// reports false for degenerate input (no segments, all-zero lengths, or a
// non-positive period), which schedules nothing.
func Freeze(segs []segment.Segment, period, extent, x, width float64) (*state.Pattern, bool) {
	if !(period > 0) || math.IsInf(period, 0) {
		return nil, false
	}
	prop := segment.Proportional(segs, extent)
	if prop == nil {
		return nil, false
	}
	total := segment.Total(prop)
	a := segment.Analyze(prop, total)
	return &state.Pattern{
		Segments: prop,
		Total:    total,
		Period:   period,
		Analysis: a,
		Scale:    melody.Transpose(segment.ChooseScale(a), melody.Transposition(x, width)),
	}, true
}

// Rotation lays out one rotation of p starting at start. Only on segments
// produce notes; off segments advance the cursor. rng is drawn once per note.
func Rotation(p *state.Pattern, start float64, rng func() float64) []Note {
	if p == nil || p.Total <= 0 || p.Period <= 0 {
		return nil
	}
	var notes []Note
	cursor := 0.0
	for i, s := range p.Segments {
		dur := s.Length / p.Total * p.Period
		if s.Kind == segment.On && dur > 0 {
			idx := melody.PickIndex(len(p.Scale), s.Length/p.Total, rng)
			var freq float64
			if len(p.Scale) > 0 {
				freq = p.Scale[idx]
			}
			notes = append(notes, Note{
				Segment:  i,
				Freq:     freq,
				Offset:   cursor,
				Start:    start + cursor,
				Duration: dur,
			})
		}
		cursor += dur
	}
	return notes
}
