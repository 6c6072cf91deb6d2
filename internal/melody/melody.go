// Package melody holds the pure pitch-path decisions: per-entity
// transposition and the seeded walk through a scale. Nothing here touches
// audio state, so every function is safe to call from tests in isolation.
package melody

import (
	"math"

	"github.com/cbegin/orbitone/internal/segment"
)

// TonicThreshold is the normalized segment length above which a note is
// anchored to the tonic.
const TonicThreshold = 0.25

// Transposition maps a horizontal position to a semitone offset in [-6, +5].
// There is deliberately no octave shift.
func Transposition(x, width float64) int {
	if width <= 0 {
		return 0
	}
	norm := x / width
	if norm != norm || norm < 0 {
		norm = 0
	}
	if norm > 1 {
		norm = 1
	}
	steps := int(math.Floor(norm * 12))
	if steps > 11 {
		steps = 11
	}
	return steps - 6
}

// Transpose returns scale shifted by semitones.
func Transpose(scale segment.Scale, semitones int) segment.Scale {
	ratio := math.Pow(2, float64(semitones)/12)
	out := make(segment.Scale, len(scale))
	for i, f := range scale {
		out[i] = f * ratio
	}
	return out
}

// PickIndex chooses a scale index for an on segment whose length is
// normalizedLen of the whole pattern. Long segments anchor to the tonic;
// shorter ones land proportionally higher in the scale and get a one-step
// jitter. rng is always drawn exactly once so a rotation consumes a fixed
// number of values regardless of the pattern shape.
func PickIndex(n int, normalizedLen float64, rng func() float64) int {
	if n <= 0 {
		return 0
	}
	r := rng()
	if normalizedLen > TonicThreshold {
		return 0
	}
	if normalizedLen < 0 || normalizedLen != normalizedLen {
		normalizedLen = 0
	}
	base := int(math.Round((1 - normalizedLen/TonicThreshold) * float64(n-1)))
	switch {
	case r < 1.0/3:
		base--
	case r >= 2.0/3:
		base++
	}
	return clampIndex(base, n)
}

// PickLive chooses the sustained note for a live preview.
func PickLive(n int, rng func() float64) int {
	if n <= 0 {
		return 0
	}
	return clampIndex(int(rng()*float64(n)), n)
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
