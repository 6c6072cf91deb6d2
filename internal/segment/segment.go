package segment

// Kind marks a segment as sounding (On) or silent (Off).
type Kind int

const (
	Off Kind = iota
	On
)

func (k Kind) String() string {
	if k == On {
		return "on"
	}
	return "off"
}

// Segment is one interval of a recorded pattern. Length is wall-clock seconds
// while recording and arc units once the pattern is finalized.
type Segment struct {
	Kind   Kind
	Length float64
}

// Total returns the summed length of segs, ignoring negative lengths.
func Total(segs []Segment) float64 {
	var sum float64
	for _, s := range segs {
		if s.Length > 0 {
			sum += s.Length
		}
	}
	return sum
}

// Proportional rescales wall-clock segments so their lengths sum to extent.
// It returns nil when there is nothing to scale.
func Proportional(segs []Segment, extent float64) []Segment {
	sum := Total(segs)
	if sum <= 0 || extent <= 0 {
		return nil
	}
	out := make([]Segment, len(segs))
	for i, s := range segs {
		l := s.Length
		if l < 0 {
			l = 0
		}
		out[i] = Segment{Kind: s.Kind, Length: l / sum * extent}
	}
	return out
}
