package segment

// Scale is an ordered list of frequencies in Hz; index 0 is the tonic.
type Scale []float64

// ScaleKind names one of the fixed scales.
type ScaleKind int

const (
	ScaleSparse ScaleKind = iota
	ScaleMajor
	ScaleMinor
)

func (k ScaleKind) String() string {
	switch k {
	case ScaleMajor:
		return "major"
	case ScaleMinor:
		return "minor"
	default:
		return "sparse"
	}
}

var (
	// C major pentatonic.
	sparseScale = Scale{261.63, 293.66, 329.63, 392.00, 440.00}
	// C major.
	majorScale = Scale{261.63, 293.66, 329.63, 349.23, 392.00, 440.00, 493.88}
	// A natural minor.
	minorScale = Scale{220.00, 246.94, 261.63, 293.66, 329.63, 349.23, 392.00}
)

// ScaleKindFor picks the scale family for an analysis.
func ScaleKindFor(a Analysis) ScaleKind {
	switch {
	case a.Complexity <= 4:
		return ScaleSparse
	case a.OnOffRatio > 1:
		return ScaleMajor
	default:
		return ScaleMinor
	}
}

// ChooseScale returns a copy of the scale selected by a.
func ChooseScale(a Analysis) Scale {
	var src Scale
	switch ScaleKindFor(a) {
	case ScaleMajor:
		src = majorScale
	case ScaleMinor:
		src = minorScale
	default:
		src = sparseScale
	}
	out := make(Scale, len(src))
	copy(out, src)
	return out
}
