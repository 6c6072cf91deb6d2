package segment

// Analysis summarizes a pattern for pitch and envelope decisions.
type Analysis struct {
	Complexity   int     // number of segments
	OnOffRatio   float64 // count(on) / max(1, count(off))
	AvgOnLength  float64 // mean on length as a fraction of the total extent
	AvgOffLength float64 // mean off length as a fraction of the total extent
}

// Analyze derives an Analysis from segs. totalExtent is the length the
// averages are normalized against; when it is not positive the summed segment
// length is used instead. Every denominator is treated as at least 1, so an
// empty pattern yields the zero Analysis.
func Analyze(segs []Segment, totalExtent float64) Analysis {
	var (
		onCount, offCount int
		onSum, offSum     float64
	)
	for _, s := range segs {
		l := s.Length
		if l < 0 {
			l = 0
		}
		if s.Kind == On {
			onCount++
			onSum += l
		} else {
			offCount++
			offSum += l
		}
	}
	if totalExtent <= 0 {
		totalExtent = onSum + offSum
	}
	if totalExtent <= 0 {
		totalExtent = 1
	}
	return Analysis{
		Complexity:   len(segs),
		OnOffRatio:   float64(onCount) / float64(max(1, offCount)),
		AvgOnLength:  clamp01(onSum / float64(max(1, onCount)) / totalExtent),
		AvgOffLength: clamp01(offSum / float64(max(1, offCount)) / totalExtent),
	}
}

func clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
