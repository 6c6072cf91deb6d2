package segment

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// BuildVisualPattern renders segs, plus an optional unfinished live segment,
// as a dash pattern: alternating on/off lengths scaled to totalExtent and
// separated by spaces. The first entry is always an on length, so a pattern
// that begins with an off segment gets a leading "0". Neighbouring segments
// of the same kind are split by a "0" of the other kind for the same reason.
// Every real length is at least 1.
func BuildVisualPattern(segs []Segment, live *Segment, totalExtent float64) string {
	all := segs
	if live != nil {
		all = make([]Segment, 0, len(segs)+1)
		all = append(all, segs...)
		all = append(all, *live)
	}
	sum := Total(all)
	if sum <= 0 || totalExtent <= 0 {
		return ""
	}

	var b strings.Builder
	want := On
	for _, s := range all {
		if s.Kind != want {
			writeLength(&b, 0)
			want = s.Kind
		}
		l := 0.0
		if s.Length > 0 {
			l = s.Length / sum * totalExtent
		}
		writeLength(&b, math.Max(1, math.Round(l)))
		want = 1 - want
	}
	return b.String()
}

func writeLength(b *strings.Builder, v float64) {
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
}

// ParsePattern reads a string produced by BuildVisualPattern back into
// segments. Zero-length alternation markers are dropped.
func ParsePattern(pattern string) ([]Segment, error) {
	fields := strings.FieldsFunc(pattern, func(r rune) bool {
		return r == ' ' || r == ','
	})
	var out []Segment
	kind := On
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("pattern entry %d: %w", i, err)
		}
		if v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			return nil, fmt.Errorf("pattern entry %d: invalid length %q", i, f)
		}
		if v > 0 {
			out = append(out, Segment{Kind: kind, Length: v})
		}
		kind = 1 - kind
	}
	return out, nil
}
