package segment

import (
	"math"
	"math/rand"
	"testing"
)

func TestAnalyzeEmptyPattern(t *testing.T) {
	a := Analyze(nil, 0)
	if a != (Analysis{}) {
		t.Fatalf("empty analysis = %+v, want zero value", a)
	}
}

func TestAnalyzeCounts(t *testing.T) {
	segs := []Segment{{On, 100}, {Off, 50}, {On, 100}, {Off, 50}}
	a := Analyze(segs, 300)
	if a.Complexity != 4 {
		t.Fatalf("complexity = %d, want 4", a.Complexity)
	}
	if a.OnOffRatio != 1 {
		t.Fatalf("on/off ratio = %v, want 1", a.OnOffRatio)
	}
	if math.Abs(a.AvgOnLength-100.0/300) > 1e-9 {
		t.Fatalf("avg on = %v, want %v", a.AvgOnLength, 100.0/300)
	}
	if math.Abs(a.AvgOffLength-50.0/300) > 1e-9 {
		t.Fatalf("avg off = %v, want %v", a.AvgOffLength, 50.0/300)
	}
}

func TestAnalyzeOnlyOnSegments(t *testing.T) {
	a := Analyze([]Segment{{On, 1}, {On, 1}, {On, 2}}, 0)
	if a.OnOffRatio != 3 {
		t.Fatalf("ratio with no off segments = %v, want 3", a.OnOffRatio)
	}
	if a.AvgOffLength != 0 {
		t.Fatalf("avg off = %v, want 0", a.AvgOffLength)
	}
}

func TestAnalyzeFiniteForRandomPatterns(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		n := 1 + rng.Intn(12)
		segs := make([]Segment, n)
		for j := range segs {
			segs[j] = Segment{Kind: Kind(rng.Intn(2)), Length: rng.Float64() * 3}
		}
		a := Analyze(segs, rng.Float64()*400)
		for _, v := range []float64{a.OnOffRatio, a.AvgOnLength, a.AvgOffLength} {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				t.Fatalf("segments %v produced non-finite analysis %+v", segs, a)
			}
		}
	}
}

func TestChooseScale(t *testing.T) {
	cases := []struct {
		name string
		a    Analysis
		want ScaleKind
	}{
		{"single segment", Analysis{Complexity: 1, OnOffRatio: 1}, ScaleSparse},
		{"four segments", Analysis{Complexity: 4, OnOffRatio: 3}, ScaleSparse},
		{"on heavy", Analysis{Complexity: 5, OnOffRatio: 1.5}, ScaleMajor},
		{"balanced", Analysis{Complexity: 6, OnOffRatio: 1}, ScaleMinor},
		{"off heavy", Analysis{Complexity: 9, OnOffRatio: 0.5}, ScaleMinor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ScaleKindFor(tc.a); got != tc.want {
				t.Fatalf("scale kind = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestChooseScaleReturnsCopy(t *testing.T) {
	s := ChooseScale(Analysis{Complexity: 1})
	s[0] = 1
	if ChooseScale(Analysis{Complexity: 1})[0] == 1 {
		t.Fatal("ChooseScale must not expose the shared scale table")
	}
}

func TestProportional(t *testing.T) {
	got := Proportional([]Segment{{On, 0.5}, {Off, 0.25}, {On, 0.25}}, 360)
	want := []float64{180, 90, 90}
	for i := range want {
		if math.Abs(got[i].Length-want[i]) > 1e-9 {
			t.Fatalf("segment %d length = %v, want %v", i, got[i].Length, want[i])
		}
	}
	if Proportional([]Segment{{Off, 0}}, 360) != nil {
		t.Fatal("zero-length pattern should scale to nil")
	}
}

func TestBuildVisualPatternLeadingOff(t *testing.T) {
	got := BuildVisualPattern([]Segment{{Off, 1}, {On, 1}}, nil, 100)
	if got != "0 50 50" {
		t.Fatalf("pattern = %q, want %q", got, "0 50 50")
	}
}

func TestBuildVisualPatternClampsTinyLengths(t *testing.T) {
	got := BuildVisualPattern([]Segment{{On, 1000}, {Off, 0.001}}, nil, 100)
	if got != "100 1" {
		t.Fatalf("pattern = %q, want %q", got, "100 1")
	}
}

func TestBuildVisualPatternIncludesLiveSegment(t *testing.T) {
	live := Segment{Kind: Off, Length: 1}
	got := BuildVisualPattern([]Segment{{On, 3}}, &live, 100)
	if got != "75 25" {
		t.Fatalf("pattern = %q, want %q", got, "75 25")
	}
	if BuildVisualPattern(nil, nil, 100) != "" {
		t.Fatal("empty pattern should render as empty string")
	}
}

func TestBuildVisualPatternSplitsSameKindNeighbours(t *testing.T) {
	got := BuildVisualPattern([]Segment{{On, 1}, {On, 1}}, nil, 10)
	if got != "5 0 5" {
		t.Fatalf("pattern = %q, want %q", got, "5 0 5")
	}
}

func TestPatternRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const extent = 360.0
	for i := 0; i < 300; i++ {
		n := 1 + rng.Intn(10)
		segs := make([]Segment, n)
		kind := Kind(rng.Intn(2))
		for j := range segs {
			segs[j] = Segment{Kind: kind, Length: 0.05 + rng.Float64()}
			kind = 1 - kind
		}
		parsed, err := ParsePattern(BuildVisualPattern(segs, nil, extent))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if len(parsed) != len(segs) {
			t.Fatalf("round trip of %v gave %d segments, want %d", segs, len(parsed), len(segs))
		}
		want := Proportional(segs, extent)
		for j := range want {
			if parsed[j].Kind != want[j].Kind {
				t.Fatalf("segment %d kind = %v, want %v", j, parsed[j].Kind, want[j].Kind)
			}
			if math.Abs(parsed[j].Length-want[j].Length) > 1 {
				t.Fatalf("segment %d length = %v, want %v ±1", j, parsed[j].Length, want[j].Length)
			}
		}
	}
}

func TestParsePatternRejectsGarbage(t *testing.T) {
	if _, err := ParsePattern("10 x 5"); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := ParsePattern("10 -5"); err == nil {
		t.Fatal("expected error for negative length")
	}
}
