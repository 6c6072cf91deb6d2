package effects

import (
	"math"
	"testing"
)

func TestFeedbackDelayRepeatsAndDecays(t *testing.T) {
	const line = 4410 // 100ms at 44100Hz
	d := NewFeedbackDelay(44100, 100, 0.5, 8000)
	if y := d.Tick(1.0); y != 0 {
		t.Fatalf("output before the first repeat: %f", y)
	}
	// peak of each window of one delay length, the first window holding
	// the first repeat
	peaks := make([]float64, 4)
	for i := 0; i < line-1; i++ {
		d.Tick(0)
	}
	for w := range peaks {
		for i := 0; i < line; i++ {
			if v := math.Abs(d.Tick(0)); v > peaks[w] {
				peaks[w] = v
			}
		}
	}
	if peaks[0] < 0.5 {
		t.Fatalf("expected the impulse after one delay, got %f", peaks[0])
	}
	for w := 1; w < len(peaks); w++ {
		if peaks[w] >= peaks[w-1] || peaks[w] < 0.01 {
			t.Errorf("repeat %d peak %f should be quieter than %f and still audible", w, peaks[w], peaks[w-1])
		}
	}
}

func TestFeedbackDelayDecayTime(t *testing.T) {
	d := NewFeedbackDelay(48000, 90, 0.45, 3000)
	got := d.DecayTime()
	if got < 0.5 || got > 1.5 {
		t.Fatalf("decay time = %v, want between 0.5s and 1.5s", got)
	}
}

func TestShaperBounded(t *testing.T) {
	s := NewShaper(1.2)
	for _, x := range []float64{-100, -2, -0.5, 0, 0.5, 2, 100} {
		l, r := s.Process(x, x)
		if math.Abs(l) > 1 || math.Abs(r) > 1 {
			t.Fatalf("shaper(%v) = %v, escapes [-1,1]", x, l)
		}
	}
	if l, _ := s.Process(0.01, 0); math.Abs(l-0.01) > 0.001 {
		t.Errorf("small signals should pass nearly unchanged, got %v", l)
	}
}

func TestChainAppliesEffectsInOrder(t *testing.T) {
	c := NewChain(Gain(4), NewShaper(1))
	l, r := c.Process(0.5, 0.5)
	if l > 1 || math.Abs(l-math.Tanh(2)) > 1e-9 || l != r {
		t.Errorf("chain output %v %v, want tanh(2)", l, r)
	}
}

func TestCompressorReducesLoud(t *testing.T) {
	c := NewCompressor(44100, -10, 4, 1, 50, 0)
	var out float64
	for i := 0; i < 1000; i++ {
		out, _ = c.Process(1.0, 1.0)
	}
	if out >= 1.0 {
		t.Errorf("compressor should reduce loud signals, got %f", out)
	}
	if c.GainReduction() >= 1 {
		t.Errorf("gain reduction should be active")
	}
}

func TestCompressorLinksChannels(t *testing.T) {
	c := NewCompressor(44100, -20, 20, 0.5, 50, 0)
	var l, r float64
	for i := 0; i < 2000; i++ {
		l, r = c.Process(1.0, 0.1)
	}
	if math.Abs(l/r-10) > 1e-6 {
		t.Errorf("stereo balance changed: l=%v r=%v", l, r)
	}
}
