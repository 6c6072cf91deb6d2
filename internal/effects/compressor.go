package effects

import "math"

// Compressor is a stereo-linked dynamics stage. With a high ratio and a fast
// attack it behaves as a limiter.
type Compressor struct {
	threshold float64
	ratio     float64
	attack    float64 // coefficient
	release   float64 // coefficient
	makeup    float64
	env       float64
}

// NewCompressor creates a compressor effect.
// thresholdDB: threshold in dB (e.g., -20)
// ratio: compression ratio (e.g., 4 for 4:1)
// attackMs: attack time in ms
// releaseMs: release time in ms
// makeupDB: makeup gain in dB
func NewCompressor(sampleRate int, thresholdDB, ratio, attackMs, releaseMs, makeupDB float64) *Compressor {
	sr := float64(sampleRate)
	if ratio < 1 {
		ratio = 1
	}
	return &Compressor{
		threshold: math.Pow(10, thresholdDB/20),
		ratio:     ratio,
		attack:    coefficient(attackMs, sr),
		release:   coefficient(releaseMs, sr),
		makeup:    math.Pow(10, makeupDB/20),
	}
}

func coefficient(ms, sr float64) float64 {
	if ms <= 0 || sr <= 0 {
		return 1
	}
	return 1.0 - math.Exp(-1.0/(ms*sr/1000.0))
}

func (c *Compressor) Process(l, r float64) (float64, float64) {
	// Envelope follower on the louder channel so the stereo image stays put.
	peak := math.Max(math.Abs(l), math.Abs(r))
	if peak > c.env {
		c.env += c.attack * (peak - c.env)
	} else {
		c.env += c.release * (peak - c.env)
	}
	g := c.gain(c.env) * c.makeup
	return l * g, r * g
}

// GainReduction returns the current gain multiplier, 1 when idle.
func (c *Compressor) GainReduction() float64 {
	return c.gain(c.env)
}

func (c *Compressor) gain(env float64) float64 {
	if env <= c.threshold || c.threshold <= 0 {
		return 1.0
	}
	over := env / c.threshold
	return math.Pow(over, 1.0/c.ratio-1)
}

func (c *Compressor) Reset() {
	c.env = 0
}
