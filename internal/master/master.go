// Package master is the shared output stage every voice is summed into:
// a fast limiter, a bounded saturator and a final trim.
package master

import (
	"sync"

	"github.com/cbegin/orbitone/internal/config"
	"github.com/cbegin/orbitone/internal/effects"
)

// Pipeline processes the summed stereo bus.
type Pipeline struct {
	limiter *effects.Compressor
	chain   *effects.Chain
}

func New(sampleRate int, cfg config.MasterConfig) *Pipeline {
	limiter := effects.NewCompressor(sampleRate, cfg.ThresholdDB, cfg.Ratio, cfg.AttackMs, cfg.ReleaseMs, 0)
	return &Pipeline{
		limiter: limiter,
		chain:   effects.NewChain(limiter, effects.NewShaper(cfg.Drive), effects.Gain(cfg.Trim)),
	}
}

func (p *Pipeline) Process(l, r float64) (float64, float64) {
	return p.chain.Process(l, r)
}

// GainReduction reports the limiter's current gain, 1 when idle.
func (p *Pipeline) GainReduction() float64 {
	return p.limiter.GainReduction()
}

func (p *Pipeline) Reset() {
	p.chain.Reset()
}

// Lazy builds the pipeline on first use and hands out the same instance
// afterwards. One Lazy belongs to one output context.
type Lazy struct {
	sampleRate int
	cfg        config.MasterConfig

	once sync.Once
	p    *Pipeline
}

func NewLazy(sampleRate int, cfg config.MasterConfig) *Lazy {
	return &Lazy{sampleRate: sampleRate, cfg: cfg}
}

func (z *Lazy) Get() *Pipeline {
	z.once.Do(func() {
		z.p = New(z.sampleRate, z.cfg)
	})
	return z.p
}

// Built reports whether Get has been called.
func (z *Lazy) Built() bool {
	return z.p != nil
}
