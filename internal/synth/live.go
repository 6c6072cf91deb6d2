package synth

import (
	"math"

	"github.com/cbegin/orbitone/internal/clock"
	"github.com/cbegin/orbitone/internal/dsp"
	"github.com/cbegin/orbitone/internal/lfo"
	"github.com/cbegin/orbitone/internal/melody"
	"github.com/cbegin/orbitone/internal/segment"
	"github.com/cbegin/orbitone/internal/state"
)

// liveSource renders a LiveBundle: the same harmonic stack as a note, but
// sustained, with a gentle vibrato.
type liveSource struct {
	owner      state.EntityID
	sampleRate float64
	bundle     *state.LiveBundle
	weights    []float64
	filter     *dsp.LowPass
	vibrato    *lfo.LFO
	panL, panR float64
	end        float64
}

func (s *liveSource) Owner() state.EntityID { return s.owner }

func (s *liveSource) Render(t float64) (float64, float64, bool) {
	mod := s.vibrato.Sample(s.sampleRate)
	var sum float64
	for i, osc := range s.bundle.Voices {
		if osc.Sounding(t) {
			sum += osc.Next(t, s.sampleRate, mod) * s.weights[i]
		}
	}
	y := s.filter.Process(sum) * s.bundle.Gain.Value(t)
	return y * s.panL, y * s.panR, t >= s.end
}

func (s *liveSource) Fade(now, d float64) {
	end := now + d
	if end >= s.end {
		return
	}
	fadeParam(s.bundle.Gain, now, end)
	for _, osc := range s.bundle.Voices {
		osc.Stop(end)
	}
	s.end = end
}

// StartLivePreview starts a sustained tone for rt picked from scale. An
// existing preview is stopped first, so an entity never has two sounding.
// A bundle that is still fading out is replaced on rt and finishes its fade.
func (s *Synth) StartLivePreview(rt *state.Runtime, a segment.Analysis, scale segment.Scale, pan, brightness float64) *state.LiveBundle {
	s.StopLivePreview(rt)
	if len(scale) == 0 {
		return nil
	}
	now := s.clock.Now()
	freq := clamp(scale[melody.PickLive(len(scale), rt.Float64)], s.cfg.MinFreq, s.cfg.MaxFreq)
	pan = clamp(pan, -s.cfg.PanLimit, s.cfg.PanLimit)
	cutoff := s.cfg.CutoffBase + pan*s.cfg.CutoffPanSpread + clamp(brightness, 0, 1)*s.cfg.CutoffBrightSpread
	cutoff, comp := dsp.FloorCutoff(cutoff, s.floor, s.cfg.MaxCompensation)

	gain := dsp.NewParam(0)
	err := gain.SetValueAt(0, now)
	if err == nil {
		err = gain.LinearRampTo(s.live.Gain, now+s.live.Attack)
	}
	if err != nil {
		s.log.Warn("live preview ramp rejected", "entity", rt.ID, "freq", freq, "err", err)
		gain = dsp.NewParam(s.live.Gain)
	}

	count := harmonicCount(a.Complexity)
	norm := 1 / math.Sqrt(float64(count))
	b := &state.LiveBundle{Freq: freq, Gain: gain, Start: now}
	weights := make([]float64, 0, count)
	for i := 0; i < count; i++ {
		h := float64(i + 1)
		sign := 1.0
		if rt.Float64() < 0.5 {
			sign = -1
		}
		b.Voices = append(b.Voices, dsp.NewOsc(dsp.WaveSine, freq*h, sign*5*float64(i), now))
		weights = append(weights, norm/h*comp)
	}

	sr := float64(s.sampleRate)
	l, r := dsp.EqualPower(pan)
	wave, _ := lfo.WaveByName(s.live.VibratoWave)
	vib := lfo.New(s.live.VibratoCents, s.live.VibratoHz, wave)
	vib.SetDelay(s.live.Attack)
	src := &liveSource{
		owner:      rt.ID,
		sampleRate: sr,
		bundle:     b,
		weights:    weights,
		filter:     dsp.NewLowPass(sr, cutoff),
		vibrato:    vib,
		panL:       l,
		panR:       r,
		end:        math.Inf(1),
	}
	rt.Live = b
	s.lives[b] = src
	s.bus.Add(src)
	return b
}

// StopLivePreview fades the live bundle out, then after the fade plus a
// margin disconnects it and clears it from rt. Stopping with no live bundle,
// or one already fading, is a no-op.
func (s *Synth) StopLivePreview(rt *state.Runtime) {
	b := rt.Live
	if b == nil || b.Stopping {
		return
	}
	b.Stopping = true
	src, ok := s.lives[b]
	if !ok {
		rt.Live = nil
		return
	}
	now := s.clock.Now()
	fadeParam(b.Gain, now, now+s.live.Fade)
	cleanupAt := now + s.live.Fade + s.live.CleanupMargin
	for _, osc := range b.Voices {
		osc.Stop(cleanupAt)
	}
	var id clock.ID
	id = s.clock.At(cleanupAt, func() {
		rt.Untrack(id)
		delete(s.lives, b)
		s.bus.Remove(src)
		if rt.Live == b {
			rt.Live = nil
		}
	})
	rt.Track(id)
}

// LiveSources reports how many preview sources rt still has connected,
// including ones that are fading out.
func (s *Synth) LiveSources(rt *state.Runtime) int {
	n := 0
	for _, src := range s.lives {
		if src.owner == rt.ID {
			n++
		}
	}
	return n
}
