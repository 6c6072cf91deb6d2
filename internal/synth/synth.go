// Package synth turns note requests into sources on the shared bus: finite
// harmonic notes for the loop, the sustained live preview, and short
// feedback tones.
package synth

import (
	"log/slog"
	"math"

	"github.com/cbegin/orbitone/internal/clock"
	"github.com/cbegin/orbitone/internal/config"
	"github.com/cbegin/orbitone/internal/dsp"
	"github.com/cbegin/orbitone/internal/effects"
	"github.com/cbegin/orbitone/internal/segment"
	"github.com/cbegin/orbitone/internal/state"
)

// Note is one finite note request.
type Note struct {
	Freq       float64 // Hz
	Pan        float64 // -1..1
	Duration   float64 // seconds
	Brightness float64 // 0..1
	Start      float64 // clock time
	Analysis   segment.Analysis
}

// Event is emitted when a note becomes audible.
type Event struct {
	Entity    state.EntityID
	Frequency float64
	Duration  float64
	Intensity float64
	At        float64
}

// Synth builds sources against one clock and one bus.
type Synth struct {
	cfg        config.SynthConfig
	live       config.LiveConfig
	sampleRate int
	floor      float64

	clock  *clock.Timers
	bus    *Bus
	log    *slog.Logger
	notify func(Event)

	lives map[*state.LiveBundle]*liveSource
}

// New returns a Synth. notify may be nil.
func New(cfg *config.Config, clk *clock.Timers, bus *Bus, log *slog.Logger, notify func(Event)) *Synth {
	if log == nil {
		log = slog.Default()
	}
	sr := cfg.Engine.SampleRate
	return &Synth{
		cfg:        cfg.Synth,
		live:       cfg.Live,
		sampleRate: sr,
		floor:      dsp.CutoffFloor(float64(sr), cfg.Synth.CutoffFloorRatio, cfg.Synth.CutoffFloorMin),
		clock:      clk,
		bus:        bus,
		log:        log,
		notify:     notify,
		lives:      make(map[*state.LiveBundle]*liveSource),
	}
}

// Placement derives pan and brightness from a position inside a
// width x height field.
func Placement(x, y, width, height float64) (pan, brightness float64) {
	if width > 0 {
		pan = 2*x/width - 1
	}
	if height > 0 {
		brightness = 1 - y/height
	}
	return clamp(pan, -1, 1), clamp(brightness, 0, 1)
}

// RenderNote schedules one note for rt. Every voice is registered in
// rt.ActiveNotes before the note is connected to the bus. Rejected
// automation falls back to a fixed gain with a tracked safety timer; it is
// logged, never returned.
func (s *Synth) RenderNote(rt *state.Runtime, n Note) {
	now := s.clock.Now()
	freq := clamp(n.Freq, s.cfg.MinFreq, s.cfg.MaxFreq)
	pan := clamp(n.Pan, -s.cfg.PanLimit, s.cfg.PanLimit)
	dur := n.Duration
	if math.IsNaN(dur) || dur < s.cfg.MinDuration {
		dur = s.cfg.MinDuration
	}
	bright := clamp(n.Brightness, 0, 1)
	start := n.Start
	if math.IsNaN(start) || start < now {
		start = now
	}

	cutoff := s.cfg.CutoffBase + pan*s.cfg.CutoffPanSpread + bright*s.cfg.CutoffBrightSpread
	cutoff, comp := dsp.FloorCutoff(cutoff, s.floor, s.cfg.MaxCompensation)

	attack := math.Max(s.cfg.AttackMin+n.Analysis.AvgOnLength*s.cfg.AttackScale, s.cfg.AttackMin)
	attack = math.Min(attack, dur*s.cfg.AttackMaxFraction)
	stop := start + dur + s.cfg.Release + s.cfg.StopMargin

	count := harmonicCount(n.Analysis.Complexity)
	norm := 1 / math.Sqrt(float64(count))
	src := s.newNoteSource(rt.ID, pan, cutoff, start)
	var total float64
	for i := 0; i < count; i++ {
		h := float64(i + 1)
		sign := 1.0
		if rt.Float64() < 0.5 {
			sign = -1
		}
		base := s.cfg.NoteGain * norm / h * comp
		wave := dsp.WaveSine
		if i == 0 {
			wave = dsp.WaveTriangle
		}
		osc := dsp.NewOsc(wave, freq*h, sign*5*float64(i), start)
		osc.Stop(stop)
		gain, err := envelope(base, start, attack, dur, s.cfg.Release)
		if err != nil {
			s.log.Warn("note automation rejected, using fixed gain", "entity", rt.ID, "freq", freq*h, "start", start, "err", err)
			gain = s.fixedGain(rt, base, start, start+dur+s.cfg.Release)
		}
		rt.AddNote(state.ActiveNote{Voice: osc, Gain: gain, BaseGain: base})
		src.voices = append(src.voices, voice{osc: osc, gain: gain})
		total += base
	}
	s.finish(src)
	s.bus.Add(src)

	voices := src.voices
	var ended clock.ID
	ended = s.clock.At(stop, func() {
		rt.Untrack(ended)
		for _, v := range voices {
			rt.RemoveVoice(v.osc)
		}
	})
	rt.Track(ended)

	intensity := 0.0
	if peak := s.cfg.NoteGain * math.Max(1, s.cfg.MaxCompensation); peak > 0 {
		intensity = clamp(total/peak, 0, 1)
	}
	s.emitAt(rt, Event{Entity: rt.ID, Frequency: freq, Duration: dur, Intensity: intensity, At: start})
}

func (s *Synth) newNoteSource(owner state.EntityID, pan, cutoff, start float64) *noteSource {
	sr := float64(s.sampleRate)
	l, r := dsp.EqualPower(pan)
	src := &noteSource{
		owner:      owner,
		sampleRate: sr,
		filter:     dsp.NewLowPass(sr, cutoff),
		panL:       l,
		panR:       r,
		start:      start,
		end:        math.Inf(1),
	}
	if s.cfg.TailDelayMs > 0 && s.cfg.TailSend > 0 {
		src.tail = effects.NewFeedbackDelay(s.sampleRate, s.cfg.TailDelayMs, s.cfg.TailFeedback, cutoff)
		src.tailSend = s.cfg.TailSend
		src.tailGain = dsp.NewParam(1)
	}
	return src
}

// finish fixes when the source leaves the bus: after its last voice stops,
// once the tail fade is over and the loop has decayed.
func (s *Synth) finish(src *noteSource) {
	stop := 0.0
	for _, v := range src.voices {
		stop = math.Max(stop, v.osc.StopTime())
	}
	src.end = stop
	if src.tail != nil {
		fadeEnd := stop + s.cfg.TailFade
		_ = src.tailGain.SetValueAt(1, stop)
		_ = src.tailGain.LinearRampTo(0, fadeEnd)
		src.end = math.Max(fadeEnd, stop+src.tail.DecayTime())
	}
}

// fixedGain is the fallback when envelope scheduling is rejected: the voice
// sounds at base from start and a tracked timer silences it at end.
func (s *Synth) fixedGain(rt *state.Runtime, base, start, end float64) *dsp.Param {
	g := dsp.NewParam(0)
	if err := g.SetValueAt(base, start); err != nil {
		g = dsp.NewParam(base)
	}
	var safety clock.ID
	safety = s.clock.At(end, func() {
		rt.Untrack(safety)
		fadeParam(g, s.clock.Now(), s.clock.Now()+s.cfg.TeardownFade)
	})
	rt.Track(safety)
	return g
}

func (s *Synth) emitAt(rt *state.Runtime, ev Event) {
	if s.notify == nil {
		return
	}
	var id clock.ID
	id = s.clock.At(ev.At, func() {
		rt.Untrack(id)
		s.notify(ev)
	})
	rt.Track(id)
}

// Feedback plays a short immediate tone that belongs to no entity.
func (s *Synth) Feedback(freq float64) {
	now := s.clock.Now()
	freq = clamp(freq, s.cfg.MinFreq, s.cfg.MaxFreq)
	dur := math.Max(s.cfg.MinDuration, 0.06)
	src := s.newNoteSource(0, 0, s.cfg.CutoffBase+s.cfg.CutoffBrightSpread/2, now)
	gain, err := envelope(s.cfg.NoteGain*0.6, now, s.cfg.AttackMin, dur, s.cfg.Release)
	if err != nil {
		gain = dsp.NewParam(0)
	}
	osc := dsp.NewOsc(dsp.WaveSine, freq, 0, now)
	osc.Stop(now + dur + s.cfg.Release + s.cfg.StopMargin)
	src.voices = append(src.voices, voice{osc: osc, gain: gain})
	s.finish(src)
	s.bus.Add(src)
}

// Silence tears down every sound rt owns: the live bundle, any fading
// previews, and all active notes, which are dropped from the runtime
// immediately and faded out on the bus. Calling it on a silent entity is a
// no-op.
func (s *Synth) Silence(rt *state.Runtime) {
	now := s.clock.Now()
	fade := s.cfg.TeardownFade
	rt.Live = nil
	for b, src := range s.lives {
		if src.owner == rt.ID {
			delete(s.lives, b)
		}
	}
	for _, n := range rt.TakeNotes() {
		fadeParam(n.Gain, now, now+fade)
		n.Voice.Stop(now + fade)
	}
	s.bus.FadeOwner(rt.ID, now, fade)
}
