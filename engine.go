// Package orbitone turns recorded on/off rhythms into looping, synthesized
// tones. Hosts place entities, feed them segments, and either pull audio
// through Process or let Open drive the output device.
package orbitone

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	intaudio "github.com/cbegin/orbitone/internal/audio"
	"github.com/cbegin/orbitone/internal/clock"
	"github.com/cbegin/orbitone/internal/config"
	"github.com/cbegin/orbitone/internal/master"
	"github.com/cbegin/orbitone/internal/melody"
	"github.com/cbegin/orbitone/internal/segment"
	"github.com/cbegin/orbitone/internal/sequencer"
	"github.com/cbegin/orbitone/internal/state"
	"github.com/cbegin/orbitone/internal/synth"
)

// EntityID identifies one placed entity.
type EntityID = state.EntityID

// Segment is one recorded on/off interval.
type Segment = segment.Segment

const (
	Off = segment.Off
	On  = segment.On
)

var (
	// ErrUnsupported is returned by Open when no audio output is available.
	// The failure is remembered; later calls return it without retrying.
	ErrUnsupported = intaudio.ErrUnsupported
	// ErrUnknownEntity is returned for IDs that were never placed or have
	// been cleared.
	ErrUnknownEntity = errors.New("orbitone: unknown entity")
	// ErrAlreadyFinalized is returned when recording into, or finalizing, an
	// entity whose loop is already frozen.
	ErrAlreadyFinalized = errors.New("orbitone: entity already finalized")
)

// NoteEvent is delivered through Watch when a note becomes audible.
type NoteEvent struct {
	Entity    EntityID
	Frequency float64
	Duration  float64
	Intensity float64 // 0..1
	At        float64 // engine clock time
}

// Stats is a snapshot of one entity's runtime state.
type Stats struct {
	Phase          string
	Finalized      bool
	Live           bool
	ActiveNotes    int
	Timers         int
	ScheduledUntil float64
	Period         float64
	Segments       int
}

type Option func(*engineConfig)

type engineConfig struct {
	cfg *config.Config
	log *slog.Logger
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg *config.Config) Option {
	return func(ec *engineConfig) {
		if cfg != nil {
			c := *cfg
			ec.cfg = &c
		}
	}
}

func WithSampleRate(sampleRate int) Option {
	return func(ec *engineConfig) {
		ec.cfg.Engine.SampleRate = sampleRate
	}
}

// WithLookahead sets how far ahead of the clock loops are kept scheduled.
func WithLookahead(seconds float64) Option {
	return func(ec *engineConfig) {
		ec.cfg.Engine.LookaheadSec = seconds
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(ec *engineConfig) {
		ec.log = log
	}
}

// Engine owns the output clock, every entity and the shared output stage.
// All methods are safe for concurrent use; they serialize on one lock, so
// callbacks and host calls never interleave.
type Engine struct {
	mu     sync.Mutex
	cfg    *config.Config
	log    *slog.Logger
	clock  *clock.Timers
	store  *state.Store
	master *master.Lazy
	bus    *synth.Bus
	synth  *synth.Synth
	sched  *sequencer.Scheduler

	deviceMu sync.Mutex
	device   *intaudio.Device
	openErr  error
	closed   atomic.Bool

	eventCh   chan NoteEvent
	eventChMu sync.Mutex
}

func NewEngine(opts ...Option) (*Engine, error) {
	ec := engineConfig{cfg: config.DefaultConfig()}
	for _, opt := range opts {
		opt(&ec)
	}
	if err := ec.cfg.Validate(); err != nil {
		return nil, err
	}
	log := ec.log
	if log == nil {
		log = slog.Default()
	}
	cfg := ec.cfg
	sr := cfg.Engine.SampleRate

	e := &Engine{
		cfg:    cfg,
		log:    log,
		clock:  clock.New(sr),
		store:  state.NewStore(),
		master: master.NewLazy(sr, cfg.Master),
	}
	e.bus = synth.NewBus(e.master)
	e.synth = synth.New(cfg, e.clock, e.bus, log, e.onNote)
	e.sched = sequencer.New(e.clock, noteRenderer{e}, sequencer.Options{
		Lookahead:           cfg.Engine.LookaheadSec,
		TickInterval:        cfg.Engine.TickIntervalSec,
		StartDelay:          cfg.Engine.StartDelaySec,
		MinRotation:         cfg.Engine.MinRotationSec,
		MaxRotationsPerTick: cfg.Engine.MaxRotationsPerTick,
	}, log)
	return e, nil
}

// noteRenderer places each scheduled note in the stereo field of its entity.
type noteRenderer struct{ e *Engine }

func (r noteRenderer) RenderNote(rt *state.Runtime, p *state.Pattern, n sequencer.Note) {
	pan, bright := r.e.placement(rt)
	r.e.synth.RenderNote(rt, synth.Note{
		Freq:       n.Freq,
		Pan:        pan,
		Duration:   n.Duration,
		Brightness: bright,
		Start:      n.Start,
		Analysis:   p.Analysis,
	})
}

func (e *Engine) placement(rt *state.Runtime) (float64, float64) {
	return synth.Placement(rt.X, rt.Y, e.cfg.Engine.FieldWidth, e.cfg.Engine.FieldHeight)
}

func (e *Engine) SampleRate() int { return e.cfg.Engine.SampleRate }

// Config returns a copy of the active configuration.
func (e *Engine) Config() config.Config { return *e.cfg }

// Open starts the output device. Without one the engine still runs when
// driven through Process, so the host can fall back to visuals only.
func (e *Engine) Open() error {
	e.deviceMu.Lock()
	defer e.deviceMu.Unlock()
	if e.openErr != nil {
		return e.openErr
	}
	if e.device != nil {
		return nil
	}
	// the device buffer stays under half the lookahead
	buffer := time.Duration(e.cfg.Engine.LookaheadSec / 2 * float64(time.Second))
	d, err := intaudio.Open(e.cfg.Engine.SampleRate, buffer, e)
	if err != nil {
		e.openErr = fmt.Errorf("orbitone: open output: %w", err)
		e.log.Warn("audio output unavailable", "err", err)
		return e.openErr
	}
	e.device = d
	e.log.Debug("audio output open", "sampleRate", e.cfg.Engine.SampleRate, "buffer", buffer)
	return nil
}

// Close tears down every entity and stops the output device.
func (e *Engine) Close() error {
	e.DestroyAll()
	e.closed.Store(true)
	e.deviceMu.Lock()
	d := e.device
	e.device = nil
	e.deviceMu.Unlock()
	if d != nil {
		return d.Close()
	}
	return nil
}

// Suspend pauses the output device, and with it the engine clock. It
// reports false when no device is open.
func (e *Engine) Suspend() bool {
	e.deviceMu.Lock()
	defer e.deviceMu.Unlock()
	if e.device == nil {
		return false
	}
	e.device.Suspend()
	return true
}

// Resume restarts a suspended device.
func (e *Engine) Resume() bool {
	e.deviceMu.Lock()
	defer e.deviceMu.Unlock()
	if e.device == nil {
		return false
	}
	e.device.Resume()
	return true
}

// Playing reports whether the output device is open and running.
func (e *Engine) Playing() bool {
	e.deviceMu.Lock()
	defer e.deviceMu.Unlock()
	return e.device != nil && e.device.Running()
}

// Finished reports whether the engine was closed; the output stream ends
// then.
func (e *Engine) Finished() bool { return e.closed.Load() }

// Process renders interleaved stereo frames into dst and advances the clock
// by len(dst)/2 frames, firing every callback that falls due on the way.
func (e *Engine) Process(dst []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := 0; i+1 < len(dst); i += 2 {
		e.clock.Fire()
		l, r := e.bus.Mix(e.clock.Now())
		dst[i] = float32(l)
		dst[i+1] = float32(r)
		e.clock.Advance(1)
	}
}

// Now returns the engine clock in seconds.
func (e *Engine) Now() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.Now()
}

// Place creates an entity at (x, y). seed drives every random choice the
// entity makes, so equal seeds and patterns give equal performances.
func (e *Engine) Place(x, y float64, seed uint64) EntityID {
	e.mu.Lock()
	defer e.mu.Unlock()
	rt := e.store.Create(x, y, seed)
	e.log.Debug("entity placed", "entity", rt.ID, "x", x, "y", y)
	return rt.ID
}

// RecordSegment appends one completed interval, d seconds long, to an entity
// that is still recording. Non-positive durations are ignored.
func (e *Engine) RecordSegment(id EntityID, kind segment.Kind, d float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	rt, err := e.lookup(id)
	if err != nil {
		return err
	}
	if rt.Finalized() {
		return ErrAlreadyFinalized
	}
	if !(d > 0) || math.IsInf(d, 0) {
		return nil
	}
	rt.Recorded = append(rt.Recorded, segment.Segment{Kind: kind, Length: d})
	return nil
}

// StartLivePreview starts the sustained preview tone for a recording entity,
// voiced from the segments recorded so far.
func (e *Engine) StartLivePreview(id EntityID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	rt, err := e.lookup(id)
	if err != nil {
		return err
	}
	if rt.Finalized() {
		return ErrAlreadyFinalized
	}
	a := segment.Analyze(rt.Recorded, 0)
	scale := melody.Transpose(segment.ChooseScale(a), melody.Transposition(rt.X, e.cfg.Engine.FieldWidth))
	pan, bright := e.placement(rt)
	e.synth.StartLivePreview(rt, a, scale, pan, bright)
	return nil
}

// StopLivePreview fades the preview out. It is a no-op when none is playing.
func (e *Engine) StopLivePreview(id EntityID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	rt, err := e.lookup(id)
	if err != nil {
		return err
	}
	e.synth.StopLivePreview(rt)
	return nil
}

// Pattern returns the on/off length string used to draw the entity: the
// recorded segments plus live, the still-open one, while recording, and the
// frozen loop afterwards.
func (e *Engine) Pattern(id EntityID, live *segment.Segment) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rt, err := e.lookup(id)
	if err != nil {
		return "", err
	}
	if rt.Finalized() {
		return segment.BuildVisualPattern(rt.Pattern.Segments, nil, e.cfg.Engine.ArcExtent), nil
	}
	return segment.BuildVisualPattern(rt.Recorded, live, e.cfg.Engine.ArcExtent), nil
}

// Finalize freezes the entity's pattern and starts its loop. segs nil means
// the segments recorded so far. Degenerate patterns (no length, zero period)
// are accepted and schedule nothing.
func (e *Engine) Finalize(id EntityID, segs []segment.Segment, period float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	rt, err := e.lookup(id)
	if err != nil {
		return err
	}
	if rt.Finalized() {
		return ErrAlreadyFinalized
	}
	e.synth.StopLivePreview(rt)
	if segs == nil {
		segs = rt.Recorded
	}
	p, ok := sequencer.Freeze(segs, period, e.cfg.Engine.ArcExtent, rt.X, e.cfg.Engine.FieldWidth)
	if !ok {
		e.log.Debug("degenerate pattern, nothing to loop", "entity", id, "period", period)
		return nil
	}
	rt.Pattern = p
	rt.Recorded = nil
	if e.sched.Start(rt) {
		e.log.Info("loop started", "entity", id, "period", period, "segments", len(p.Segments))
	}
	return nil
}

// Clear halts all sound and scheduling for the entity and forgets it.
// Clearing an unknown or already cleared entity is a no-op.
func (e *Engine) Clear(id EntityID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rt, ok := e.store.Get(id); ok {
		e.teardown(rt)
	}
	return nil
}

// DestroyAll clears every entity.
func (e *Engine) DestroyAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range e.store.IDs() {
		if rt, ok := e.store.Get(id); ok {
			e.teardown(rt)
		}
	}
}

// teardown stops the tick before touching anything a tick could refill.
func (e *Engine) teardown(rt *state.Runtime) {
	e.sched.Stop(rt)
	for _, id := range rt.TakeTimers() {
		e.clock.Cancel(id)
	}
	e.synth.Silence(rt)
	e.store.Delete(rt.ID)
	e.log.Debug("entity cleared", "entity", rt.ID)
}

// Stats returns a snapshot of the entity.
func (e *Engine) Stats(id EntityID) (Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rt, err := e.lookup(id)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{
		Phase:          rt.Phase.String(),
		Finalized:      rt.Finalized(),
		Live:           rt.Live != nil,
		ActiveNotes:    len(rt.ActiveNotes),
		Timers:         len(rt.Timers()),
		ScheduledUntil: rt.ScheduledUntil,
		Segments:       len(rt.Recorded),
	}
	if rt.Pattern != nil {
		st.Period = rt.Pattern.Period
		st.Segments = len(rt.Pattern.Segments)
	}
	return st, nil
}

// Entities returns the IDs of every live entity.
func (e *Engine) Entities() []EntityID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.IDs()
}

// Feedback plays a short acknowledgement tone through the master stage.
func (e *Engine) Feedback(freq float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.synth.Feedback(freq)
}

func (e *Engine) lookup(id EntityID) (*state.Runtime, error) {
	rt, ok := e.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEntity, id)
	}
	return rt, nil
}

func (e *Engine) onNote(ev synth.Event) {
	e.sendEvent(NoteEvent{
		Entity:    ev.Entity,
		Frequency: ev.Frequency,
		Duration:  ev.Duration,
		Intensity: ev.Intensity,
		At:        ev.At,
	})
}

func (e *Engine) sendEvent(ev NoteEvent) {
	e.eventChMu.Lock()
	ch := e.eventCh
	e.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full; drop event
		}
	}
}

// Watch returns a channel that receives a NoteEvent each time a note becomes
// audible. Events are sent from inside Process; a full channel drops them.
// Only the most recent Watch channel receives events.
func (e *Engine) Watch() <-chan NoteEvent {
	ch := make(chan NoteEvent, e.cfg.Engine.EventBuffer)
	e.eventChMu.Lock()
	e.eventCh = ch
	e.eventChMu.Unlock()
	return ch
}
