package orbitone

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/cbegin/orbitone/internal/config"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	base := []Option{
		WithSampleRate(8000),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	e, err := NewEngine(append(base, opts...)...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func drain(ch <-chan NoteEvent) []NoteEvent {
	var out []NoteEvent
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestSingleOnSegmentLoopsTonic(t *testing.T) {
	e := newTestEngine(t)
	events := e.Watch()
	id := e.Place(640, 400, 1)
	if err := e.Finalize(id, []Segment{{Kind: On, Length: 0.5}}, 0.5); err != nil {
		t.Fatal(err)
	}
	RenderSamples(e, 2)
	got := drain(events)
	if len(got) != 4 {
		t.Fatalf("events = %d, want one per rotation (4)", len(got))
	}
	for i, ev := range got {
		if ev.Entity != id || math.Abs(ev.Frequency-261.63) > 1e-9 || math.Abs(ev.Duration-0.5) > 1e-9 {
			t.Fatalf("event %d = %+v", i, ev)
		}
		want := 0.05 + 0.5*float64(i)
		if math.Abs(ev.At-want) > 1e-9 {
			t.Fatalf("event %d at %v, want %v", i, ev.At, want)
		}
	}
}

func TestTwoOnSegmentsPerRotation(t *testing.T) {
	e := newTestEngine(t)
	events := e.Watch()
	id := e.Place(640, 400, 1)
	segs := []Segment{{On, 100}, {Off, 50}, {On, 100}, {Off, 50}}
	if err := e.Finalize(id, segs, 0.6); err != nil {
		t.Fatal(err)
	}
	RenderSamples(e, 0.6)
	got := drain(events)
	if len(got) != 2 {
		t.Fatalf("events in first rotation = %d, want 2", len(got))
	}
	for _, ev := range got {
		if math.Abs(ev.Duration-0.2) > 1e-9 {
			t.Fatalf("duration = %v, want 0.2", ev.Duration)
		}
	}
}

func TestOffOnlyPatternRotatesSilently(t *testing.T) {
	e := newTestEngine(t)
	events := e.Watch()
	id := e.Place(10, 10, 1)
	if err := e.Finalize(id, []Segment{{Off, 1}}, 0.4); err != nil {
		t.Fatal(err)
	}
	out := RenderSamples(e, 1)
	if n := len(drain(events)); n != 0 {
		t.Fatalf("silent pattern emitted %d notes", n)
	}
	for _, s := range out {
		if s != 0 {
			t.Fatal("silent pattern produced sound")
		}
	}
	st, _ := e.Stats(id)
	if st.Phase != "scheduled" || st.ScheduledUntil < e.Now() {
		t.Fatalf("stats = %+v", st)
	}
}

func TestWatermarkNeverBehindClock(t *testing.T) {
	e := newTestEngine(t)
	id := e.Place(200, 200, 5)
	if err := e.Finalize(id, []Segment{{On, 0.1}, {Off, 0.2}, {On, 0.3}}, 0.35); err != nil {
		t.Fatal(err)
	}
	prev := 0.0
	buf := make([]float32, 2*40)
	for i := 0; i < 400; i++ {
		e.Process(buf)
		st, err := e.Stats(id)
		if err != nil {
			t.Fatal(err)
		}
		if st.ScheduledUntil < prev || st.ScheduledUntil < e.Now() {
			t.Fatalf("watermark %v (prev %v) at %v", st.ScheduledUntil, prev, e.Now())
		}
		prev = st.ScheduledUntil
	}
}

func TestClearIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	id := e.Place(300, 300, 2)
	if err := e.Finalize(id, []Segment{{On, 1}, {Off, 1}, {On, 2}}, 0.4); err != nil {
		t.Fatal(err)
	}
	RenderSamples(e, 0.3)
	if st, _ := e.Stats(id); st.ActiveNotes == 0 {
		t.Fatal("expected sounding notes before clear")
	}
	if err := e.Clear(id); err != nil {
		t.Fatal(err)
	}
	if err := e.Clear(id); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if _, err := e.Stats(id); !errors.Is(err, ErrUnknownEntity) {
		t.Fatalf("stats after clear: %v", err)
	}
	if n := e.clock.Pending(); n != 0 {
		t.Fatalf("pending timers after clear = %d", n)
	}
	RenderSamples(e, 0.05)
	if n := e.bus.Owned(id); n != 0 {
		t.Fatalf("sources still connected after clear = %d", n)
	}
}

func TestClearStopsFurtherRotations(t *testing.T) {
	e := newTestEngine(t)
	events := e.Watch()
	keep := e.Place(100, 100, 1)
	gone := e.Place(900, 100, 2)
	for _, id := range []EntityID{keep, gone} {
		if err := e.Finalize(id, []Segment{{On, 1}, {Off, 1}}, 0.25); err != nil {
			t.Fatal(err)
		}
	}
	RenderSamples(e, 0.4)
	drain(events)
	_ = e.Clear(gone)
	RenderSamples(e, 2)
	var kept int
	for _, ev := range drain(events) {
		if ev.Entity == gone {
			t.Fatalf("cleared entity still emitting: %+v", ev)
		}
		kept++
	}
	if kept == 0 {
		t.Fatal("clearing one entity silenced the other")
	}
}

func TestDestroyAll(t *testing.T) {
	e := newTestEngine(t)
	for i := 0; i < 3; i++ {
		id := e.Place(float64(i*300), 100, uint64(i))
		_ = e.Finalize(id, []Segment{{On, 1}}, 0.3)
	}
	live := e.Place(50, 50, 9)
	_ = e.RecordSegment(live, On, 0.2)
	_ = e.StartLivePreview(live)
	RenderSamples(e, 0.2)
	e.DestroyAll()
	e.DestroyAll()
	if len(e.Entities()) != 0 || e.clock.Pending() != 0 {
		t.Fatalf("entities %v pending %d", e.Entities(), e.clock.Pending())
	}
	RenderSamples(e, 0.05)
	if e.bus.Len() != 0 {
		t.Fatalf("bus still has %d sources", e.bus.Len())
	}
}

func TestLivePreview(t *testing.T) {
	e := newTestEngine(t)
	id := e.Place(400, 200, 4)
	if err := e.StopLivePreview(id); err != nil {
		t.Fatalf("stop without preview: %v", err)
	}
	if err := e.StartLivePreview(id); err != nil {
		t.Fatal(err)
	}
	out := RenderSamples(e, 0.2)
	if peak(out) == 0 {
		t.Fatal("live preview silent")
	}
	_ = e.RecordSegment(id, On, 0.2)
	_ = e.StopLivePreview(id)
	_ = e.StopLivePreview(id)
	st, _ := e.Stats(id)
	if !st.Live || st.Segments != 1 || st.Timers != 1 {
		t.Fatalf("stats while fading = %+v", st)
	}
	RenderSamples(e, 0.3)
	if st, _ := e.Stats(id); st.Timers != 0 || st.Live {
		t.Fatalf("stats after cleanup = %+v", st)
	}
	if e.bus.Len() != 0 {
		t.Fatal("preview still on the bus")
	}
}

func TestFinalizeStopsLivePreview(t *testing.T) {
	e := newTestEngine(t)
	id := e.Place(400, 200, 4)
	_ = e.StartLivePreview(id)
	_ = e.RecordSegment(id, On, 0.3)
	_ = e.RecordSegment(id, Off, 0.2)
	if err := e.Finalize(id, nil, 0.5); err != nil {
		t.Fatal(err)
	}
	st, _ := e.Stats(id)
	if !st.Finalized || st.Segments != 2 || st.Period != 0.5 {
		t.Fatalf("stats = %+v", st)
	}
	RenderSamples(e, 0.3)
	if st, _ := e.Stats(id); st.Live {
		t.Fatal("live preview still attached after its fade")
	}
}

func TestEntityErrors(t *testing.T) {
	e := newTestEngine(t)
	if err := e.RecordSegment(99, On, 1); !errors.Is(err, ErrUnknownEntity) {
		t.Fatalf("unknown entity: %v", err)
	}
	id := e.Place(0, 0, 1)
	if err := e.Finalize(id, []Segment{{On, 1}}, 1); err != nil {
		t.Fatal(err)
	}
	if err := e.Finalize(id, []Segment{{On, 1}}, 1); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("second finalize: %v", err)
	}
	if err := e.RecordSegment(id, On, 1); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("record after finalize: %v", err)
	}
}

func TestDegenerateFinalizeIsNoop(t *testing.T) {
	e := newTestEngine(t)
	cases := []struct {
		name   string
		segs   []Segment
		period float64
	}{
		{"no segments", []Segment{}, 1},
		{"zero lengths", []Segment{{On, 0}}, 1},
		{"zero period", []Segment{{On, 1}}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id := e.Place(0, 0, 1)
			if err := e.Finalize(id, tc.segs, tc.period); err != nil {
				t.Fatalf("err = %v", err)
			}
			st, _ := e.Stats(id)
			if st.Phase != "idle" || st.Finalized {
				t.Fatalf("stats = %+v", st)
			}
		})
	}
	if e.clock.Pending() != 0 {
		t.Fatal("degenerate input scheduled timers")
	}
}

func TestPatternDescriptor(t *testing.T) {
	e := newTestEngine(t)
	id := e.Place(0, 0, 1)
	_ = e.RecordSegment(id, Off, 1)
	_ = e.RecordSegment(id, On, 1)
	got, err := e.Pattern(id, &Segment{Kind: Off, Length: 2})
	if err != nil {
		t.Fatal(err)
	}
	if got != "0 90 90 180" {
		t.Fatalf("recording pattern = %q", got)
	}
	_ = e.Finalize(id, nil, 1)
	got, _ = e.Pattern(id, nil)
	if got != "0 180 180" {
		t.Fatalf("finalized pattern = %q", got)
	}
}

func TestMixStaysBounded(t *testing.T) {
	e := newTestEngine(t)
	for i := 0; i < 8; i++ {
		id := e.Place(float64(i*160), float64(i*100), uint64(i))
		_ = e.Finalize(id, []Segment{{On, 0.3}, {Off, 0.05}, {On, 0.1}, {Off, 0.05}, {On, 0.2}}, 0.5)
	}
	e.Feedback(880)
	out := RenderSamples(e, 1.5)
	p := peak(out)
	if p == 0 || p > 1 {
		t.Fatalf("peak = %v", p)
	}
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Engine.TickIntervalSec = cfg.Engine.LookaheadSec * 2
	if _, err := NewEngine(WithConfig(cfg)); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("err = %v, want config.ErrInvalid", err)
	}
	if _, err := NewEngine(WithLookahead(-1)); err == nil {
		t.Fatal("negative lookahead accepted")
	}
}

func peak(samples []float32) float64 {
	p := 0.0
	for _, s := range samples {
		p = math.Max(p, math.Abs(float64(s)))
	}
	return p
}

func TestDeviceControlsWithoutDevice(t *testing.T) {
	e := newTestEngine(t)
	if e.Suspend() || e.Resume() || e.Playing() {
		t.Fatal("device controls reported success with no device open")
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if !e.Finished() {
		t.Fatal("closed engine not finished")
	}
}
