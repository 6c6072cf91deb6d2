package main

import (
	"errors"
	"flag"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/cbegin/orbitone"
	"github.com/cbegin/orbitone/internal/config"
	"github.com/cbegin/orbitone/internal/segment"
)

const (
	radius     = 70.0
	arcStepDeg = 3.0
	flashDecay = 0.9
)

var (
	bgColor    = color.RGBA{18, 18, 26, 255}
	dimColor   = color.RGBA{60, 64, 84, 255}
	arcColor   = color.RGBA{240, 200, 90, 255}
	recColor   = color.RGBA{220, 80, 80, 255}
	flashColor = color.RGBA{255, 255, 255, 255}
)

// shape is the visual side of one entity.
type shape struct {
	id   orbitone.EntityID
	x, y float64

	recording bool
	kind      segment.Kind
	recStart  time.Time
	segStart  time.Time

	period float64
	origin float64 // engine time of the first rotation
	flash  float64
}

type game struct {
	engine   *orbitone.Engine
	cfg      config.Config
	events   <-chan orbitone.NoteEvent
	log      *slog.Logger
	shapes   []*shape
	active   *shape
	nextSeed uint64
	audioOK  bool
	scratch  []float32
	status   string
}

func newGame(e *orbitone.Engine, log *slog.Logger) *game {
	g := &game{
		engine:   e,
		cfg:      e.Config(),
		events:   e.Watch(),
		log:      log,
		nextSeed: uint64(time.Now().UnixNano()),
		status:   "Hold the mouse to draw, Shift toggles sound, right click clears, C clears all, Space pauses",
	}
	if err := e.Open(); err != nil {
		if !errors.Is(err, orbitone.ErrUnsupported) {
			log.Warn("audio open failed", "err", err)
		}
		g.status = "No audio output, visuals only"
		g.scratch = make([]float32, 2*e.SampleRate()/ebiten.TPS())
	} else {
		g.audioOK = true
	}
	return g
}

func (g *game) Update() error {
	if !g.audioOK {
		// keep the engine clock moving without a device
		g.engine.Process(g.scratch)
	}
	g.pollEvents()
	g.handleInput()
	for _, s := range g.shapes {
		s.flash *= flashDecay
	}
	return nil
}

func (g *game) pollEvents() {
	for {
		select {
		case ev := <-g.events:
			for _, s := range g.shapes {
				if s.id == ev.Entity {
					s.flash = math.Max(s.flash, ev.Intensity)
				}
			}
		default:
			return
		}
	}
}

func (g *game) handleInput() {
	mx, my := ebiten.CursorPosition()
	now := time.Now()

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) && g.active == nil {
		g.nextSeed++
		s := &shape{
			id:        g.engine.Place(float64(mx), float64(my), g.nextSeed),
			x:         float64(mx),
			y:         float64(my),
			recording: true,
			kind:      segment.Off,
			recStart:  now,
			segStart:  now,
		}
		g.shapes = append(g.shapes, s)
		g.active = s
		g.engine.Feedback(660)
	}

	if s := g.active; s != nil {
		if inpututil.IsKeyJustPressed(ebiten.KeyShiftLeft) || inpututil.IsKeyJustPressed(ebiten.KeyShiftRight) {
			g.closeSegment(s, now)
			s.kind = 1 - s.kind
			if s.kind == segment.On {
				_ = g.engine.StartLivePreview(s.id)
			} else {
				_ = g.engine.StopLivePreview(s.id)
			}
		}
		if inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft) {
			g.finish(s, now)
		}
	}

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonRight) {
		if s := g.shapeAt(float64(mx), float64(my)); s != nil && s != g.active {
			g.remove(s)
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) && g.audioOK {
		if g.engine.Playing() {
			g.engine.Suspend()
		} else {
			g.engine.Resume()
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyC) && g.active == nil {
		g.engine.DestroyAll()
		g.shapes = nil
	}
}

func (g *game) closeSegment(s *shape, now time.Time) {
	d := now.Sub(s.segStart).Seconds()
	if err := g.engine.RecordSegment(s.id, s.kind, d); err != nil {
		g.log.Warn("record segment", "entity", s.id, "err", err)
	}
	s.segStart = now
}

func (g *game) finish(s *shape, now time.Time) {
	g.closeSegment(s, now)
	s.recording = false
	s.period = now.Sub(s.recStart).Seconds()
	s.origin = g.engine.Now() + g.cfg.Engine.StartDelaySec
	if err := g.engine.Finalize(s.id, nil, s.period); err != nil {
		g.log.Warn("finalize", "entity", s.id, "err", err)
	}
	g.active = nil
}

func (g *game) remove(s *shape) {
	_ = g.engine.Clear(s.id)
	for i, other := range g.shapes {
		if other == s {
			g.shapes = append(g.shapes[:i], g.shapes[i+1:]...)
			return
		}
	}
}

func (g *game) shapeAt(x, y float64) *shape {
	for i := len(g.shapes) - 1; i >= 0; i-- {
		s := g.shapes[i]
		if math.Hypot(x-s.x, y-s.y) <= radius {
			return s
		}
	}
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)
	now := g.engine.Now()
	for _, s := range g.shapes {
		g.drawShape(screen, s, now)
	}
	ebitenutil.DebugPrintAt(screen, g.status, 8, 8)
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("entities %d  clock %.2fs", len(g.shapes), now), 8, 24)
}

func (g *game) drawShape(screen *ebiten.Image, s *shape, now float64) {
	var live *segment.Segment
	if s.recording {
		live = &segment.Segment{Kind: s.kind, Length: time.Since(s.segStart).Seconds()}
	}
	pattern, err := g.engine.Pattern(s.id, live)
	if err != nil {
		return
	}
	segs, err := segment.ParsePattern(pattern)
	if err != nil {
		return
	}

	rotation := 0.0
	if !s.recording && s.period > 0 && now > s.origin {
		_, frac := math.Modf((now - s.origin) / s.period)
		rotation = frac * 360
	}

	drawArc(screen, s.x, s.y, 0, 360, dimColor)
	on := arcColor
	if s.recording {
		on = recColor
	}
	total := segment.Total(segs)
	if total <= 0 {
		return
	}
	cursor := 0.0
	for _, seg := range segs {
		span := seg.Length / total * 360
		if seg.Kind == segment.On {
			drawArc(screen, s.x, s.y, cursor+rotation, cursor+span+rotation, on)
		}
		cursor += span
	}

	if s.flash > 0.02 {
		size := 6 + 18*s.flash
		c := flashColor
		c.A = uint8(255 * math.Min(1, s.flash))
		ebitenutil.DrawRect(screen, s.x-size/2, s.y-size/2, size, size, c)
	}
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("%d", s.id), int(s.x)-3, int(s.y)+int(radius)+6)
}

// drawArc draws the circle outline between two angles in degrees, 0 at the
// top, clockwise.
func drawArc(screen *ebiten.Image, cx, cy, from, to float64, clr color.Color) {
	point := func(deg float64) (float64, float64) {
		rad := (deg - 90) * math.Pi / 180
		return cx + radius*math.Cos(rad), cy + radius*math.Sin(rad)
	}
	px, py := point(from)
	for a := from + arcStepDeg; ; a += arcStepDeg {
		if a > to {
			a = to
		}
		x, y := point(a)
		ebitenutil.DrawLine(screen, px, py, x, y, clr)
		px, py = x, y
		if a >= to {
			return
		}
	}
}

func (g *game) Layout(outsideW, outsideH int) (int, int) {
	return int(g.cfg.Engine.FieldWidth), int(g.cfg.Engine.FieldHeight)
}

func main() {
	configPath := flag.String("config", "", "path to a JSON or YAML config")
	debug := flag.Bool("debug", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("load config", "err", err)
		os.Exit(1)
	}
	e, err := orbitone.NewEngine(orbitone.WithConfig(cfg), orbitone.WithLogger(log))
	if err != nil {
		log.Error("new engine", "err", err)
		os.Exit(1)
	}
	g := newGame(e, log)
	defer e.Close()

	ebiten.SetWindowSize(int(cfg.Engine.FieldWidth), int(cfg.Engine.FieldHeight))
	ebiten.SetWindowTitle("orbitone")
	if err := ebiten.RunGame(g); err != nil {
		log.Error("run", "err", err)
	}
}
