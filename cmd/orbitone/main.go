package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mitchellh/go-homedir"

	"github.com/cbegin/orbitone"
	"github.com/cbegin/orbitone/internal/config"
	"github.com/cbegin/orbitone/internal/segment"
)

// Alternating on/off lengths, starting with on.
const defaultPattern = "3 1 1 1 2 2"

func main() {
	var (
		configPath = flag.String("config", "", "path to a JSON or YAML config (default ~/.config/orbitone/config.json)")
		sampleRate = flag.Int("sample-rate", 0, "output sample rate (0 = from config)")
		seconds    = flag.Float64("seconds", 8, "how long to render or play")
		outPath    = flag.String("out", "", "write the rendered loop to this WAV file")
		pattern    = flag.String("pattern", defaultPattern, "space separated on/off lengths, starting with on")
		period     = flag.Float64("period", 2, "rotation period in seconds")
		seed       = flag.Uint64("seed", 1, "random seed for the entity")
		x          = flag.Float64("x", 640, "horizontal position (drives transposition and pan)")
		y          = flag.Float64("y", 300, "vertical position (drives brightness)")
		play       = flag.Bool("play", false, "play through the audio device")
		debug      = flag.Bool("debug", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	if err := run(log, options{
		configPath: *configPath,
		sampleRate: *sampleRate,
		seconds:    *seconds,
		outPath:    *outPath,
		pattern:    *pattern,
		period:     *period,
		seed:       *seed,
		x:          *x,
		y:          *y,
		play:       *play,
	}); err != nil {
		log.Error("orbitone failed", "err", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	sampleRate int
	seconds    float64
	outPath    string
	pattern    string
	period     float64
	seed       uint64
	x, y       float64
	play       bool
}

func run(log *slog.Logger, o options) error {
	if o.outPath == "" && !o.play {
		return errors.New("nothing to do: pass -out, -play or both")
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	segs, err := segment.ParsePattern(o.pattern)
	if err != nil {
		return fmt.Errorf("invalid -pattern: %w", err)
	}

	opts := []orbitone.Option{orbitone.WithConfig(cfg), orbitone.WithLogger(log)}
	if o.sampleRate > 0 {
		opts = append(opts, orbitone.WithSampleRate(o.sampleRate))
	}

	if o.play {
		if err := playLive(log, opts, segs, o); err != nil {
			if !errors.Is(err, orbitone.ErrUnsupported) || o.outPath == "" {
				return err
			}
			log.Warn("no audio device, rendering offline only", "err", err)
		}
	}
	if o.outPath != "" {
		return renderToFile(log, opts, segs, o)
	}
	return nil
}

func newScene(opts []orbitone.Option, segs []segment.Segment, o options) (*orbitone.Engine, error) {
	e, err := orbitone.NewEngine(opts...)
	if err != nil {
		return nil, err
	}
	id := e.Place(o.x, o.y, o.seed)
	if err := e.Finalize(id, segs, o.period); err != nil {
		return nil, err
	}
	return e, nil
}

func playLive(log *slog.Logger, opts []orbitone.Option, segs []segment.Segment, o options) error {
	e, err := newScene(opts, segs, o)
	if err != nil {
		return err
	}
	ch := e.Watch()
	if err := e.Open(); err != nil {
		return err
	}
	defer e.Close()

	stop := time.After(time.Duration(o.seconds * float64(time.Second)))
	for {
		select {
		case ev := <-ch:
			fmt.Printf("note %7.2f Hz  %.3fs  intensity %.2f\n", ev.Frequency, ev.Duration, ev.Intensity)
		case <-stop:
			log.Debug("playback finished", "seconds", o.seconds)
			return nil
		}
	}
}

func renderToFile(log *slog.Logger, opts []orbitone.Option, segs []segment.Segment, o options) error {
	path, err := homedir.Expand(o.outPath)
	if err != nil {
		return err
	}
	e, err := newScene(opts, segs, o)
	if err != nil {
		return err
	}
	samples := orbitone.RenderSamples(e, o.seconds)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := orbitone.WriteWAV(f, samples, e.SampleRate()); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Info("wrote wav", "path", path, "seconds", o.seconds, "frames", len(samples)/2)
	return nil
}
