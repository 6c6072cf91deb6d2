// Package audio connects the engine to the output device through the ebiten
// audio context.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// ErrUnsupported is returned when no audio output is available.
var ErrUnsupported = errors.New("audio output unsupported")

// Renderer fills dst with interleaved stereo frames and advances its clock
// by len(dst)/2 frames.
type Renderer interface {
	Process(dst []float32)
}

// Closer is a Renderer that can end its stream. Once Finished reports true
// the next Read returns io.EOF without rendering.
type Closer interface {
	Renderer
	Finished() bool
}

// Stream turns a Renderer into the little-endian float32 byte stream the
// audio context pulls from. Non-finite samples are written as silence.
type Stream struct {
	mu     sync.Mutex
	r      Renderer
	frames []float32
}

func NewStream(r Renderer) *Stream {
	return &Stream{r: r}
}

func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.r.(Closer); ok && c.Finished() {
		return 0, io.EOF
	}
	n := len(p) / 8
	if n == 0 {
		return 0, nil
	}
	if cap(s.frames) < 2*n {
		s.frames = make([]float32, 2*n)
	}
	s.frames = s.frames[:2*n]
	s.r.Process(s.frames)
	for i, v := range s.frames {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			v = 0
		}
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(v))
	}
	return n * 8, nil
}

var (
	ctxOnce sync.Once
	ctx     *ebitaudio.Context
	ctxErr  error
	ctxRate int
)

// sharedContext returns the process-wide audio context. ebiten allows one per
// process; the first failure is cached and every later call gets it.
func sharedContext(sampleRate int) (*ebitaudio.Context, error) {
	ctxOnce.Do(func() {
		ctxRate = sampleRate
		defer func() {
			if r := recover(); r != nil {
				ctx = nil
				ctxErr = fmt.Errorf("%w: %v", ErrUnsupported, r)
			}
		}()
		ctx = ebitaudio.NewContext(sampleRate)
	})
	if ctxErr != nil {
		return nil, ctxErr
	}
	if ctxRate != sampleRate {
		return nil, fmt.Errorf("audio context runs at %d Hz, engine wants %d Hz", ctxRate, sampleRate)
	}
	return ctx, nil
}

// Device is one running output stream.
type Device struct {
	player *ebitaudio.Player
}

// Open starts pulling r through the shared context. buffer bounds the
// device's own queue; it should stay below the scheduling lookahead so notes
// are placed before the device reads them. Zero keeps ebiten's default.
func Open(sampleRate int, buffer time.Duration, r Renderer) (*Device, error) {
	c, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	pl, err := c.NewPlayerF32(NewStream(r))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if buffer > 0 {
		pl.SetBufferSize(buffer)
	}
	pl.Play()
	return &Device{player: pl}, nil
}

func (d *Device) Running() bool { return d.player.IsPlaying() }

// Suspend pauses the device. The engine clock stops with it.
func (d *Device) Suspend() { d.player.Pause() }

func (d *Device) Resume() { d.player.Play() }

func (d *Device) Close() error {
	d.player.Pause()
	return d.player.Close()
}
