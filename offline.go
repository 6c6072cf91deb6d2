package orbitone

import (
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// RenderSamples pulls seconds of interleaved stereo output from e. The clock
// advances exactly as it would on a device, so loops keep running.
func RenderSamples(e *Engine, seconds float64) []float32 {
	frames := int(float64(e.SampleRate()) * seconds)
	if frames <= 0 {
		return nil
	}
	out := make([]float32, frames*2)
	e.Process(out)
	return out
}

// WriteWAV encodes interleaved stereo samples as 16-bit PCM.
func WriteWAV(w io.WriteSeeker, samples []float32, sampleRate int) error {
	const channels = 2
	enc := wav.NewEncoder(w, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		v := float64(s)
		if math.IsNaN(v) {
			v = 0
		}
		buf.Data[i] = int(math.Round(math.Max(-1, math.Min(1, v)) * 32767))
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}
