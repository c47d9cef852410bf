package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/audiolibrelab/tapedeck/internal/config"
)

const toneBitDepth = 16

// Tone is a single sine pulse whose gain decays exponentially from Gain to
// Floor over Duration.
type Tone struct {
	Frequency  float64
	Duration   time.Duration
	Gain       float64
	Floor      float64
	SampleRate int
}

func ToneFromConfig(cfg config.ToneConfig) Tone {
	return Tone{
		Frequency:  cfg.Frequency,
		Duration:   cfg.Duration,
		Gain:       cfg.Gain,
		Floor:      cfg.Floor,
		SampleRate: cfg.SampleRate,
	}
}

// SampleCount is the number of mono samples in the pulse.
func (t Tone) SampleCount() int {
	return int(math.Round(t.Duration.Seconds() * float64(t.SampleRate)))
}

// Samples renders the pulse as floats in [-1, 1].
func (t Tone) Samples() []float64 {
	n := t.SampleCount()
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	ratio := t.Floor / t.Gain
	for i := range out {
		progress := float64(i) / float64(n)
		envelope := t.Gain * math.Pow(ratio, progress)
		phase := 2 * math.Pi * t.Frequency * float64(i) / float64(t.SampleRate)
		out[i] = envelope * math.Sin(phase)
	}
	return out
}

// WAV encodes the pulse as 16-bit mono PCM.
func (t Tone) WAV() ([]byte, error) {
	if t.SampleRate <= 0 || t.Duration <= 0 {
		return nil, fmt.Errorf("invalid tone: %d Hz sample rate, %s", t.SampleRate, t.Duration)
	}

	samples := t.Samples()
	maxAmp := float64(int(1)<<(toneBitDepth-1) - 1)

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  t.SampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: toneBitDepth,
	}
	for i, s := range samples {
		buf.Data[i] = int(math.Round(s * maxAmp))
	}

	w := &writeSeeker{}
	enc := wav.NewEncoder(w, t.SampleRate, toneBitDepth, 1, 1)
	if err := enc.Write(buf); err != nil {
		enc.Close()
		return nil, fmt.Errorf("failed to encode tone: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize tone: %w", err)
	}
	return w.Bytes(), nil
}

// writeSeeker is an in-memory io.WriteSeeker; the WAV encoder seeks back to
// patch chunk sizes once the data length is known.
type writeSeeker struct {
	buf []byte
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	end := w.pos + len(p)
	if end > len(w.buf) {
		if end > cap(w.buf) {
			grown := make([]byte, end, 2*end)
			copy(grown, w.buf)
			w.buf = grown
		} else {
			w.buf = w.buf[:end]
		}
	}
	copy(w.buf[w.pos:], p)
	w.pos = end
	return len(p), nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(w.pos) + offset
	case io.SeekEnd:
		abs = int64(len(w.buf)) + offset
	default:
		return 0, errors.New("writeSeeker: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("writeSeeker: negative position")
	}
	w.pos = int(abs)
	return abs, nil
}

func (w *writeSeeker) Bytes() []byte {
	return w.buf
}
