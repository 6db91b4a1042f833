package wavfile

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/forPelevin/beatreel/internal/types"
)

// Adapter decodes PCM WAV files natively, without spawning ffmpeg.
type Adapter struct{}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) DecodeAudio(_ context.Context, path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", types.ErrInvalidAudio, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: %s is not a PCM WAV file", types.ErrInvalidAudio, path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read wav %s: %w", types.ErrInvalidAudio, path, err)
	}
	if buf == nil || buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, 0, fmt.Errorf("%w: wav %s has no format", types.ErrInvalidAudio, path)
	}

	samples := Downmix(buf.Data, buf.Format.NumChannels, int(dec.BitDepth))
	if len(samples) == 0 {
		return nil, 0, fmt.Errorf("%w: wav %s has no samples", types.ErrInvalidAudio, path)
	}
	return samples, buf.Format.SampleRate, nil
}

// Downmix averages interleaved integer PCM into mono floats in [-1, 1].
func Downmix(data []int, channels, bitDepth int) []float64 {
	if channels < 1 {
		channels = 1
	}
	scale := float64(audio.IntMaxSignedValue(bitDepth))
	if scale <= 0 {
		scale = math.MaxInt16
	}
	frames := len(data) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(data[i*channels+c])
		}
		out[i] = sum / float64(channels) / scale
	}
	return out
}

// Write stores mono samples as 16-bit PCM.
func Write(path string, samples []float64, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)

	data := make([]int, len(samples))
	for i, s := range samples {
		s = math.Max(-1, math.Min(1, s))
		data[i] = int(math.Round(s * math.MaxInt16))
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("write wav %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finalize wav %s: %w", path, err)
	}
	return f.Close()
}
