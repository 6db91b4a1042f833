package ports

import (
	"context"
	"time"

	"github.com/forPelevin/beatreel/internal/types"
	"github.com/forPelevin/beatreel/internal/workspace"
)

// AudioDecoder turns an audio file into mono samples in [-1, 1].
type AudioDecoder interface {
	DecodeAudio(ctx context.Context, path string) (samples []float64, sampleRate int, err error)
}

// BeatDetector is untrusted: hard failures wrap types.ErrInvalidAudio, anything
// else is treated as "no beats" by the caller.
type BeatDetector interface {
	Detect(ctx context.Context, samples []float64, sampleRate int) (types.AudioAnalysis, error)
}

type Encoder interface {
	Encode(ctx context.Context, job types.RenderJob, outPath string) error
}

type Prober interface {
	ProbeDuration(ctx context.Context, path string) (time.Duration, error)
}

// SequenceRenderer turns assigned slots into an encoder job, writing any
// intermediate files into ws.
type SequenceRenderer interface {
	Render(ctx context.Context, ws *workspace.Workspace, slots []types.RenderSlot, duration float64, audioPath string) (types.RenderJob, error)
}
