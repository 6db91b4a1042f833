package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"

	"github.com/forPelevin/beatreel/internal/domain/timeline"
	"github.com/forPelevin/beatreel/internal/logging"
	"github.com/forPelevin/beatreel/internal/ports"
	"github.com/forPelevin/beatreel/internal/types"
	"github.com/forPelevin/beatreel/internal/workspace"
)

type Deps struct {
	Decoder  ports.AudioDecoder
	Detector ports.BeatDetector
	Renderer ports.SequenceRenderer
	Encoder  ports.Encoder
	// Prober is optional; without it the output duration is not verified.
	Prober ports.Prober
	Logger *slog.Logger
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	return Usecase{d: d}
}

type PlanInput struct {
	AudioPath string
	Images    []types.ImageRef
	MinSlots  int
	MaxSlot   float64
}

type Input struct {
	PlanInput
	OutPath   string
	Workspace *workspace.Workspace
}

type Result struct {
	Plan     types.Plan
	Job      types.RenderJob
	Manifest types.Manifest
}

// Plan decodes the audio, detects beats and assigns images to slots. A
// detector failure other than invalid audio degrades to the even-spacing
// fallback.
func (u Usecase) Plan(ctx context.Context, in PlanInput) (types.Plan, error) {
	log := u.d.Logger
	if len(in.Images) == 0 {
		return types.Plan{}, types.ErrEmptyImageSet
	}

	samples, rate, err := u.d.Decoder.DecodeAudio(ctx, in.AudioPath)
	if err != nil {
		return types.Plan{}, err
	}
	if len(samples) == 0 || rate <= 0 {
		return types.Plan{}, fmt.Errorf("%w: %s decoded to no samples", types.ErrInvalidAudio, in.AudioPath)
	}
	duration := float64(len(samples)) / float64(rate)
	log.Debug("audio decoded", "samples", len(samples), "sample_rate", rate, "duration", duration)

	an, err := u.d.Detector.Detect(ctx, samples, rate)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return types.Plan{}, cerr
		}
		if errors.Is(err, types.ErrInvalidAudio) {
			return types.Plan{}, err
		}
		log.Warn("beat detection failed, using even slots", "error", err)
		an = types.AudioAnalysis{}
	}
	if an.Duration <= 0 || math.IsNaN(an.Duration) || math.IsInf(an.Duration, 0) {
		an.Duration = duration
	}

	slots, fallback, err := timeline.BuildPlan(an, in.MinSlots, in.MaxSlot)
	if err != nil {
		return types.Plan{}, err
	}
	rs, err := timeline.Assign(slots, in.Images)
	if err != nil {
		return types.Plan{}, err
	}
	log.Info("timeline built",
		"beats", len(an.BeatTimes),
		"slots", len(slots),
		"images", len(in.Images),
		"fallback", fallback,
		"duration", an.Duration,
	)
	return types.Plan{Analysis: an, Fallback: fallback, Slots: slots, RenderSlots: rs}, nil
}

func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	log := u.d.Logger
	if in.Workspace == nil {
		return Result{}, errors.New("workspace is required")
	}

	plan, err := u.Plan(ctx, in.PlanInput)
	if err != nil {
		return Result{}, err
	}

	job, err := u.d.Renderer.Render(ctx, in.Workspace, plan.RenderSlots, plan.Analysis.Duration, in.AudioPath)
	if err != nil {
		return Result{}, err
	}
	log.Info("canvases ready", "segments", len(job.Segments))

	if err := u.d.Encoder.Encode(ctx, job, in.OutPath); err != nil {
		return Result{}, err
	}
	log.Info("video encoded", "output", in.OutPath)
	u.verify(ctx, job, in.OutPath)

	return Result{
		Plan:     plan,
		Job:      job,
		Manifest: BuildManifest(in.AudioPath, in.OutPath, plan, job, in.Images),
	}, nil
}

// verify warns when the container duration drifts from the audio by more
// than one frame.
func (u Usecase) verify(ctx context.Context, job types.RenderJob, outPath string) {
	if u.d.Prober == nil {
		return
	}
	got, err := u.d.Prober.ProbeDuration(ctx, outPath)
	if err != nil {
		u.d.Logger.Warn("probe output failed", "error", err)
		return
	}
	tol := 1.0
	if job.FPS > 0 {
		tol = 1 / float64(job.FPS)
	}
	if drift := math.Abs(got.Seconds() - job.Duration); drift > tol {
		u.d.Logger.Warn("output duration drifts from audio",
			"want", job.Duration,
			"got", got.Seconds(),
			"drift", drift,
		)
	}
}

func BuildManifest(audioPath, outPath string, plan types.Plan, job types.RenderJob, images []types.ImageRef) types.Manifest {
	m := types.Manifest{
		Audio:    audioPath,
		Output:   outPath,
		Duration: job.Duration,
		Beats:    len(plan.Analysis.BeatTimes),
		Fallback: plan.Fallback,
		Width:    job.Width,
		Height:   job.Height,
		FPS:      job.FPS,
	}
	for i, s := range job.Segments {
		var label string
		if s.ImageIndex >= 0 && s.ImageIndex < len(images) {
			label = imageLabel(images[s.ImageIndex])
		}
		m.Slots = append(m.Slots, types.ManifestSlot{
			ID:       fmt.Sprintf("%03d", i+1),
			StartSec: s.Start,
			Duration: s.Duration,
			Image:    label,
		})
	}
	return m
}

func imageLabel(ref types.ImageRef) string {
	if ref.Name != "" {
		return ref.Name
	}
	return filepath.Base(ref.Path)
}
