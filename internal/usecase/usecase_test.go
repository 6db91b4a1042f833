package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/forPelevin/beatreel/internal/render"
	"github.com/forPelevin/beatreel/internal/types"
	"github.com/forPelevin/beatreel/internal/workspace"
)

func TestPlan_DetectorOutcomes(t *testing.T) {
	t.Parallel()

	images := testImages(2)
	cases := []struct {
		name         string
		detector     fakeDetector
		minSlots     int
		wantSlots    int
		wantFallback bool
		wantErr      error
	}{
		{
			name:      "beats used",
			detector:  fakeDetector{an: types.AudioAnalysis{BeatTimes: []float64{1, 2, 3}, Duration: 4}},
			minSlots:  2,
			wantSlots: 4,
		},
		{
			name:         "too few beats",
			detector:     fakeDetector{an: types.AudioAnalysis{BeatTimes: []float64{1}, Duration: 4}},
			minSlots:     2,
			wantSlots:    2,
			wantFallback: true,
		},
		{
			name:         "soft failure falls back",
			detector:     fakeDetector{err: types.ErrDetection},
			minSlots:     4,
			wantSlots:    4,
			wantFallback: true,
		},
		{
			name:     "invalid audio propagates",
			detector: fakeDetector{err: types.ErrInvalidAudio},
			minSlots: 2,
			wantErr:  types.ErrInvalidAudio,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			uc := New(Deps{Decoder: fakeDecoder{seconds: 4}, Detector: tc.detector})
			plan, err := uc.Plan(context.Background(), PlanInput{
				AudioPath: "song.wav",
				Images:    images,
				MinSlots:  tc.minSlots,
			})
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("plan: %v", err)
			}
			if len(plan.Slots) != tc.wantSlots || len(plan.RenderSlots) != tc.wantSlots {
				t.Fatalf("got %d slots / %d render slots, want %d", len(plan.Slots), len(plan.RenderSlots), tc.wantSlots)
			}
			if plan.Fallback != tc.wantFallback {
				t.Fatalf("fallback = %v, want %v", plan.Fallback, tc.wantFallback)
			}
			var total float64
			for _, s := range plan.Slots {
				total += s.Duration
			}
			if math.Abs(total-4) > 1e-6 {
				t.Fatalf("slots cover %v, want 4", total)
			}
		})
	}
}

func TestPlan_EmptyImageSet(t *testing.T) {
	t.Parallel()

	uc := New(Deps{Decoder: fakeDecoder{seconds: 2}, Detector: fakeDetector{}})
	_, err := uc.Plan(context.Background(), PlanInput{AudioPath: "a.wav", MinSlots: 1})
	if !errors.Is(err, types.ErrEmptyImageSet) {
		t.Fatalf("expected ErrEmptyImageSet, got %v", err)
	}
}

func TestPlan_DecoderErrorPropagates(t *testing.T) {
	t.Parallel()

	uc := New(Deps{Decoder: fakeDecoder{err: types.ErrInvalidAudio}, Detector: fakeDetector{}})
	_, err := uc.Plan(context.Background(), PlanInput{AudioPath: "a.wav", Images: testImages(1)})
	if !errors.Is(err, types.ErrInvalidAudio) {
		t.Fatalf("expected ErrInvalidAudio, got %v", err)
	}
}

func TestRun_RendersEncodesAndBuildsManifest(t *testing.T) {
	t.Parallel()

	ws, err := workspace.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()

	renderer := &fakeRenderer{}
	encoder := &fakeEncoder{}
	uc := New(Deps{
		Decoder:  fakeDecoder{seconds: 3},
		Detector: fakeDetector{an: types.AudioAnalysis{BeatTimes: []float64{1, 2}, Duration: 3}},
		Renderer: renderer,
		Encoder:  encoder,
		Prober:   fakeProber{d: 3 * time.Second},
	})

	res, err := uc.Run(context.Background(), Input{
		PlanInput: PlanInput{AudioPath: "song.wav", Images: testImages(2), MinSlots: 2},
		OutPath:   "out.mp4",
		Workspace: ws,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if renderer.duration != 3 || renderer.audio != "song.wav" || len(renderer.slots) != 3 {
		t.Fatalf("renderer called with %+v", renderer)
	}
	if encoder.out != "out.mp4" || len(encoder.job.Segments) != 3 {
		t.Fatalf("encoder called with %+v", encoder)
	}

	m := res.Manifest
	if m.Beats != 2 || m.Fallback || m.Duration != 3 || len(m.Slots) != 3 {
		t.Fatalf("unexpected manifest %+v", m)
	}
	wantImages := []string{"img-0.png", "img-1.png", "img-0.png"}
	for i, s := range m.Slots {
		if s.Image != wantImages[i] {
			t.Fatalf("slot %d image %q, want %q", i, s.Image, wantImages[i])
		}
	}
	if m.Slots[0].ID != "001" || m.Slots[2].ID != "003" {
		t.Fatalf("unexpected slot ids %+v", m.Slots)
	}
}

func TestRun_EncodeErrorPropagates(t *testing.T) {
	t.Parallel()

	ws, err := workspace.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()

	uc := New(Deps{
		Decoder:  fakeDecoder{seconds: 2},
		Detector: fakeDetector{},
		Renderer: &fakeRenderer{},
		Encoder:  &fakeEncoder{err: types.ErrEncode},
	})
	_, err = uc.Run(context.Background(), Input{
		PlanInput: PlanInput{AudioPath: "a.wav", Images: testImages(1), MinSlots: 1},
		OutPath:   "out.mp4",
		Workspace: ws,
	})
	if !errors.Is(err, types.ErrEncode) {
		t.Fatalf("expected ErrEncode, got %v", err)
	}
}

func testImages(n int) []types.ImageRef {
	out := make([]types.ImageRef, n)
	for i := range out {
		out[i] = types.ImageRef{Path: "/tmp/img-" + string(rune('0'+i)) + ".png"}
	}
	return out
}

type fakeDecoder struct {
	seconds float64
	err     error
}

func (f fakeDecoder) DecodeAudio(_ context.Context, _ string) ([]float64, int, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	const rate = 100
	return make([]float64, int(f.seconds*rate)), rate, nil
}

type fakeDetector struct {
	an  types.AudioAnalysis
	err error
}

func (f fakeDetector) Detect(_ context.Context, _ []float64, _ int) (types.AudioAnalysis, error) {
	return f.an, f.err
}

type fakeRenderer struct {
	slots    []types.RenderSlot
	duration float64
	audio    string
}

func (f *fakeRenderer) Render(
	_ context.Context,
	_ *workspace.Workspace,
	slots []types.RenderSlot,
	duration float64,
	audioPath string,
) (types.RenderJob, error) {
	f.slots, f.duration, f.audio = slots, duration, audioPath
	return types.RenderJob{
		Width:     90,
		Height:    160,
		FPS:       24,
		Duration:  duration,
		AudioPath: audioPath,
		Segments:  render.Layout(slots, map[int]string{0: "a.png", 1: "b.png"}, duration),
	}, nil
}

type fakeEncoder struct {
	job types.RenderJob
	out string
	err error
}

func (f *fakeEncoder) Encode(_ context.Context, job types.RenderJob, outPath string) error {
	f.job, f.out = job, outPath
	return f.err
}

type fakeProber struct{ d time.Duration }

func (f fakeProber) ProbeDuration(_ context.Context, _ string) (time.Duration, error) {
	return f.d, nil
}
