package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"testing"

	"github.com/forPelevin/beatreel/internal/types"
	"github.com/forPelevin/beatreel/internal/workspace"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	ws, err := workspace.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func TestRender_SharesCanvasForRepeatedImages(t *testing.T) {
	red := types.ImageRef{Name: "red", Data: pngBytes(t, 40, 20, color.RGBA{255, 0, 0, 255})}
	blue := types.ImageRef{Name: "blue", Data: pngBytes(t, 20, 40, color.RGBA{0, 0, 255, 255})}
	slots := []types.RenderSlot{
		{Image: red, ImageIndex: 0, Start: 0, Duration: 1},
		{Image: blue, ImageIndex: 1, Start: 1, Duration: 1},
		{Image: red, ImageIndex: 0, Start: 2, Duration: 1},
	}

	var calls []int
	r := &Renderer{Width: 18, Height: 32, FPS: 30, Workers: 2, Progress: func(stage string, done, total int) {
		if stage != StageNormalize || total != 2 {
			t.Errorf("progress %s %d/%d", stage, done, total)
		}
		calls = append(calls, done)
	}}
	job, err := r.Render(context.Background(), newWorkspace(t), slots, 3, "song.mp3")
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 3 || calls[len(calls)-1] != 2 {
		t.Fatalf("progress calls %v", calls)
	}
	if job.Width != 18 || job.Height != 32 || job.FPS != 30 || job.AudioPath != "song.mp3" || job.Duration != 3 {
		t.Fatalf("job header %+v", job)
	}
	if len(job.Segments) != 3 {
		t.Fatalf("segments %+v", job.Segments)
	}
	if job.Segments[0].CanvasPath != job.Segments[2].CanvasPath {
		t.Fatalf("repeated image got distinct canvases: %+v", job.Segments)
	}
	if job.Segments[0].CanvasPath == job.Segments[1].CanvasPath {
		t.Fatalf("distinct images share a canvas: %+v", job.Segments)
	}

	for _, s := range job.Segments[:2] {
		f, err := os.Open(s.CanvasPath)
		if err != nil {
			t.Fatal(err)
		}
		cfg, err := png.DecodeConfig(f)
		f.Close()
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Width != 18 || cfg.Height != 32 {
			t.Fatalf("canvas %s is %dx%d", s.CanvasPath, cfg.Width, cfg.Height)
		}
	}
}

func TestRender_InvalidImageFails(t *testing.T) {
	slots := []types.RenderSlot{
		{Image: types.ImageRef{Name: "junk", Data: []byte("not an image")}, Duration: 1},
	}
	r := &Renderer{Width: 18, Height: 32, FPS: 30}
	_, err := r.Render(context.Background(), newWorkspace(t), slots, 1, "a.wav")
	if !errors.Is(err, types.ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
}

func TestRender_RejectsBadInput(t *testing.T) {
	r := &Renderer{Width: 18, Height: 32, FPS: 30}
	ws := newWorkspace(t)
	if _, err := r.Render(context.Background(), ws, []types.RenderSlot{{Duration: 1}}, 0, "a.wav"); !errors.Is(err, types.ErrInvalidAudio) {
		t.Fatalf("zero duration: %v", err)
	}
	if _, err := r.Render(context.Background(), ws, nil, 1, "a.wav"); err == nil {
		t.Fatal("expected error for no slots")
	}
}

func TestLayout(t *testing.T) {
	canvases := map[int]string{0: "a.png", 1: "b.png"}
	tests := []struct {
		name     string
		durs     []float64
		duration float64
		want     []float64
	}{
		{"exact", []float64{1, 2, 1.5}, 4.5, []float64{1, 2, 1.5}},
		{"last truncated", []float64{1, 2, 3}, 4, []float64{1, 2, 1}},
		{"trailing dropped", []float64{2, 2, 2}, 4, []float64{2, 2}},
		{"last extended", []float64{1, 1}, 2.5, []float64{1, 1.5}},
		{"float noise", []float64{0.1, 0.2, 0.3}, 0.6, []float64{0.1, 0.2, 0.3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var slots []types.RenderSlot
			for i, d := range tt.durs {
				slots = append(slots, types.RenderSlot{ImageIndex: i % 2, Duration: d})
			}
			segs := Layout(slots, canvases, tt.duration)
			if len(segs) != len(tt.want) {
				t.Fatalf("got %d segments, want %d: %+v", len(segs), len(tt.want), segs)
			}
			var end float64
			for i, s := range segs {
				if s.Start != end {
					t.Fatalf("gap before segment %d: start %v, prev end %v", i, s.Start, end)
				}
				if math.Abs(s.Duration-tt.want[i]) > 1e-9 {
					t.Fatalf("segment %d duration %v, want %v", i, s.Duration, tt.want[i])
				}
				if s.CanvasPath != canvases[i%2] {
					t.Fatalf("segment %d canvas %q", i, s.CanvasPath)
				}
				end = s.Start + s.Duration
			}
			if math.Abs(end-tt.duration) > 1e-9 {
				t.Fatalf("sequence ends at %v, want %v", end, tt.duration)
			}
		})
	}
}
