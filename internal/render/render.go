package render

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/forPelevin/beatreel/internal/domain/canvas"
	"github.com/forPelevin/beatreel/internal/types"
	"github.com/forPelevin/beatreel/internal/workspace"
)

const StageNormalize = "normalize"

// ProgressFunc receives stage progress. It may be called from several
// goroutines, but never concurrently.
type ProgressFunc func(stage string, done, total int)

type Renderer struct {
	Width   int
	Height  int
	FPS     int
	Pad     canvas.PadMode
	Workers int

	Progress ProgressFunc
}

// Render normalizes every image the slots use, lays the slots out as a
// gapless sequence ending exactly at duration, and returns the encoder job.
func (r *Renderer) Render(
	ctx context.Context,
	ws *workspace.Workspace,
	slots []types.RenderSlot,
	duration float64,
	audioPath string,
) (types.RenderJob, error) {
	if duration <= 0 {
		return types.RenderJob{}, fmt.Errorf("%w: duration %v", types.ErrInvalidAudio, duration)
	}
	if len(slots) == 0 {
		return types.RenderJob{}, errors.New("render: no slots")
	}

	canvases, err := r.normalizeAll(ctx, ws, slots)
	if err != nil {
		return types.RenderJob{}, err
	}
	return types.RenderJob{
		Width:     r.Width,
		Height:    r.Height,
		FPS:       r.FPS,
		Duration:  duration,
		AudioPath: audioPath,
		Segments:  Layout(slots, canvases, duration),
	}, nil
}

// normalizeAll writes one canvas per distinct image. A repeated image would
// normalize to identical pixels, so its slots share the file.
func (r *Renderer) normalizeAll(ctx context.Context, ws *workspace.Workspace, slots []types.RenderSlot) (map[int]string, error) {
	var order []types.RenderSlot
	seen := make(map[int]bool)
	for _, s := range slots {
		if !seen[s.ImageIndex] {
			seen[s.ImageIndex] = true
			order = append(order, s)
		}
	}

	paths := make([]string, len(order))
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var (
		mu   sync.Mutex
		done int
	)
	r.report(StageNormalize, 0, len(order))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, s := range order {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, err := canvas.NormalizeRef(s.Image, r.Width, r.Height, r.Pad)
			if err != nil {
				return err
			}
			p := ws.Path(fmt.Sprintf("canvas-%04d.png", s.ImageIndex))
			if err := canvas.WriteFile(p, c); err != nil {
				return err
			}
			paths[i] = p

			mu.Lock()
			done++
			r.report(StageNormalize, done, len(order))
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[int]string, len(order))
	for i, s := range order {
		out[s.ImageIndex] = paths[i]
	}
	return out, nil
}

func (r *Renderer) report(stage string, done, total int) {
	if r.Progress != nil {
		r.Progress(stage, done, total)
	}
}

// Layout chains slots back to back from 0. Segments starting at or after
// duration are dropped; the last segment is cut or stretched to end on it.
func Layout(slots []types.RenderSlot, canvases map[int]string, duration float64) []types.Segment {
	segs := make([]types.Segment, 0, len(slots))
	start := 0.0
	for _, s := range slots {
		if start >= duration {
			break
		}
		d := s.Duration
		if start+d > duration {
			d = duration - start
		}
		if d <= 0 {
			continue
		}
		segs = append(segs, types.Segment{
			ImageIndex: s.ImageIndex,
			CanvasPath: canvases[s.ImageIndex],
			Start:      start,
			Duration:   d,
		})
		start += d
	}
	if n := len(segs); n > 0 {
		segs[n-1].Duration = duration - segs[n-1].Start
	}
	return segs
}
