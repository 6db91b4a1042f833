package cli

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/forPelevin/beatreel/internal/render"
)

// newProgress returns a progress hook and a function that must be called once
// the run is over. Terminals get one bar per stage; anything else gets debug
// log lines.
func newProgress(w io.Writer, logger *slog.Logger) (render.ProgressFunc, func()) {
	if !isTerminal(w) {
		return func(stage string, done, total int) {
			logger.Debug("progress", "stage", stage, "done", done, "total", total)
		}, func() {}
	}

	b := &stageBars{p: mpb.New(mpb.WithWidth(64), mpb.WithOutput(w)), bars: map[string]*mpb.Bar{}}
	return b.update, b.wait
}

type stageBars struct {
	mu   sync.Mutex
	p    *mpb.Progress
	bars map[string]*mpb.Bar
}

func (s *stageBars) update(stage string, done, total int) {
	if total <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	bar, ok := s.bars[stage]
	if !ok {
		bar = s.p.AddBar(int64(total),
			mpb.PrependDecorators(
				decor.Name(stage+": "),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(
				decor.Percentage(),
				decor.AverageETA(decor.ET_STYLE_GO),
			),
		)
		s.bars[stage] = bar
	}
	bar.SetCurrent(int64(done))
}

// wait aborts bars left incomplete by a failed run, then flushes.
func (s *stageBars) wait() {
	s.mu.Lock()
	for _, bar := range s.bars {
		if !bar.Completed() {
			bar.Abort(false)
		}
	}
	s.mu.Unlock()
	s.p.Wait()
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
