package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/gofrs/flock"

	"github.com/forPelevin/beatreel/internal/domain/canvas"
	"github.com/forPelevin/beatreel/internal/logging"
	"github.com/forPelevin/beatreel/internal/ports"
	"github.com/forPelevin/beatreel/internal/ports/adapters/aubio"
	"github.com/forPelevin/beatreel/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/beatreel/internal/ports/adapters/onset"
	"github.com/forPelevin/beatreel/internal/ports/adapters/wavfile"
	"github.com/forPelevin/beatreel/internal/render"
	"github.com/forPelevin/beatreel/internal/types"
	"github.com/forPelevin/beatreel/internal/usecase"
	"github.com/forPelevin/beatreel/internal/workspace"
)

const (
	DetectorOnset = "onset"
	DetectorAubio = "aubio"
)

type Config struct {
	AudioPath  string
	ImagePaths []string

	// OutPath defaults to DefaultOutPath(AudioPath).
	OutPath string
	// ManifestPath, when set, receives a JSON description of the video.
	ManifestPath string

	Width   int
	Height  int
	FPS     int
	Pad     canvas.PadMode
	Workers int

	// MinSlots of 0 means one slot per image.
	MinSlots int
	MaxSlot  float64

	Detector string
	MinBPM   float64
	MaxBPM   float64

	FFmpegPath  string
	FFprobePath string
	AubioPath   string

	TempDir  string
	KeepTemp bool

	Logger   *slog.Logger
	Progress render.ProgressFunc
}

func (c Config) Validate() error {
	if c.AudioPath == "" {
		return errors.New("audio is empty")
	}
	if _, err := os.Stat(c.AudioPath); err != nil {
		return fmt.Errorf("stat audio: %w", err)
	}
	if len(c.ImagePaths) == 0 {
		return types.ErrEmptyImageSet
	}
	for _, p := range c.ImagePaths {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("stat image: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("image %s is a directory", p)
		}
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("canvas size must be > 0 (got %dx%d)", c.Width, c.Height)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be > 0")
	}
	if c.Pad != canvas.PadBlur && c.Pad != canvas.PadBlack {
		return fmt.Errorf("unknown pad mode %d", c.Pad)
	}
	if c.MinSlots < 0 {
		return fmt.Errorf("min slots must be >= 0")
	}
	if c.MaxSlot < 0 {
		return fmt.Errorf("max slot must be >= 0")
	}
	switch c.Detector {
	case "", DetectorOnset, DetectorAubio:
	default:
		return fmt.Errorf("unknown detector %q", c.Detector)
	}
	return nil
}

type Result struct {
	RequestID string
	OutPath   string
	Manifest  types.Manifest
}

// Plan runs everything up to slot assignment and renders nothing.
func Plan(ctx context.Context, cfg Config) (types.Plan, error) {
	if err := cfg.Validate(); err != nil {
		return types.Plan{}, err
	}
	ws, err := workspace.New(cfg.TempDir)
	if err != nil {
		return types.Plan{}, err
	}
	ws.Keep = cfg.KeepTemp
	defer ws.Close()

	logger := logging.WithRequest(loggerOf(cfg), ws.ID)
	uc := usecase.New(buildDeps(cfg, ws, logger))
	return uc.Plan(ctx, planInput(cfg))
}

// Run generates the video at cfg.OutPath. Only one run may write a given
// output at a time.
func Run(ctx context.Context, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	out := cfg.OutPath
	if out == "" {
		out = DefaultOutPath(cfg.AudioPath)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	lock := flock.New(out + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return Result{}, fmt.Errorf("acquire output lock: %w", err)
	}
	if !locked {
		return Result{}, fmt.Errorf("another run is writing %s", out)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
	}()

	ws, err := workspace.New(cfg.TempDir)
	if err != nil {
		return Result{}, err
	}
	ws.Keep = cfg.KeepTemp
	defer ws.Close()

	logger := logging.WithRequest(loggerOf(cfg), ws.ID)
	logger.Info("generating video", "audio", cfg.AudioPath, "images", len(cfg.ImagePaths), "output", out)
	if cfg.KeepTemp {
		logger.Info("keeping workspace", "dir", ws.Dir)
	}

	uc := usecase.New(buildDeps(cfg, ws, logger))
	res, err := uc.Run(ctx, usecase.Input{
		PlanInput: planInput(cfg),
		OutPath:   out,
		Workspace: ws,
	})
	if err != nil {
		return Result{}, err
	}

	if cfg.ManifestPath != "" {
		saveManifest(logger, cfg.ManifestPath, res.Manifest)
	}
	return Result{RequestID: ws.ID, OutPath: out, Manifest: res.Manifest}, nil
}

// saveManifest writes the manifest next to an already finished video. A
// failure only warns: the returned Result carries the same manifest.
func saveManifest(logger *slog.Logger, path string, m types.Manifest) bool {
	if err := writeManifest(path, m); err != nil {
		logger.Warn("write manifest failed", "path", path, "error", err)
		return false
	}
	logger.Info("manifest written", "slots", len(m.Slots), "path", path)
	return true
}

func buildDeps(cfg Config, ws *workspace.Workspace, logger *slog.Logger) usecase.Deps {
	ff := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath)

	var decoder ports.AudioDecoder = ff
	if strings.EqualFold(filepath.Ext(cfg.AudioPath), ".wav") {
		decoder = chainDecoder{decoders: []ports.AudioDecoder{wavfile.New(), ff}, logger: logger}
	}

	var detector ports.BeatDetector
	switch cfg.Detector {
	case DetectorAubio:
		detector = aubio.New(cfg.AubioPath, ws.Dir)
	default:
		detector = onset.New(cfg.MinBPM, cfg.MaxBPM)
	}

	return usecase.Deps{
		Decoder:  decoder,
		Detector: detector,
		Renderer: &render.Renderer{
			Width:    cfg.Width,
			Height:   cfg.Height,
			FPS:      cfg.FPS,
			Pad:      cfg.Pad,
			Workers:  cfg.Workers,
			Progress: cfg.Progress,
		},
		Encoder: ff,
		Prober:  ff,
		Logger:  logger,
	}
}

func planInput(cfg Config) usecase.PlanInput {
	images := make([]types.ImageRef, len(cfg.ImagePaths))
	for i, p := range cfg.ImagePaths {
		images[i] = types.ImageRef{Name: filepath.Base(p), Path: p}
	}
	minSlots := cfg.MinSlots
	if minSlots == 0 {
		minSlots = len(images)
	}
	return usecase.PlanInput{
		AudioPath: cfg.AudioPath,
		Images:    images,
		MinSlots:  minSlots,
		MaxSlot:   cfg.MaxSlot,
	}
}

func loggerOf(cfg Config) *slog.Logger {
	if cfg.Logger != nil {
		return cfg.Logger
	}
	return logging.Discard()
}

// chainDecoder returns the first successful decode. Errors from earlier
// decoders are only logged.
type chainDecoder struct {
	decoders []ports.AudioDecoder
	logger   *slog.Logger
}

func (c chainDecoder) DecodeAudio(ctx context.Context, path string) ([]float64, int, error) {
	var err error
	for i, d := range c.decoders {
		var (
			samples []float64
			rate    int
		)
		samples, rate, err = d.DecodeAudio(ctx, path)
		if err == nil {
			return samples, rate, nil
		}
		if ctx.Err() != nil {
			return nil, 0, err
		}
		if i < len(c.decoders)-1 {
			c.logger.Debug("audio decoder failed, trying next", "error", err)
		}
	}
	return nil, 0, err
}

func writeManifest(path string, m types.Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, b, 0o644)
}

// DefaultOutPath names the video after the audio file, next to the working
// directory: "Song (Live).mp3" becomes "song-live-reel.mp4".
func DefaultOutPath(audioPath string) string {
	name := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	name = normalizePathSegment(name)
	if name == "" {
		name = "beatreel"
	}
	return name + "-reel.mp4"
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// ensure adapters implement ports
var (
	_ ports.AudioDecoder     = (*ffmpeg.Adapter)(nil)
	_ ports.AudioDecoder     = (*wavfile.Adapter)(nil)
	_ ports.Encoder          = (*ffmpeg.Adapter)(nil)
	_ ports.Prober           = (*ffmpeg.Adapter)(nil)
	_ ports.BeatDetector     = (*onset.Detector)(nil)
	_ ports.BeatDetector     = (*aubio.Adapter)(nil)
	_ ports.SequenceRenderer = (*render.Renderer)(nil)
)
