package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/beatreel/internal/config"
	"github.com/forPelevin/beatreel/internal/domain/canvas"
	"github.com/forPelevin/beatreel/internal/logging"
	"github.com/forPelevin/beatreel/internal/pipeline"
)

func run(cmd *cobra.Command, args []string) error {
	cfg, logger, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	cfg.OutPath, _ = cmd.Flags().GetString("out")
	cfg.ManifestPath, _ = cmd.Flags().GetString("manifest")
	cfg.KeepTemp, _ = cmd.Flags().GetBool("keep-temp")

	progress, wait := newProgress(cmd.ErrOrStderr(), logger)
	cfg.Progress = progress

	ctx, cancel := commandContext(cmd)
	defer cancel()

	res, err := pipeline.Run(ctx, cfg)
	wait()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d slots, %.2fs)\n", res.OutPath, len(res.Manifest.Slots), res.Manifest.Duration)
	return nil
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	ctx, cancel := context.WithTimeout(ctx, time.Hour)
	return ctx, func() {
		cancel()
		stop()
	}
}

// resolveConfig layers defaults, the config file, the environment and then
// explicitly set flags into a pipeline config.
func resolveConfig(cmd *cobra.Command, args []string) (pipeline.Config, *slog.Logger, error) {
	f := cmd.Flags()
	cfgPath, _ := f.GetString("config")
	fc, _, _, err := config.Load(cfgPath)
	if err != nil {
		return pipeline.Config{}, nil, fmt.Errorf("config: %w", err)
	}

	if f.Changed("pad") {
		v, _ := f.GetString("pad")
		fc.Render.Pad = strings.ToLower(strings.TrimSpace(v))
	}
	if f.Changed("fps") {
		fc.Render.FPS, _ = f.GetInt("fps")
	}
	if f.Changed("workers") {
		fc.Render.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("max-slot") {
		fc.Timeline.MaxSlotSeconds, _ = f.GetFloat64("max-slot")
	}
	if f.Changed("min-slots") {
		fc.Timeline.MinSlots, _ = f.GetInt("min-slots")
	}
	if f.Changed("detector") {
		v, _ := f.GetString("detector")
		fc.Beats.Detector = strings.ToLower(strings.TrimSpace(v))
	}
	if f.Changed("log-level") {
		v, _ := f.GetString("log-level")
		fc.Logging.Level = strings.ToLower(strings.TrimSpace(v))
	}
	if f.Changed("log-format") {
		v, _ := f.GetString("log-format")
		fc.Logging.Format = strings.ToLower(strings.TrimSpace(v))
	}
	if err := fc.Validate(); err != nil {
		return pipeline.Config{}, nil, fmt.Errorf("config: %w", err)
	}

	logger, err := logging.New(logging.Options{
		Level:  fc.Logging.Level,
		Format: fc.Logging.Format,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return pipeline.Config{}, nil, err
	}

	pad, err := canvas.ParsePadMode(fc.Render.Pad)
	if err != nil {
		return pipeline.Config{}, nil, err
	}

	audio, err := filepath.Abs(args[0])
	if err != nil {
		return pipeline.Config{}, nil, err
	}
	images, err := expandImages(args[1:])
	if err != nil {
		return pipeline.Config{}, nil, err
	}

	cfg := pipeline.Config{
		AudioPath:   audio,
		ImagePaths:  images,
		Width:       fc.Render.Width,
		Height:      fc.Render.Height,
		FPS:         fc.Render.FPS,
		Pad:         pad,
		Workers:     fc.Render.Workers,
		MinSlots:    fc.Timeline.MinSlots,
		MaxSlot:     fc.Timeline.MaxSlotSeconds,
		Detector:    fc.Beats.Detector,
		MinBPM:      fc.Beats.MinBPM,
		MaxBPM:      fc.Beats.MaxBPM,
		FFmpegPath:  fc.Tools.FFmpeg,
		FFprobePath: fc.Tools.FFprobe,
		AubioPath:   fc.Tools.Aubio,
		TempDir:     fc.Paths.TempDir,
		Logger:      logger,
	}
	if err := cfg.Validate(); err != nil {
		return pipeline.Config{}, nil, fmt.Errorf("config: %w", err)
	}
	return cfg, logger, nil
}

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// expandImages keeps files in argument order and replaces each directory with
// its image files sorted by name. Hidden files are skipped.
func expandImages(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("image %s: %w", arg, err)
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("read image dir: %w", err)
		}
		var found []string
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || strings.HasPrefix(name, ".") {
				continue
			}
			if imageExts[strings.ToLower(filepath.Ext(name))] {
				found = append(found, filepath.Join(arg, name))
			}
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("no images in %s", arg)
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out, nil
}
