package config

const (
	defaultWidth    = 1080
	defaultHeight   = 1920
	defaultFPS      = 24
	defaultPad      = "blur"
	defaultDetector = "onset"
	defaultMinBPM   = 60
	defaultMaxBPM   = 180
	defaultFFmpeg   = "ffmpeg"
	defaultFFprobe  = "ffprobe"
	defaultAubio    = "aubio"
	defaultLogFmt   = "console"
	defaultLogLevel = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Render: Render{
			Width:  defaultWidth,
			Height: defaultHeight,
			FPS:    defaultFPS,
			Pad:    defaultPad,
		},
		Beats: Beats{
			Detector: defaultDetector,
			MinBPM:   defaultMinBPM,
			MaxBPM:   defaultMaxBPM,
		},
		Tools: Tools{
			FFmpeg:  defaultFFmpeg,
			FFprobe: defaultFFprobe,
			Aubio:   defaultAubio,
		},
		Logging: Logging{
			Format: defaultLogFmt,
			Level:  defaultLogLevel,
		},
	}
}
