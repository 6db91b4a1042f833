package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeRender()
	c.normalizeBeats()
	c.normalizeTools()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeRender() {
	c.Render.Pad = strings.ToLower(strings.TrimSpace(c.Render.Pad))
	if c.Render.Pad == "" {
		c.Render.Pad = defaultPad
	}
}

func (c *Config) normalizeBeats() {
	c.Beats.Detector = strings.ToLower(strings.TrimSpace(c.Beats.Detector))
	if c.Beats.Detector == "" {
		c.Beats.Detector = defaultDetector
	}
}

func (c *Config) normalizeTools() {
	c.Tools.FFmpeg = envOr("BEATREEL_FFMPEG", c.Tools.FFmpeg, defaultFFmpeg)
	c.Tools.FFprobe = envOr("BEATREEL_FFPROBE", c.Tools.FFprobe, defaultFFprobe)
	c.Tools.Aubio = envOr("BEATREEL_AUBIO", c.Tools.Aubio, defaultAubio)
}

func (c *Config) normalizePaths() error {
	c.Paths.TempDir = envOr("BEATREEL_TEMP_DIR", c.Paths.TempDir, "")
	var err error
	if c.Paths.TempDir, err = expandPath(c.Paths.TempDir); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(envOr("BEATREEL_LOG_LEVEL", c.Logging.Level, defaultLogLevel))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFmt
	}
}

// envOr prefers a non-empty environment variable, then the file value, then def.
func envOr(key, value, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return def
}
