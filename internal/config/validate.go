package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateTimeline(); err != nil {
		return err
	}
	if err := c.validateBeats(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateRender() error {
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return fmt.Errorf("render.width and render.height must be > 0 (got %dx%d)", c.Render.Width, c.Render.Height)
	}
	if c.Render.FPS <= 0 {
		return errors.New("render.fps must be > 0")
	}
	if c.Render.Workers < 0 {
		return errors.New("render.workers must be >= 0")
	}
	switch c.Render.Pad {
	case "blur", "black":
	default:
		return fmt.Errorf("render.pad must be \"blur\" or \"black\" (got %q)", c.Render.Pad)
	}
	return nil
}

func (c *Config) validateTimeline() error {
	if c.Timeline.MinSlots < 0 {
		return errors.New("timeline.min_slots must be >= 0")
	}
	if c.Timeline.MaxSlotSeconds < 0 {
		return errors.New("timeline.max_slot_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateBeats() error {
	switch c.Beats.Detector {
	case "onset", "aubio":
	default:
		return fmt.Errorf("beats.detector must be \"onset\" or \"aubio\" (got %q)", c.Beats.Detector)
	}
	if c.Beats.MinBPM <= 0 || c.Beats.MaxBPM <= c.Beats.MinBPM {
		return fmt.Errorf("beats: need 0 < min_bpm < max_bpm (got %v, %v)", c.Beats.MinBPM, c.Beats.MaxBPM)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\" (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error (got %q)", c.Logging.Level)
	}
	return nil
}
