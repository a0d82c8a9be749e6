package config

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDisplay(); err != nil {
		return err
	}
	if err := validatePlaybackValues("playback", c.Playback.FrameDelay, c.Playback.Increment,
		c.Playback.Brightness, c.Playback.Contrast, c.Playback.StartFrame, c.Playback.FrameRatePolicy); err != nil {
		return err
	}
	if err := c.validateVideos(); err != nil {
		return err
	}
	if err := c.validateState(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDisplay() error {
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return fmt.Errorf("display.width and display.height must be positive (got %dx%d)", c.Display.Width, c.Display.Height)
	}
	switch c.Display.Sink {
	case SinkPNG:
	case SinkCommand:
		if c.Display.Command == "" {
			return errors.New("display.command must be set when display.sink is \"command\"")
		}
	default:
		return fmt.Errorf("display.sink: unsupported value %q (want %q or %q)", c.Display.Sink, SinkPNG, SinkCommand)
	}
	return nil
}

// validatePlaybackValues checks one resolved set of playback parameters. A zero
// or negative increment would pin playback to a single frame forever, so it is
// rejected rather than tolerated.
func validatePlaybackValues(section string, frameDelay, increment, brightness, contrast float64, startFrame int64, policy string) error {
	if !isFinite(frameDelay) || frameDelay <= 0 {
		return fmt.Errorf("%s.frame_delay must be positive seconds (got %v)", section, frameDelay)
	}
	if !isFinite(increment) || increment <= 0 {
		return fmt.Errorf("%s.increment must be positive (got %v)", section, increment)
	}
	if !isFinite(brightness) || brightness < 0 {
		return fmt.Errorf("%s.brightness must be zero or greater (got %v)", section, brightness)
	}
	if !isFinite(contrast) || contrast < 0 {
		return fmt.Errorf("%s.contrast must be zero or greater (got %v)", section, contrast)
	}
	if startFrame < 0 {
		return fmt.Errorf("%s.start_frame must be zero or greater (got %d)", section, startFrame)
	}
	switch policy {
	case FrameRateStream, FrameRateFixed:
	default:
		return fmt.Errorf("%s.frame_rate_policy: unsupported value %q (want %q or %q)", section, policy, FrameRateStream, FrameRateFixed)
	}
	return nil
}

func (c *Config) validateVideos() error {
	names := make([]string, 0, len(c.Videos))
	for name := range c.Videos {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return errors.New("videos: override section requires a filename")
		}
		if strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("videos.%q: override key must be a bare filename", name)
		}
		settings := c.PlaybackFor(name)
		section := fmt.Sprintf("videos.%q", name)
		if err := validatePlaybackValues(section, settings.FrameDelay.Seconds(), settings.Increment,
			settings.Brightness, settings.Contrast, settings.StartFrame, settings.FrameRatePolicy); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateState() error {
	switch c.State.Backend {
	case BackendSQLite, BackendFiles:
		return nil
	default:
		return fmt.Errorf("state.backend: unsupported value %q (want %q or %q)", c.State.Backend, BackendSQLite, BackendFiles)
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
