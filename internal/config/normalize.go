package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDisplay(); err != nil {
		return err
	}
	c.normalizePlayback()
	c.normalizeState()
	c.normalizeFFmpeg()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.VideoDir) == "" {
		c.Paths.VideoDir = defaultVideoDir
	}
	if c.Paths.VideoDir, err = expandPath(strings.TrimSpace(c.Paths.VideoDir)); err != nil {
		return fmt.Errorf("paths.video_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDisplay() error {
	c.Display.Sink = strings.ToLower(strings.TrimSpace(c.Display.Sink))
	if c.Display.Sink == "" {
		c.Display.Sink = defaultDisplaySink
	}
	c.Display.Command = strings.TrimSpace(c.Display.Command)
	if strings.TrimSpace(c.Display.OutputDir) == "" {
		c.Display.OutputDir = filepath.Join(c.Paths.StateDir, "frames")
	}
	var err error
	if c.Display.OutputDir, err = expandPath(strings.TrimSpace(c.Display.OutputDir)); err != nil {
		return fmt.Errorf("display.output_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePlayback() {
	c.Playback.FrameRatePolicy = normalizePolicy(c.Playback.FrameRatePolicy)
	if c.Playback.FrameRatePolicy == "" {
		c.Playback.FrameRatePolicy = defaultFrameRatePolicy
	}
	c.Playback.PinnedVideo = strings.TrimSpace(c.Playback.PinnedVideo)
	if c.Playback.MaxConsecutiveFailures <= 0 {
		c.Playback.MaxConsecutiveFailures = defaultMaxConsecutiveFailures
	}

	if len(c.Playback.Playlist) > 0 {
		entries := make([]string, 0, len(c.Playback.Playlist))
		seen := make(map[string]struct{}, len(c.Playback.Playlist))
		for _, entry := range c.Playback.Playlist {
			name := strings.TrimSpace(entry)
			if name == "" {
				continue
			}
			if _, exists := seen[name]; exists {
				continue
			}
			seen[name] = struct{}{}
			entries = append(entries, name)
		}
		c.Playback.Playlist = entries
	}

	for name, override := range c.Videos {
		if override.FrameRatePolicy != nil {
			policy := normalizePolicy(*override.FrameRatePolicy)
			override.FrameRatePolicy = &policy
			c.Videos[name] = override
		}
	}
}

func normalizePolicy(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func (c *Config) normalizeState() {
	c.State.Backend = strings.ToLower(strings.TrimSpace(c.State.Backend))
	if c.State.Backend == "" {
		c.State.Backend = defaultStateBackend
	}
}

func (c *Config) normalizeFFmpeg() {
	c.FFmpeg.FFmpegBinary = strings.TrimSpace(c.FFmpeg.FFmpegBinary)
	if c.FFmpeg.FFmpegBinary == "" {
		c.FFmpeg.FFmpegBinary = defaultFFmpegBinary
	}
	c.FFmpeg.FFprobeBinary = strings.TrimSpace(c.FFmpeg.FFprobeBinary)
	if c.FFmpeg.FFprobeBinary == "" {
		c.FFmpeg.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
