package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"slowmovie/internal/services"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	VideoDir string `toml:"video_dir"`
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Display describes the panel geometry and where rendered bitmaps go.
type Display struct {
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Sink   string `toml:"sink"`
	// OutputDir receives PNG renders when Sink is "png". Defaults to
	// <state_dir>/frames.
	OutputDir string `toml:"output_dir"`
	// Command is the executable driving the panel when Sink is "command".
	Command    string `toml:"command"`
	KeepFrames bool   `toml:"keep_frames"`
}

// Playback is the default playback section. Per-video overrides in [videos]
// fall back to these values key by key.
type Playback struct {
	FrameDelay             float64  `toml:"frame_delay"`
	Increment              float64  `toml:"increment"`
	Brightness             float64  `toml:"brightness"`
	Contrast               float64  `toml:"contrast"`
	StartFrame             int64    `toml:"start_frame"`
	FrameRatePolicy        string   `toml:"frame_rate_policy"`
	Playlist               []string `toml:"playlist"`
	PinnedVideo            string   `toml:"pinned_video"`
	MaxConsecutiveFailures int      `toml:"max_consecutive_failures"`
}

// VideoOverride holds optional per-video playback parameters. Nil fields are
// inherited from the [playback] section.
type VideoOverride struct {
	FrameDelay      *float64 `toml:"frame_delay"`
	Increment       *float64 `toml:"increment"`
	Brightness      *float64 `toml:"brightness"`
	Contrast        *float64 `toml:"contrast"`
	StartFrame      *int64   `toml:"start_frame"`
	FrameRatePolicy *string  `toml:"frame_rate_policy"`
}

// State selects the persisted playback state backend.
type State struct {
	Backend string `toml:"backend"`
}

// FFmpeg names the external binaries used for probing and frame extraction.
type FFmpeg struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for slowmovie.
//
// Configuration sections by subsystem:
//   - Paths: video, state, and log directories
//   - Display: panel geometry and render sink
//   - Playback: default playback parameters and playlist
//   - Videos: per-video overrides keyed by filename
//   - State: persisted state backend
//   - FFmpeg: external binaries
//   - Logging: log format, level, and retention
type Config struct {
	Paths    Paths                    `toml:"paths"`
	Display  Display                  `toml:"display"`
	Playback Playback                 `toml:"playback"`
	Videos   map[string]VideoOverride `toml:"videos"`
	State    State                    `toml:"state"`
	FFmpeg   FFmpeg                   `toml:"ffmpeg"`
	Logging  Logging                  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/slowmovie/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. Parse and validation failures are tagged with
// services.ErrConfiguration.
func Load(path string) (*Config, string, bool, error) {
	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg, err := loadResolved(resolvedPath, exists)
	if err != nil {
		return nil, "", false, err
	}
	return cfg, resolvedPath, exists, nil
}

func loadResolved(resolvedPath string, exists bool) (*Config, error) {
	cfg := Default()

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "config", "open", resolvedPath, err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, services.Wrap(services.ErrConfiguration, "config", "parse", strings.TrimSpace(strict.String()), nil)
			}
			return nil, services.Wrap(services.ErrConfiguration, "config", "parse", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "config", "normalize", "", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "config", "validate", "", err)
	}

	return &cfg, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("slowmovie.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories. The video directory
// is deliberately not created: a missing video directory is reported by the
// playlist resolver.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StateDir, c.Paths.LogDir}
	if c.Display.Sink == SinkPNG {
		dirs = append(dirs, c.Display.OutputDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StateDBPath returns the SQLite database location for the sqlite backend.
func (c *Config) StateDBPath() string {
	return filepath.Join(c.Paths.StateDir, "playback.db")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "slowmovie.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
