package config

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Reloader re-reads a configuration file on demand and remembers the last
// snapshot that loaded cleanly. The playback loop calls Snapshot once per tick
// so operators can edit the file while the device runs unattended.
//
// Sections that size or wire long-lived components (display, state backend,
// ffmpeg binaries, state and log directories, logging) are fixed at startup.
// Reloaded snapshots carry the startup values for them and edits are reported
// as needing a restart.
type Reloader struct {
	path    string
	logger  *slog.Logger
	startup Config

	mu            sync.Mutex
	current       *Config
	lastErr       string
	lastPinnedMsg string
}

// NewReloader constructs a Reloader seeded with an already validated config.
// An empty path disables reloading and always returns initial.
func NewReloader(path string, initial *Config, logger *slog.Logger) *Reloader {
	r := &Reloader{path: path, logger: logger, current: initial}
	if initial != nil {
		r.startup = *initial
	}
	return r
}

// Snapshot returns a freshly loaded config, or the last good one when the file
// no longer parses or validates. A broken edit is logged once per distinct
// error rather than on every tick.
func (r *Reloader) Snapshot(ctx context.Context) (*Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.path == "" {
		return r.current, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resolved, exists, err := resolveConfigPath(r.path)
	if err == nil {
		var cfg *Config
		cfg, err = loadResolved(resolved, exists)
		if err == nil {
			if r.lastErr != "" && r.logger != nil {
				r.logger.Info("configuration reload recovered",
					slog.String("config_path", resolved),
					slog.String("event_type", "config_reload_recovered"),
				)
			}
			r.lastErr = ""
			if r.current == nil {
				r.startup = *cfg
			} else {
				r.pinStartupSections(cfg)
			}
			r.current = cfg
			return cfg, nil
		}
	}

	if r.current == nil {
		return nil, err
	}
	if msg := err.Error(); msg != r.lastErr {
		r.lastErr = msg
		if r.logger != nil {
			r.logger.Warn("configuration reload failed; keeping previous settings",
				slog.String("config_path", r.path),
				slog.Any("error", err),
				slog.String("event_type", "config_reload_failed"),
				slog.String("error_hint", "fix the configuration file; run 'slowmovie config validate'"),
				slog.String("impact", "edits are ignored until the file is valid"),
			)
		}
	}
	return r.current, nil
}

// pinStartupSections restores restart-only sections in cfg from the startup
// config and warns once per distinct set of ignored edits.
func (r *Reloader) pinStartupSections(cfg *Config) {
	var changed []string
	if cfg.Display != r.startup.Display {
		changed = append(changed, "display")
		cfg.Display = r.startup.Display
	}
	if cfg.State != r.startup.State {
		changed = append(changed, "state")
		cfg.State = r.startup.State
	}
	if cfg.FFmpeg != r.startup.FFmpeg {
		changed = append(changed, "ffmpeg")
		cfg.FFmpeg = r.startup.FFmpeg
	}
	if cfg.Logging != r.startup.Logging {
		changed = append(changed, "logging")
		cfg.Logging = r.startup.Logging
	}
	if cfg.Paths.StateDir != r.startup.Paths.StateDir || cfg.Paths.LogDir != r.startup.Paths.LogDir {
		changed = append(changed, "paths.state_dir/paths.log_dir")
		cfg.Paths.StateDir = r.startup.Paths.StateDir
		cfg.Paths.LogDir = r.startup.Paths.LogDir
	}

	msg := strings.Join(changed, ", ")
	if msg == r.lastPinnedMsg {
		return
	}
	r.lastPinnedMsg = msg
	if msg == "" || r.logger == nil {
		return
	}
	r.logger.Warn("configuration edit requires a restart; keeping startup values",
		slog.String("config_path", r.path),
		slog.String("sections", msg),
		slog.String("event_type", "config_restart_required"),
		slog.String("error_hint", "restart slowmovie to apply these sections"),
		slog.String("impact", "playback continues with the startup values"),
	)
}
