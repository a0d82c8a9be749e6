package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"slowmovie/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The video directory is created empty; use WithVideos to populate it.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.VideoDir = filepath.Join(base, "videos")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Display.OutputDir = filepath.Join(base, "frames")
	cfgVal.Display.Width = 16
	cfgVal.Display.Height = 8

	if err := os.MkdirAll(cfgVal.Paths.VideoDir, 0o755); err != nil {
		t.Fatalf("mkdir video dir: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithVideos writes placeholder files for each name into the video directory.
func WithVideos(names ...string) ConfigOption {
	return func(b *configBuilder) {
		for _, name := range names {
			WriteFile(b.t, filepath.Join(b.cfg.Paths.VideoDir, name), 64)
		}
	}
}

// WithPlaylist sets an explicit playlist.
func WithPlaylist(names ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Playback.Playlist = append([]string(nil), names...)
	}
}

// WithBackend selects the state store backend.
func WithBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.State.Backend = backend
	}
}

// WithPlayback applies fn to the default playback section.
func WithPlayback(fn func(*config.Playback)) ConfigOption {
	return func(b *configBuilder) {
		fn(&b.cfg.Playback)
	}
}

// WithVideoOverride registers a per-video override section.
func WithVideoOverride(video string, override config.VideoOverride) ConfigOption {
	return func(b *configBuilder) {
		if b.cfg.Videos == nil {
			b.cfg.Videos = make(map[string]config.VideoOverride)
		}
		b.cfg.Videos[video] = override
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}

// Float64 returns a pointer to v for override literals.
func Float64(v float64) *float64 { return &v }

// Int64 returns a pointer to v for override literals.
func Int64(v int64) *int64 { return &v }
