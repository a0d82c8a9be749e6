package config_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"slowmovie/internal/config"
	"slowmovie/internal/services"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantVideos := filepath.Join(tempHome, "slowmovie", "videos")
	if cfg.Paths.VideoDir != wantVideos {
		t.Fatalf("unexpected video dir: got %q want %q", cfg.Paths.VideoDir, wantVideos)
	}
	wantState := filepath.Join(tempHome, ".local", "share", "slowmovie", "state")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Display.OutputDir != filepath.Join(wantState, "frames") {
		t.Fatalf("unexpected output dir: %q", cfg.Display.OutputDir)
	}
	if cfg.Display.Width != 800 || cfg.Display.Height != 480 {
		t.Fatalf("unexpected display size %dx%d", cfg.Display.Width, cfg.Display.Height)
	}
	if cfg.State.Backend != config.BackendSQLite {
		t.Fatalf("unexpected backend %q", cfg.State.Backend)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestPlaybackDefaults(t *testing.T) {
	cfg := config.Default()
	settings := cfg.PlaybackFor("anything.mp4")
	if settings.FrameDelay != 120*time.Second {
		t.Fatalf("frame delay = %v", settings.FrameDelay)
	}
	if settings.Increment != 4 {
		t.Fatalf("increment = %v", settings.Increment)
	}
	if settings.Brightness != 1.0 || settings.Contrast != 1.0 {
		t.Fatalf("unexpected enhancement defaults: %+v", settings)
	}
	if settings.StartFrame != 0 {
		t.Fatalf("start frame = %d", settings.StartFrame)
	}
	if settings.FrameRatePolicy != config.FrameRateStream {
		t.Fatalf("policy = %q", settings.FrameRatePolicy)
	}
	if settings.Overridden {
		t.Fatal("expected no override")
	}
}

func TestPerVideoOverrideFallsBackPerKey(t *testing.T) {
	path := writeConfig(t, `
[paths]
video_dir = "/srv/videos"

[playback]
frame_delay = 60
increment = 2
brightness = 1.1
contrast = 1.3

[videos."metropolis.mp4"]
increment = 8
start_frame = 100
`)
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config to exist")
	}

	other := cfg.PlaybackFor("nosferatu.mp4")
	if other.FrameDelay != time.Minute || other.Increment != 2 || other.Brightness != 1.1 || other.Contrast != 1.3 {
		t.Fatalf("unexpected default-section settings: %+v", other)
	}

	got := cfg.PlaybackFor("metropolis.mp4")
	if !got.Overridden {
		t.Fatal("expected override flag")
	}
	if got.Increment != 8 || got.StartFrame != 100 {
		t.Fatalf("override values not applied: %+v", got)
	}
	if got.Brightness != 1.1 {
		t.Fatalf("missing brightness should fall back to playback value, got %v", got.Brightness)
	}
	if got.FrameDelay != time.Minute {
		t.Fatalf("missing frame_delay should fall back, got %v", got.FrameDelay)
	}
}

func TestPlaylistNormalization(t *testing.T) {
	path := writeConfig(t, `
[playback]
playlist = [" b.mp4", "a.mp4", "", "b.mp4"]
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"b.mp4", "a.mp4"}
	if strings.Join(cfg.Playback.Playlist, ",") != strings.Join(want, ",") {
		t.Fatalf("playlist = %v, want %v", cfg.Playback.Playlist, want)
	}
}

func TestValidationErrorsAreConfigurationErrors(t *testing.T) {
	cases := map[string]string{
		"zero increment":     "[playback]\nincrement = 0\n",
		"negative increment": "[playback]\nincrement = -1\n",
		"zero delay":         "[playback]\nframe_delay = 0\n",
		"negative contrast":  "[playback]\ncontrast = -0.5\n",
		"negative start":     "[playback]\nstart_frame = -3\n",
		"bad policy":         "[playback]\nframe_rate_policy = \"guess\"\n",
		"override increment": "[videos.\"a.mp4\"]\nincrement = 0\n",
		"bad sink":           "[display]\nsink = \"hdmi\"\n",
		"command sink":       "[display]\nsink = \"command\"\n",
		"bad size":           "[display]\nwidth = 0\n",
		"bad backend":        "[state]\nbackend = \"redis\"\n",
		"unknown key":        "[playback]\nfile = \"a.mp4\"\n",
		"malformed":          "[playback\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, body)
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, services.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Display.OutputDir = filepath.Join(base, "frames")
	cfg.Paths.VideoDir = filepath.Join(base, "videos")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir, cfg.Display.OutputDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
	if _, err := os.Stat(cfg.Paths.VideoDir); !os.IsNotExist(err) {
		t.Fatalf("video dir should not be created, stat err=%v", err)
	}
}

func TestCreateSampleLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := config.Load(target); err != nil || !exists {
		t.Fatalf("sample config should load cleanly: exists=%v err=%v", exists, err)
	}
}

func TestReloaderKeepsLastGoodSnapshot(t *testing.T) {
	path := writeConfig(t, "[playback]\nincrement = 2\n")
	initial, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	reloader := config.NewReloader(path, initial, nil)
	ctx := context.Background()

	if err := os.WriteFile(path, []byte("[playback]\nincrement = 6\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	snap, err := reloader.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Playback.Increment != 6 {
		t.Fatalf("expected reloaded increment 6, got %v", snap.Playback.Increment)
	}

	if err := os.WriteFile(path, []byte("[playback]\nincrement = 0\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	snap, err = reloader.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot after bad edit: %v", err)
	}
	if snap.Playback.Increment != 6 {
		t.Fatalf("expected last good increment 6, got %v", snap.Playback.Increment)
	}
}

func TestReloaderKeepsStartupOnlySections(t *testing.T) {
	path := writeConfig(t, "[display]\nwidth = 16\nheight = 8\n[playback]\nincrement = 2\n")
	initial, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	var logs strings.Builder
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	reloader := config.NewReloader(path, initial, logger)

	edited := "[display]\nwidth = 640\nheight = 8\n[state]\nbackend = \"files\"\n[playback]\nincrement = 6\n"
	if err := os.WriteFile(path, []byte(edited), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	for i := 0; i < 3; i++ {
		snap, err := reloader.Snapshot(context.Background())
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if snap.Display.Width != 16 || snap.State.Backend != config.BackendSQLite {
			t.Fatalf("startup sections changed: display=%+v state=%+v", snap.Display, snap.State)
		}
		if snap.Playback.Increment != 6 {
			t.Fatalf("expected playback edit to apply, got increment %v", snap.Playback.Increment)
		}
	}
	if n := strings.Count(logs.String(), "config_restart_required"); n != 1 {
		t.Fatalf("expected one restart warning, got %d in %s", n, logs.String())
	}
	if !strings.Contains(logs.String(), "display, state") {
		t.Fatalf("expected changed sections in warning, got %s", logs.String())
	}
}
