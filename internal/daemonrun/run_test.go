package daemonrun

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"slowmovie/internal/config"
	"slowmovie/internal/services"
	"slowmovie/internal/state"
	"slowmovie/internal/testsupport"
)

func testOptions(t *testing.T, extractor *testsupport.FakeExtractor, sink *testsupport.RecordingSink, ticks uint64) Options {
	t.Helper()
	return Options{
		MaxTicks:  ticks,
		Extractor: extractor,
		Sink:      sink,
		Sleeper:   &testsupport.FakeSleeper{Clock: testsupport.NewFakeClock(time.Now())},
		Stdout:    filepath.Join(t.TempDir(), "console.log"),
	}
}

func TestRunPlaysAndPersists(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithVideos("a.mp4", "b.mp4"))
	sink := &testsupport.RecordingSink{}
	opts := testOptions(t, testsupport.NewFakeExtractor(100), sink, 3)

	if err := Run(context.Background(), cfg, opts); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sink.Displayed() != 3 {
		t.Fatalf("displayed %d frames, want 3", sink.Displayed())
	}
	if sink.Ops[0] != "init" || sink.Ops[1] != "clear" {
		t.Fatalf("expected startup clear, got %v", sink.Ops)
	}

	store, err := state.Open(cfg)
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	defer store.Close()
	if got := testsupport.MustPosition(t, store, "a.mp4"); got != 12 {
		t.Fatalf("position = %v, want 12", got)
	}

	if _, err := os.Lstat(filepath.Join(cfg.Paths.LogDir, "slowmovie.log")); err != nil {
		t.Fatalf("expected log pointer: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.StateDir, "slowmovie.pid")); !os.IsNotExist(err) {
		t.Fatalf("expected pid file to be removed, got %v", err)
	}

	// The lock is released, so a second run resumes where the first stopped.
	if err := Run(context.Background(), cfg, testOptions(t, testsupport.NewFakeExtractor(100), &testsupport.RecordingSink{}, 1)); err != nil {
		t.Fatalf("second Run: %v", err)
	}
}

func TestRunRefusesSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithVideos("a.mp4"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	held := flock.New(cfg.LockPath())
	if ok, err := held.TryLock(); err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	defer held.Unlock()

	err := Run(context.Background(), cfg, testOptions(t, testsupport.NewFakeExtractor(100), &testsupport.RecordingSink{}, 1))
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestRunFailsOnEmptyPlaylist(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	err := Run(context.Background(), cfg, testOptions(t, testsupport.NewFakeExtractor(100), &testsupport.RecordingSink{}, 5))
	if !errors.Is(err, services.ErrEmptyPlaylist) {
		t.Fatalf("expected empty playlist error, got %v", err)
	}
}

func TestRunFailsPreflightForMissingVideoDir(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBackend(config.BackendFiles))
	cfg.Paths.VideoDir = filepath.Join(testsupport.BaseDir(cfg), "unmounted")
	err := Run(context.Background(), cfg, testOptions(t, testsupport.NewFakeExtractor(100), &testsupport.RecordingSink{}, 1))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRunWritesDiagnosticLog(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithVideos("a.mp4"))
	opts := testOptions(t, testsupport.NewFakeExtractor(100), &testsupport.RecordingSink{}, 1)
	opts.Diagnostic = true
	if err := Run(context.Background(), cfg, opts); err != nil {
		t.Fatalf("Run: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(cfg.Paths.LogDir, "debug", "slowmovie-*.log"))
	if len(matches) != 1 {
		t.Fatalf("expected one debug log, got %v", matches)
	}
}
