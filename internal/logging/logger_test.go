package logging_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"slowmovie/internal/logging"
	"slowmovie/internal/services"
)

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func TestNewWritesEachFileOnce(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "run.log")
	logger, err := logging.New(logging.Options{
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("hello from test")

	content := readLog(t, logPath)
	if strings.Count(content, "hello from test") != 1 {
		t.Fatalf("expected one record, got %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleLoggerFormatsComponentAndFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
		RunID:       "run-1",
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "playback").Info("frame displayed",
		logging.Video("a film.mp4"),
		logging.Position(12),
		logging.Error(errors.New("none")),
	)

	content := readLog(t, logPath)
	for _, fragment := range []string{"INFO playback: frame displayed", `video="a film.mp4"`, "position=12", "run_id=run-1", "error=none"} {
		if !strings.Contains(content, fragment) {
			t.Fatalf("expected %q in %q", fragment, content)
		}
	}
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("with caller")
	if content := readLog(t, logPath); !strings.Contains(content, ".go:") {
		t.Fatalf("expected caller information, got %q", content)
	}
}

func TestJSONLoggerShape(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.WithGroup("probe").Warn("slow", logging.Int("frames", 10))

	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(readLog(t, logPath))), &record); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if record["level"] != "warn" {
		t.Fatalf("unexpected level: %v", record["level"])
	}
	if _, ok := record["ts"].(string); !ok {
		t.Fatalf("expected ts string, got %v", record["ts"])
	}
	probe, ok := record["probe"].(map[string]any)
	if !ok || probe["frames"] != float64(10) {
		t.Fatalf("expected grouped frames attr, got %v", record["probe"])
	}
}

func TestWithContextAddsPlaybackFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "ctx.log")
	logger, err := logging.New(logging.Options{Format: "console", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := services.WithVideo(context.Background(), "b.mp4")
	ctx = services.WithTick(ctx, 7)
	ctx = services.WithState(ctx, "displaying")
	logging.WithContext(ctx, logger).Info("tick")

	content := readLog(t, logPath)
	for _, fragment := range []string{"video=b.mp4", "tick=7", "state=displaying"} {
		if !strings.Contains(content, fragment) {
			t.Fatalf("expected %q in %q", fragment, content)
		}
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "console", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logging.WarnWithContext(logger, "dropped entry", "playlist_entry_missing", logging.String(logging.FieldImpact, "entry skipped"))

	content := readLog(t, logPath)
	for _, fragment := range []string{"event_type=playlist_entry_missing", `error_hint="see the log file for details"`, `impact="entry skipped"`} {
		if !strings.Contains(content, fragment) {
			t.Fatalf("expected %q in %q", fragment, content)
		}
	}
}

func TestTeeLoggerWritesBoth(t *testing.T) {
	dir := t.TempDir()
	primaryPath := filepath.Join(dir, "primary.log")
	debugPath := filepath.Join(dir, "debug.log")
	primary, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{primaryPath}})
	if err != nil {
		t.Fatalf("New primary: %v", err)
	}
	debug, err := logging.New(logging.Options{Format: "json", Level: "debug", OutputPaths: []string{debugPath}})
	if err != nil {
		t.Fatalf("New debug: %v", err)
	}
	tee := logging.TeeLogger(primary, debug.Handler())
	tee.Debug("debug only")
	tee.Info("everywhere")

	primaryContent := readLog(t, primaryPath)
	if strings.Contains(primaryContent, "debug only") || !strings.Contains(primaryContent, "everywhere") {
		t.Fatalf("unexpected primary content %q", primaryContent)
	}
	debugContent := readLog(t, debugPath)
	if !strings.Contains(debugContent, "debug only") || !strings.Contains(debugContent, "everywhere") {
		t.Fatalf("unexpected debug content %q", debugContent)
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "slowmovie-old.log")
	recent := filepath.Join(dir, "slowmovie-new.log")
	current := filepath.Join(dir, "slowmovie-current.log")
	other := filepath.Join(dir, "notes.txt")
	for _, path := range []string{old, recent, current, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	stale := time.Now().AddDate(0, 0, -30)
	for _, path := range []string{old, current, other} {
		if err := os.Chtimes(path, stale, stale); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := logging.CleanupOldLogs(logging.NewNop(), 7,
		logging.RetentionTarget{Dir: dir, Pattern: "slowmovie-*.log", Exclude: []string{current}})
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("expected stale log to be removed")
	}
	for _, path := range []string{recent, current, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to remain: %v", path, err)
		}
	}
	if logging.CleanupOldLogs(nil, 0, logging.RetentionTarget{Dir: dir}) != 0 {
		t.Fatal("retention 0 should disable pruning")
	}
}

func TestPruneBeforeSkipsDirectoriesAndLinks(t *testing.T) {
	dir := t.TempDir()
	frame := filepath.Join(dir, "frame-20260101T000000.png")
	nested := filepath.Join(dir, "frame-dir.png")
	link := filepath.Join(dir, "frame-link.png")
	if err := os.WriteFile(frame, []byte("png"), 0o644); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if err := os.Mkdir(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Symlink(frame, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	removed := logging.PruneBefore(logging.NewNop(), time.Now().Add(time.Hour),
		logging.RetentionTarget{Dir: dir, Pattern: "frame-*.png"})
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(nested); err != nil {
		t.Fatalf("directory should remain: %v", err)
	}
	if _, err := os.Lstat(link); err != nil {
		t.Fatalf("symlink should remain: %v", err)
	}
}

func TestTeeLoggerWithoutExtraHandlersReturnsBase(t *testing.T) {
	base := logging.NewNop()
	if got := logging.TeeLogger(base, nil); got != base {
		t.Fatal("expected base logger when no handlers are added")
	}
}
