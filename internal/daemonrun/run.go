package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"slowmovie/internal/config"
	"slowmovie/internal/display"
	"slowmovie/internal/extract"
	"slowmovie/internal/logging"
	"slowmovie/internal/playback"
	"slowmovie/internal/preflight"
	"slowmovie/internal/services"
	"slowmovie/internal/state"
)

// ErrAlreadyRunning is returned when another process holds the state lock.
var ErrAlreadyRunning = errors.New("another slowmovie instance is already running")

// Options configures player process runtime behavior.
type Options struct {
	// ConfigPath is re-read before every tick. Empty disables reloading.
	ConfigPath  string
	LogLevel    string
	Development bool
	Diagnostic  bool
	// MaxTicks stops the loop after that many ticks when positive.
	MaxTicks uint64
	// SkipClear leaves the panel untouched at startup.
	SkipClear bool

	// Test seams; nil uses the real implementations.
	Extractor extract.Extractor
	Sink      display.Sink
	Sleeper   playback.Sleeper
	// Stdout replaces the console log destination when set.
	Stdout string
}

// Run starts the playback loop and blocks until it stops. Only fatal errors
// are returned; SIGINT and SIGTERM stop the loop cleanly.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return services.Wrap(services.ErrConfiguration, "daemonrun", "run", "config is required", nil)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return services.Wrap(services.ErrConfiguration, "daemonrun", "ensure directories", "", err)
	}

	started := time.Now().UTC()
	stamp := started.Format("20060102T150405.000Z")
	runID := uuid.NewString()
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("slowmovie-%s.log", stamp))

	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	console, errConsole := "stdout", "stderr"
	if opts.Stdout != "" {
		console, errConsole = opts.Stdout, opts.Stdout
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{console, logPath},
		ErrorOutputPaths: []string{errConsole, logPath},
		Development:      opts.Development,
		RunID:            runID,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if opts.Diagnostic {
		logger = attachDiagnosticLog(logger, cfg, stamp, runID)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update slowmovie.log link: %v\n", err)
	}
	retention := []logging.RetentionTarget{
		{Dir: cfg.Paths.LogDir, Pattern: "slowmovie-*.log", Exclude: []string{logPath}},
		{Dir: filepath.Join(cfg.Paths.LogDir, "debug"), Pattern: "slowmovie-*.log"},
	}
	if cfg.Display.Sink == config.SinkPNG && cfg.Display.KeepFrames {
		retention = append(retention, logging.RetentionTarget{Dir: cfg.Display.OutputDir, Pattern: "frame-*.png"})
	}
	if removed := logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, retention...); removed > 0 {
		logger.Info("pruned old logs and frames", logging.Int("removed", removed))
	}

	if err := checkReadiness(signalCtx, logger, cfg, opts.Extractor == nil); err != nil {
		return err
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return services.Wrap(services.ErrStorage, "daemonrun", "lock", cfg.LockPath(), err)
	}
	if !locked {
		return fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, cfg.LockPath())
	}
	defer func() { _ = lock.Unlock() }()

	pidPath := filepath.Join(cfg.Paths.StateDir, "slowmovie.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := state.Open(cfg)
	if err != nil {
		logger.Error("open state store", logging.Error(err))
		return err
	}
	defer store.Close()

	extractor := opts.Extractor
	if extractor == nil {
		extractor = extract.New(
			extract.WithFFmpegBinary(cfg.FFmpeg.FFmpegBinary),
			extract.WithFFprobeBinary(cfg.FFmpeg.FFprobeBinary),
		)
	}
	sink := opts.Sink
	if sink == nil {
		sink, err = display.New(cfg)
		if err != nil {
			return err
		}
	}

	ctx := services.WithRunID(signalCtx, runID)
	logger.Info("slowmovie starting",
		logging.String(logging.FieldEventType, "player_start"),
		logging.String("video_dir", cfg.Paths.VideoDir),
		logging.String("state_backend", cfg.State.Backend),
		logging.String("display_sink", cfg.Display.Sink),
		logging.Int("display_width", cfg.Display.Width),
		logging.Int("display_height", cfg.Display.Height),
		logging.String("log_path", logPath),
	)

	if !opts.SkipClear {
		if err := clearPanel(ctx, sink); err != nil {
			logging.WarnWithContext(logger, "panel clear failed", "display_clear_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the display driver"),
				logging.String(logging.FieldImpact, "the first frame may show ghosting"),
			)
		}
	}

	controller := playback.NewController(store, extractor, sink, logger)
	schedulerOpts := []playback.SchedulerOption{playback.WithMaxTicks(opts.MaxTicks)}
	if opts.Sleeper != nil {
		schedulerOpts = append(schedulerOpts, playback.WithSleeper(opts.Sleeper))
	}
	reloader := config.NewReloader(opts.ConfigPath, cfg, logger)
	scheduler := playback.NewScheduler(controller, reloader, logger, schedulerOpts...)

	runErr := scheduler.Run(ctx)
	if runErr != nil {
		logger.Error("slowmovie stopped", logging.Error(runErr), logging.ErrorKind(runErr))
		return runErr
	}
	logger.Info("slowmovie shutting down", logging.Duration("uptime", time.Since(started).Round(time.Second)))
	return nil
}

func attachDiagnosticLog(logger *slog.Logger, cfg *config.Config, stamp, runID string) *slog.Logger {
	debugDir := filepath.Join(cfg.Paths.LogDir, "debug")
	if err := os.MkdirAll(debugDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to create debug log directory: %v\n", err)
		return logger
	}
	debugLogPath := filepath.Join(debugDir, fmt.Sprintf("slowmovie-%s.log", stamp))
	debugLogger, err := logging.New(logging.Options{
		Level:            "debug",
		Format:           "json",
		OutputPaths:      []string{debugLogPath},
		ErrorOutputPaths: []string{debugLogPath},
		Development:      true,
		RunID:            runID,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to initialize debug logger: %v\n", err)
		return logger
	}
	logger = logging.TeeLogger(logger, debugLogger.Handler())
	if err := ensureCurrentLogPointer(debugDir, debugLogPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update debug/slowmovie.log link: %v\n", err)
	}
	logger.Info("diagnostic mode enabled",
		logging.String(logging.FieldEventType, "diagnostic_mode_enabled"),
		logging.String("debug_log_path", debugLogPath),
	)
	return logger
}

// checkReadiness logs the dependency snapshot and fails when a required
// check does not pass. Binary checks are skipped when an extractor is
// injected.
func checkReadiness(ctx context.Context, logger *slog.Logger, cfg *config.Config, checkBinaries bool) error {
	results := preflight.RunAll(ctx, cfg)
	var failed []preflight.Result
	for _, result := range preflight.Failed(results) {
		if !checkBinaries && (result.Name == "FFmpeg" || result.Name == "FFprobe") {
			continue
		}
		failed = append(failed, result)
	}
	for _, result := range results {
		logger.Debug("preflight",
			logging.String("check", result.Name),
			logging.Bool("passed", result.Passed),
			logging.String("detail", result.Detail),
		)
	}
	if len(failed) == 0 {
		return nil
	}
	details := make([]string, 0, len(failed))
	for _, result := range failed {
		logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run 'slowmovie status' for details"),
		)
		details = append(details, fmt.Sprintf("%s: %s", result.Name, result.Detail))
	}
	return services.Wrap(services.ErrConfiguration, "daemonrun", "preflight", strings.Join(details, "; "), nil)
}

func clearPanel(ctx context.Context, sink display.Sink) error {
	if err := sink.Init(ctx); err != nil {
		return err
	}
	if err := sink.Clear(ctx); err != nil {
		return err
	}
	return sink.Sleep(ctx)
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "slowmovie.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
