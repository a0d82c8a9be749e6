package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"slowmovie/internal/config"
	"slowmovie/internal/logging"
	"slowmovie/internal/services"
)

// ConfigSource yields the configuration snapshot for each tick.
// *config.Reloader satisfies it.
type ConfigSource interface {
	Snapshot(ctx context.Context) (*config.Config, error)
}

// StaticConfig is a ConfigSource that never changes.
type StaticConfig struct {
	Config *config.Config
}

func (s StaticConfig) Snapshot(context.Context) (*config.Config, error) {
	if s.Config == nil {
		return nil, services.Wrap(services.ErrConfiguration, "playback", "snapshot", "no configuration", nil)
	}
	return s.Config, nil
}

// Scheduler repeats controller ticks, sleeping between them.
type Scheduler struct {
	controller *Controller
	source     ConfigSource
	clock      Clock
	sleeper    Sleeper
	logger     *slog.Logger
	// maxTicks stops the loop after that many ticks when positive.
	maxTicks uint64
	onTick   func(Outcome, error)
}

// SchedulerOption customizes a Scheduler.
type SchedulerOption func(*Scheduler)

// WithClock overrides the wall clock.
func WithClock(clock Clock) SchedulerOption {
	return func(s *Scheduler) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithSleeper overrides how the loop waits between ticks.
func WithSleeper(sleeper Sleeper) SchedulerOption {
	return func(s *Scheduler) {
		if sleeper != nil {
			s.sleeper = sleeper
		}
	}
}

// WithMaxTicks stops Run after n ticks. Zero runs forever.
func WithMaxTicks(n uint64) SchedulerOption {
	return func(s *Scheduler) {
		s.maxTicks = n
	}
}

// WithTickObserver registers fn to be called after every tick.
func WithTickObserver(fn func(Outcome, error)) SchedulerOption {
	return func(s *Scheduler) {
		s.onTick = fn
	}
}

// NewScheduler constructs the playback loop.
func NewScheduler(controller *Controller, source ConfigSource, logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		controller: controller,
		source:     source,
		clock:      SystemClock{},
		sleeper:    TimerSleeper{},
		logger:     logging.NewComponentLogger(logger, "scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ticks until ctx is cancelled, the tick limit is reached, or a fatal
// error occurs. Only fatal errors are returned: configuration problems, an
// empty playlist, and storage failures that persist for
// max_consecutive_failures ticks in a row. Other failures abort the tick and
// are retried after the frame delay.
func (s *Scheduler) Run(ctx context.Context) error {
	var (
		tick             uint64
		failures         int
		storageFailures  int
		lastFailureKind  string
		escalationLogged bool
	)
	for {
		if ctx.Err() != nil {
			return nil
		}
		tick++
		tickCtx := services.WithTick(ctx, tick)
		logger := logging.WithContext(tickCtx, s.logger)

		cfg, err := s.source.Snapshot(tickCtx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		maxFailures := cfg.Playback.MaxConsecutiveFailures
		if maxFailures <= 0 {
			maxFailures = 1
		}

		started := s.clock.Now()
		outcome, err := s.controller.Tick(tickCtx, cfg)
		if s.onTick != nil {
			s.onTick(outcome, err)
		}

		switch {
		case err == nil:
			if failures > 0 {
				logger.Info("playback recovered",
					logging.Int("failed_ticks", failures),
					logging.Video(outcome.Video),
				)
			}
			failures, storageFailures, lastFailureKind, escalationLogged = 0, 0, "", false
			logger.Debug("tick complete",
				logging.Video(outcome.Video),
				logging.Float64("next_position", outcome.NextPosition),
				logging.String("next_video", outcome.NextVideo),
				logging.Duration("elapsed", s.clock.Now().Sub(started)),
			)
		case ctx.Err() != nil && errors.Is(err, context.Canceled):
			return nil
		case services.IsFatal(err):
			logging.ErrorWithContext(logger, "fatal playback error", "playback_fatal",
				logging.Error(err),
				logging.ErrorKind(err),
				logging.Video(outcome.Video),
				logging.String(logging.FieldErrorHint, fatalHint(err)),
			)
			return err
		default:
			failures++
			kind := services.Kind(err)
			if services.IsStorage(err) {
				storageFailures++
			} else {
				storageFailures = 0
			}
			attrs := []logging.Attr{
				logging.Error(err),
				logging.String(logging.FieldErrorKind, kind),
				logging.Video(outcome.Video),
				logging.Position(outcome.Position),
				logging.Int("consecutive_failures", failures),
				logging.Duration("retry_in", outcome.Delay),
			}
			logging.ErrorWithContext(logger, "tick failed", "tick_failed", attrs...)

			if storageFailures >= maxFailures {
				return services.Wrap(services.ErrStorage, "playback", "run",
					fmt.Sprintf("state store failed %d ticks in a row", storageFailures), err)
			}
			if failures >= maxFailures && (!escalationLogged || kind != lastFailureKind) {
				logging.WarnWithContext(logger, "playback is repeatedly failing", "tick_failures_repeated",
					logging.Int("consecutive_failures", failures),
					logging.String(logging.FieldErrorKind, kind),
					logging.Video(outcome.Video),
					logging.String(logging.FieldErrorHint, "check the video file and ffmpeg output above"),
					logging.String(logging.FieldImpact, "the display is not updating"),
				)
				escalationLogged = true
			}
			lastFailureKind = kind
		}

		if s.maxTicks > 0 && tick >= s.maxTicks {
			return nil
		}

		s.controller.enter(StateSleeping)
		logger.Debug("sleeping",
			logging.Duration("delay", outcome.Delay),
			logging.String("next_tick_at", s.clock.Now().Add(outcome.Delay).Format("15:04:05")),
		)
		sleepErr := s.sleeper.Sleep(ctx, outcome.Delay)
		s.controller.enter(StateIdle)
		if sleepErr != nil {
			if ctx.Err() != nil {
				return nil
			}
			return sleepErr
		}
	}
}

func fatalHint(err error) string {
	switch {
	case errors.Is(err, services.ErrEmptyPlaylist):
		return "add videos to paths.video_dir or fix playback.playlist"
	case errors.Is(err, services.ErrConfiguration):
		return "run 'slowmovie config validate'"
	default:
		return "check logs for details"
	}
}
