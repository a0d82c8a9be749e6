package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"slowmovie/internal/config"
	"slowmovie/internal/display"
	"slowmovie/internal/extract"
	"slowmovie/internal/imaging"
	"slowmovie/internal/logging"
	"slowmovie/internal/media/ffprobe"
	"slowmovie/internal/playlist"
	"slowmovie/internal/services"
	"slowmovie/internal/state"
)

// Outcome describes one completed (or aborted) tick.
type Outcome struct {
	Video        string
	Position     float64
	FrameCount   int64
	FrameRate    ffprobe.Rational
	TimecodeMs   int64
	NextVideo    string
	NextPosition float64
	// Wrapped is true when the video finished and playback moved on.
	Wrapped bool
	// Delay is how long to wait before the next tick. It is set even when
	// the tick fails so retries keep the configured cadence.
	Delay time.Duration
}

// Controller owns one pass through the state machine.
type Controller struct {
	store     state.Store
	extractor extract.Extractor
	sink      display.Sink
	logger    *slog.Logger

	state   State
	onState func(State)
	// pastEnd holds videos already warned about a position beyond their
	// last frame, so a persistent cause is reported once.
	pastEnd map[string]bool
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithStateObserver registers fn to be called on every state transition.
func WithStateObserver(fn func(State)) ControllerOption {
	return func(c *Controller) {
		c.onState = fn
	}
}

// NewController wires the collaborators of the state machine.
func NewController(store state.Store, extractor extract.Extractor, sink display.Sink, logger *slog.Logger, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:     store,
		extractor: extractor,
		sink:      sink,
		logger:    logging.NewComponentLogger(logger, "playback"),
		state:     StateIdle,
		pastEnd:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the step the controller is in.
func (c *Controller) State() State {
	return c.state
}

func (c *Controller) enter(s State) {
	c.state = s
	if c.onState != nil {
		c.onState(s)
	}
}

// Tick runs one pass of the state machine against the cfg snapshot. The
// returned Outcome always carries the delay before the next tick.
func (c *Controller) Tick(ctx context.Context, cfg *config.Config) (Outcome, error) {
	defer c.enter(StateIdle)
	out := Outcome{}
	if cfg == nil {
		return out, services.Wrap(services.ErrConfiguration, "playback", "tick", "config is required", nil)
	}
	out.Delay = cfg.PlaybackFor("").FrameDelay

	c.enter(StateResolving)
	list, err := playlist.Resolve(ctx, cfg, c.store, c.logger)
	if err != nil {
		return out, err
	}

	current, err := c.selectVideo(ctx, cfg, list)
	if err != nil {
		return out, err
	}
	out.Video = current
	ctx = services.WithVideo(ctx, current)
	logger := logging.WithContext(ctx, c.logger)

	settings := cfg.PlaybackFor(current)
	out.Delay = settings.FrameDelay

	position, err := c.store.Position(ctx, current)
	if err != nil {
		return out, err
	}
	if start := float64(settings.StartFrame); position < start {
		logger.Debug("position below start frame; starting from start frame",
			logging.Float64("stored_position", position),
			logging.Int64("start_frame", settings.StartFrame),
		)
		position = start
	}

	c.enter(StateExtracting)
	path := list.Path(current)
	meta, err := c.extractor.Probe(ctx, path)
	if err != nil {
		return out, c.handleMissing(ctx, list, current, err)
	}
	if meta.FrameCount <= 0 {
		return out, services.Wrap(services.ErrExtraction, "playback", "probe",
			fmt.Sprintf("%s reports no frames", current), nil)
	}
	out.FrameCount = meta.FrameCount
	out.FrameRate = FrameRate(settings.FrameRatePolicy, meta)

	// A replaced, shorter file or a start frame past the end can leave the
	// position beyond the last frame. Show the last frame; advancing below
	// then wraps as usual.
	if last := float64(meta.FrameCount - 1); position > last {
		c.warnPastEnd(logger, current, position, settings.StartFrame, meta.FrameCount)
		position = last
	} else {
		delete(c.pastEnd, current)
	}
	out.Position = position
	out.TimecodeMs = extract.TimecodeMillis(position, out.FrameRate)

	logger.Info("displaying frame",
		logging.Position(position),
		logging.Int64("frame_count", meta.FrameCount),
		logging.Int64("timecode_ms", out.TimecodeMs),
		logging.String("frame_rate", out.FrameRate.String()),
		logging.String("progress", Progress(position, meta.FrameCount)),
	)

	img, err := c.extractor.ExtractFrame(ctx, path, out.TimecodeMs, cfg.Display.Width, cfg.Display.Height)
	if err != nil {
		return out, c.handleMissing(ctx, list, current, err)
	}

	c.enter(StatePostProcessing)
	bitmap, err := imaging.Process(img, cfg.Display.Width, cfg.Display.Height, settings.Brightness, settings.Contrast)
	if err != nil {
		return out, err
	}

	c.enter(StateDisplaying)
	if err := c.show(ctx, bitmap); err != nil {
		return out, err
	}

	c.enter(StateAdvancing)
	next := position + settings.Increment
	out.NextVideo = current
	out.NextPosition = next
	finishedPosition := next
	if next >= float64(meta.FrameCount) {
		out.Wrapped = true
		out.NextVideo = list.Next(current)
		out.NextPosition = 0
		finishedPosition = 0
	}
	if err := c.store.Commit(ctx, current, finishedPosition, out.NextVideo); err != nil {
		return out, err
	}
	if out.Wrapped {
		logger.Info("video finished",
			logging.Int64("frame_count", meta.FrameCount),
			logging.String("next_video", out.NextVideo),
		)
		if following := out.NextVideo; following != current {
			if pos, err := c.store.Position(ctx, following); err == nil {
				out.NextPosition = pos
			}
		}
	}
	return out, nil
}

func (c *Controller) warnPastEnd(logger *slog.Logger, video string, position float64, startFrame, frameCount int64) {
	attrs := []logging.Attr{
		logging.Position(position),
		logging.Int64("frame_count", frameCount),
		logging.String(logging.FieldEventType, "position_past_end"),
	}
	if c.pastEnd[video] {
		logger.Debug("position beyond end of video; showing last frame", logging.Args(attrs...)...)
		return
	}
	c.pastEnd[video] = true
	hint := "the video file may have been replaced"
	msg := "stored position beyond end of video; showing last frame"
	if startFrame >= frameCount {
		hint = "lower start_frame for this video"
		msg = "start_frame beyond end of video; showing last frame each time it plays"
		attrs = append(attrs, logging.Int64("start_frame", startFrame))
	}
	logging.WarnWithContext(logger, msg, "position_past_end", append(attrs,
		logging.String(logging.FieldErrorHint, hint),
		logging.String(logging.FieldImpact, "playback continues with the next video"),
	)...)
}

// selectVideo returns the video for this tick. A pinned video present in the
// playlist always wins. Otherwise the persisted NowPlaying record is used and
// re-initialised to the first entry when it is absent or stale.
func (c *Controller) selectVideo(ctx context.Context, cfg *config.Config, list playlist.Playlist) (string, error) {
	if pinned := cfg.Playback.PinnedVideo; pinned != "" {
		if list.Contains(pinned) {
			return pinned, nil
		}
		logging.WarnWithContext(c.logger, "pinned video not in playlist; ignoring", "pinned_video_missing",
			logging.Video(pinned),
			logging.String(logging.FieldErrorHint, "check playback.pinned_video"),
			logging.String(logging.FieldImpact, "the playlist plays in order"),
		)
	}

	current, ok, err := c.store.NowPlaying(ctx, list.Videos)
	if err != nil {
		return "", err
	}
	if ok {
		return current, nil
	}
	current = list.Videos[0]
	if err := c.store.SetNowPlaying(ctx, current); err != nil {
		return "", err
	}
	c.logger.Info("now playing initialised", logging.Video(current))
	return current, nil
}

// handleMissing points NowPlaying at the following entry when the current
// file disappeared, so the next tick moves on instead of retrying it.
func (c *Controller) handleMissing(ctx context.Context, list playlist.Playlist, current string, err error) error {
	if !errors.Is(err, services.ErrVideoNotFound) {
		return err
	}
	next := list.Next(current)
	if next == "" || next == current {
		return err
	}
	if setErr := c.store.SetNowPlaying(ctx, next); setErr != nil {
		return errors.Join(err, setErr)
	}
	return err
}

func (c *Controller) show(ctx context.Context, bitmap *imaging.Bitmap) error {
	if err := c.sink.Init(ctx); err != nil {
		return err
	}
	if err := c.sink.Display(ctx, bitmap); err != nil {
		return err
	}
	return c.sink.Sleep(ctx)
}

// FrameRate returns the rate used to convert frame positions to timecodes
// under policy.
func FrameRate(policy string, meta extract.Metadata) ffprobe.Rational {
	if policy == config.FrameRateFixed || !meta.FrameRate.Valid() {
		return extract.FixedFrameRate
	}
	return meta.FrameRate
}

// Progress formats position as a percentage of frameCount.
func Progress(position float64, frameCount int64) string {
	if frameCount <= 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", position/float64(frameCount)*100)
}
