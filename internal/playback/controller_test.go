package playback_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"slowmovie/internal/config"
	"slowmovie/internal/extract"
	"slowmovie/internal/playback"
	"slowmovie/internal/services"
	"slowmovie/internal/state"
	"slowmovie/internal/testsupport"
)

type harness struct {
	cfg        *config.Config
	store      state.Store
	extractor  *testsupport.FakeExtractor
	sink       *testsupport.RecordingSink
	controller *playback.Controller
	states     []playback.State
}

func newHarness(t *testing.T, frames int64, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	h := &harness{
		cfg:       testsupport.NewConfig(t, opts...),
		extractor: testsupport.NewFakeExtractor(frames),
		sink:      &testsupport.RecordingSink{},
	}
	h.store = testsupport.MustOpenStore(t, h.cfg)
	h.controller = playback.NewController(h.store, h.extractor, h.sink, nil,
		playback.WithStateObserver(func(s playback.State) { h.states = append(h.states, s) }))
	return h
}

func (h *harness) tick(t *testing.T) playback.Outcome {
	t.Helper()
	out, err := h.controller.Tick(context.Background(), h.cfg)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	return out
}

func (h *harness) nowPlaying(t *testing.T) string {
	t.Helper()
	snap, err := h.store.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	return snap.NowPlaying
}

func TestTickAdvancesByIncrement(t *testing.T) {
	h := newHarness(t, 1000, testsupport.WithVideos("a.mp4"))
	var last float64 = -1
	for i := 0; i < 5; i++ {
		out := h.tick(t)
		if out.Position <= last {
			t.Fatalf("tick %d: position %v did not advance past %v", i, out.Position, last)
		}
		if out.NextPosition != out.Position+4 {
			t.Fatalf("tick %d: next position %v, want %v", i, out.NextPosition, out.Position+4)
		}
		last = out.Position
	}
	if got := testsupport.MustPosition(t, h.store, "a.mp4"); got != 20 {
		t.Fatalf("stored position = %v, want 20", got)
	}
	if h.sink.Displayed() != 5 {
		t.Fatalf("displayed %d frames, want 5", h.sink.Displayed())
	}
}

func TestTickWrapsToNextVideo(t *testing.T) {
	h := newHarness(t, 100, testsupport.WithVideos("a.mp4", "b.mp4"))
	testsupport.MustSetPosition(t, h.store, "a.mp4", 98)
	testsupport.MustSetPosition(t, h.store, "b.mp4", 12)

	out := h.tick(t)
	if out.Video != "a.mp4" || out.Position != 98 {
		t.Fatalf("unexpected outcome %#v", out)
	}
	if !out.Wrapped || out.NextVideo != "b.mp4" {
		t.Fatalf("expected wrap to b.mp4, got %#v", out)
	}
	if got := testsupport.MustPosition(t, h.store, "a.mp4"); got != 0 {
		t.Fatalf("finished video position = %v, want 0", got)
	}
	if got := testsupport.MustPosition(t, h.store, "b.mp4"); got != 12 {
		t.Fatalf("next video position = %v, want untouched 12", got)
	}
	if h.nowPlaying(t) != "b.mp4" {
		t.Fatalf("now playing = %q, want b.mp4", h.nowPlaying(t))
	}

	out = h.tick(t)
	if out.Video != "b.mp4" || out.Position != 12 {
		t.Fatalf("expected to resume b.mp4 at 12, got %#v", out)
	}
}

func TestPlaylistCyclesInOrder(t *testing.T) {
	h := newHarness(t, 8,
		testsupport.WithVideos("a.mp4", "b.mp4", "c.mp4"),
		testsupport.WithPlaylist("c.mp4", "a.mp4", "b.mp4"),
	)
	var played []string
	for i := 0; i < 8; i++ {
		played = append(played, h.tick(t).Video)
	}
	want := []string{"c.mp4", "c.mp4", "a.mp4", "a.mp4", "b.mp4", "b.mp4", "c.mp4", "c.mp4"}
	if !reflect.DeepEqual(played, want) {
		t.Fatalf("played %v, want %v", played, want)
	}
}

func TestFailedDisplayReplaysSameFrame(t *testing.T) {
	h := newHarness(t, 1000, testsupport.WithVideos("a.mp4"))
	testsupport.MustSetPosition(t, h.store, "a.mp4", 40)

	h.sink.DisplayErr = services.Wrap(services.ErrDisplay, "test", "display", "panel unplugged", nil)
	if _, err := h.controller.Tick(context.Background(), h.cfg); !errors.Is(err, services.ErrDisplay) {
		t.Fatalf("expected display error, got %v", err)
	}
	if got := testsupport.MustPosition(t, h.store, "a.mp4"); got != 40 {
		t.Fatalf("position = %v after failed tick, want 40", got)
	}
	first, _ := h.extractor.LastCall()

	h.sink.DisplayErr = nil
	out := h.tick(t)
	second, _ := h.extractor.LastCall()
	if first.TimecodeMs != second.TimecodeMs || out.Position != 40 {
		t.Fatalf("expected the same frame after restart: %#v vs %#v", first, second)
	}
}

func TestPerVideoOverrideFallsBackPerKey(t *testing.T) {
	h := newHarness(t, 1000,
		testsupport.WithVideos("a.mp4", "b.mp4"),
		testsupport.WithPlayback(func(p *config.Playback) {
			p.FrameDelay = 30
			p.Increment = 2
		}),
		testsupport.WithVideoOverride("a.mp4", config.VideoOverride{Increment: testsupport.Float64(10)}),
	)
	out := h.tick(t)
	if out.Video != "a.mp4" {
		t.Fatalf("expected a.mp4 first, got %q", out.Video)
	}
	if out.NextPosition != 10 {
		t.Fatalf("override increment not applied: next %v", out.NextPosition)
	}
	if out.Delay != 30*time.Second {
		t.Fatalf("delay = %v, want fallback 30s", out.Delay)
	}
}

func TestStartFrameClampDoesNotRewriteStorage(t *testing.T) {
	h := newHarness(t, 1000,
		testsupport.WithVideos("a.mp4"),
		testsupport.WithVideoOverride("a.mp4", config.VideoOverride{StartFrame: testsupport.Int64(500)}),
	)
	h.sink.DisplayErr = errors.New("not yet")
	out, err := h.controller.Tick(context.Background(), h.cfg)
	if err == nil {
		t.Fatal("expected display failure")
	}
	if out.Position != 500 {
		t.Fatalf("displayed position = %v, want clamped 500", out.Position)
	}
	if got := testsupport.MustPosition(t, h.store, "a.mp4"); got != 0 {
		t.Fatalf("stored position = %v, clamp must stay in memory", got)
	}

	h.sink.DisplayErr = nil
	h.tick(t)
	if got := testsupport.MustPosition(t, h.store, "a.mp4"); got != 504 {
		t.Fatalf("stored position = %v, want 504", got)
	}
}

func TestMissingFileIsSkipped(t *testing.T) {
	h := newHarness(t, 8,
		testsupport.WithVideos("a.mp4", "b.mp4", "c.mp4"),
		testsupport.WithPlaylist("a.mp4", "b.mp4", "c.mp4"),
	)
	testsupport.RemoveFile(t, filepath.Join(h.cfg.Paths.VideoDir, "b.mp4"))

	var played []string
	for i := 0; i < 6; i++ {
		played = append(played, h.tick(t).Video)
	}
	want := []string{"a.mp4", "a.mp4", "c.mp4", "c.mp4", "a.mp4", "a.mp4"}
	if !reflect.DeepEqual(played, want) {
		t.Fatalf("played %v, want %v", played, want)
	}
}

func TestVanishedFileMovesToNextEntry(t *testing.T) {
	h := newHarness(t, 100, testsupport.WithVideos("a.mp4", "b.mp4"))
	h.extractor.Errors["a.mp4"] = services.Wrap(services.ErrVideoNotFound, "test", "extract", "a.mp4", nil)

	_, err := h.controller.Tick(context.Background(), h.cfg)
	if !errors.Is(err, services.ErrVideoNotFound) {
		t.Fatalf("expected video not found, got %v", err)
	}
	if h.nowPlaying(t) != "b.mp4" {
		t.Fatalf("now playing = %q, want b.mp4", h.nowPlaying(t))
	}
	if out := h.tick(t); out.Video != "b.mp4" {
		t.Fatalf("expected b.mp4 on the following tick, got %q", out.Video)
	}
}

func TestExtractionFailureDoesNotPersist(t *testing.T) {
	h := newHarness(t, 100, testsupport.WithVideos("a.mp4"))
	testsupport.MustSetPosition(t, h.store, "a.mp4", 20)
	h.extractor.Errors["a.mp4"] = testsupport.ErrInjected

	out, err := h.controller.Tick(context.Background(), h.cfg)
	if !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected extraction error, got %v", err)
	}
	if out.Delay != 120*time.Second {
		t.Fatalf("retry delay = %v, want frame delay", out.Delay)
	}
	if got := testsupport.MustPosition(t, h.store, "a.mp4"); got != 20 {
		t.Fatalf("position = %v, want 20", got)
	}
	if h.sink.Displayed() != 0 {
		t.Fatal("nothing should reach the panel")
	}
}

func TestImageSizeMismatchIsImageProcessingError(t *testing.T) {
	h := newHarness(t, 100, testsupport.WithVideos("a.mp4"))
	h.extractor.Bounds = imageRect(3, 3)
	if _, err := h.controller.Tick(context.Background(), h.cfg); !errors.Is(err, services.ErrImageProcessing) {
		t.Fatalf("expected image processing error, got %v", err)
	}
}

func TestStaleNowPlayingIsReinitialised(t *testing.T) {
	h := newHarness(t, 100, testsupport.WithVideos("a.mp4", "b.mp4"))
	if err := h.store.SetNowPlaying(context.Background(), "deleted.mp4"); err != nil {
		t.Fatalf("SetNowPlaying: %v", err)
	}
	if out := h.tick(t); out.Video != "a.mp4" {
		t.Fatalf("expected playlist head, got %q", out.Video)
	}
}

func TestPinnedVideoWins(t *testing.T) {
	h := newHarness(t, 8,
		testsupport.WithVideos("a.mp4", "b.mp4"),
		testsupport.WithPlayback(func(p *config.Playback) { p.PinnedVideo = "b.mp4" }),
	)
	for i := 0; i < 4; i++ {
		if out := h.tick(t); out.Video != "b.mp4" {
			t.Fatalf("tick %d played %q, want pinned b.mp4", i, out.Video)
		}
	}
}

func TestFrameRatePolicy(t *testing.T) {
	h := newHarness(t, 10000, testsupport.WithVideos("a.mp4"))
	testsupport.MustSetPosition(t, h.store, "a.mp4", 100)

	out := h.tick(t)
	if out.TimecodeMs != 4000 {
		t.Fatalf("stream policy timecode = %d, want 4000 at 25fps", out.TimecodeMs)
	}

	h.cfg.Playback.FrameRatePolicy = config.FrameRateFixed
	testsupport.MustSetPosition(t, h.store, "a.mp4", 100)
	out = h.tick(t)
	if out.TimecodeMs != extract.TimecodeMillis(100, extract.FixedFrameRate) {
		t.Fatalf("fixed policy timecode = %d", out.TimecodeMs)
	}
}

func TestPositionPastEndShowsLastFrameAndWraps(t *testing.T) {
	h := newHarness(t, 50, testsupport.WithVideos("a.mp4", "b.mp4"))
	testsupport.MustSetPosition(t, h.store, "a.mp4", 400)
	out := h.tick(t)
	if out.Position != 49 || !out.Wrapped || out.NextVideo != "b.mp4" {
		t.Fatalf("unexpected outcome %#v", out)
	}
}

func TestStartFramePastEndWarnsOnce(t *testing.T) {
	h := newHarness(t, 100, testsupport.WithVideos("a.mp4"),
		testsupport.WithPlayback(func(p *config.Playback) { p.StartFrame = 150 }))
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h.controller = playback.NewController(h.store, h.extractor, h.sink, logger)

	for i := 0; i < 3; i++ {
		if out := h.tick(t); out.Position != 99 {
			t.Fatalf("tick %d position = %v, want 99", i, out.Position)
		}
	}
	out := buf.String()
	if n := strings.Count(out, "position_past_end"); n != 1 {
		t.Fatalf("expected one past-end warning, got %d:\n%s", n, out)
	}
	if !strings.Contains(out, "lower start_frame") {
		t.Fatalf("expected start_frame hint, got %s", out)
	}
}

func TestStateTransitions(t *testing.T) {
	h := newHarness(t, 100, testsupport.WithVideos("a.mp4"))
	h.tick(t)
	want := []playback.State{
		playback.StateResolving,
		playback.StateExtracting,
		playback.StatePostProcessing,
		playback.StateDisplaying,
		playback.StateAdvancing,
		playback.StateIdle,
	}
	if !reflect.DeepEqual(h.states, want) {
		t.Fatalf("states %v, want %v", h.states, want)
	}
	if !reflect.DeepEqual(h.sink.Ops, []string{"init", "display", "sleep"}) {
		t.Fatalf("panel ops %v", h.sink.Ops)
	}
}

func TestEmptyPlaylistIsFatal(t *testing.T) {
	h := newHarness(t, 100)
	_, err := h.controller.Tick(context.Background(), h.cfg)
	if !errors.Is(err, services.ErrEmptyPlaylist) || !services.IsFatal(err) {
		t.Fatalf("expected fatal empty playlist, got %v", err)
	}
}
