package testsupport

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"slowmovie/internal/extract"
	"slowmovie/internal/imaging"
	"slowmovie/internal/media/ffprobe"
	"slowmovie/internal/services"
)

// ExtractCall records one ExtractFrame invocation.
type ExtractCall struct {
	Video      string
	TimecodeMs int64
	Width      int
	Height     int
}

// FakeExtractor serves probe results from a table keyed by file name and
// returns mid-gray frames. Files must still exist on disk.
type FakeExtractor struct {
	mu sync.Mutex
	// Frames maps video name to frame count. Missing entries use DefaultFrames.
	Frames        map[string]int64
	DefaultFrames int64
	// Rate is reported as the stream frame rate when valid.
	Rate ffprobe.Rational
	// Errors maps video name to an error returned by ExtractFrame.
	Errors map[string]error
	// Bounds overrides the size of returned frames when non-empty.
	Bounds image.Rectangle
	Calls  []ExtractCall
}

// NewFakeExtractor returns an extractor reporting frames for every video.
func NewFakeExtractor(frames int64) *FakeExtractor {
	return &FakeExtractor{
		Frames:        make(map[string]int64),
		DefaultFrames: frames,
		Rate:          ffprobe.Rational{Num: 25, Den: 1},
		Errors:        make(map[string]error),
	}
}

func (f *FakeExtractor) Probe(ctx context.Context, path string) (extract.Metadata, error) {
	if err := fakeStat(path); err != nil {
		return extract.Metadata{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	frames, ok := f.Frames[filepath.Base(path)]
	if !ok {
		frames = f.DefaultFrames
	}
	meta := extract.Metadata{FrameCount: frames, FrameRate: extract.FixedFrameRate}
	if f.Rate.Valid() {
		meta.FrameRate = f.Rate
		meta.RateFromStream = true
	}
	return meta, nil
}

func (f *FakeExtractor) ExtractFrame(ctx context.Context, path string, timecodeMs int64, width, height int) (image.Image, error) {
	if err := fakeStat(path); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	video := filepath.Base(path)
	f.Calls = append(f.Calls, ExtractCall{Video: video, TimecodeMs: timecodeMs, Width: width, Height: height})
	if err := f.Errors[video]; err != nil {
		return nil, err
	}
	bounds := image.Rect(0, 0, width, height)
	if !f.Bounds.Empty() {
		bounds = f.Bounds
	}
	img := image.NewGray(bounds)
	for i := range img.Pix {
		img.Pix[i] = 0x60
	}
	return img, nil
}

// CallCount returns the number of ExtractFrame invocations so far.
func (f *FakeExtractor) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// LastCall returns the most recent ExtractFrame invocation.
func (f *FakeExtractor) LastCall() (ExtractCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Calls) == 0 {
		return ExtractCall{}, false
	}
	return f.Calls[len(f.Calls)-1], true
}

func fakeStat(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrVideoNotFound, "fake extractor", "stat", path, err)
		}
		return err
	}
	return nil
}

// RecordingSink remembers every panel operation.
type RecordingSink struct {
	mu         sync.Mutex
	Ops        []string
	Bitmaps    []*imaging.Bitmap
	DisplayErr error
}

func (s *RecordingSink) record(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Ops = append(s.Ops, op)
}

func (s *RecordingSink) Init(context.Context) error  { s.record("init"); return nil }
func (s *RecordingSink) Clear(context.Context) error { s.record("clear"); return nil }
func (s *RecordingSink) Sleep(context.Context) error { s.record("sleep"); return nil }

func (s *RecordingSink) Display(_ context.Context, bitmap *imaging.Bitmap) error {
	s.record("display")
	if s.DisplayErr != nil {
		return s.DisplayErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Bitmaps = append(s.Bitmaps, bitmap)
	return nil
}

// Displayed returns how many bitmaps reached the panel.
func (s *RecordingSink) Displayed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Bitmaps)
}

// FakeClock is a manually advanced clock.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock starts a clock at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// FakeSleeper returns immediately, advancing Clock when set and recording
// every requested delay. BeforeSleep runs first and may cancel the loop.
type FakeSleeper struct {
	mu          sync.Mutex
	Clock       *FakeClock
	Delays      []time.Duration
	BeforeSleep func(n int)
}

func (s *FakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.Delays = append(s.Delays, d)
	n := len(s.Delays)
	hook := s.BeforeSleep
	s.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Clock != nil {
		s.Clock.Advance(d)
	}
	return nil
}

// Total returns the sum of all requested delays.
func (s *FakeSleeper) Total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total time.Duration
	for _, d := range s.Delays {
		total += d
	}
	return total
}

// ErrInjected is a generic failure for fakes.
var ErrInjected = fmt.Errorf("%w: injected failure", services.ErrExtraction)
