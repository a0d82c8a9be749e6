package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io/fs"
	"math"
	"os"
	"os/exec"
	"strings"

	"slowmovie/internal/media/ffprobe"
	"slowmovie/internal/services"
)

var (
	commandContext = exec.CommandContext
	inspect        = ffprobe.Inspect
)

// FixedFrameRate is assumed when a stream does not report its own rate or
// when the fixed frame rate policy is configured.
var FixedFrameRate = ffprobe.Rational{Num: 24000, Den: 1001}

// Metadata is what the controller needs to know about a video.
type Metadata struct {
	FrameCount int64
	FrameRate  ffprobe.Rational
	// RateFromStream is false when FrameRate fell back to FixedFrameRate.
	RateFromStream bool
	Width          int
	Height         int
	Duration       float64
}

// Extractor probes videos and extracts display-sized stills.
type Extractor interface {
	Probe(ctx context.Context, path string) (Metadata, error)
	ExtractFrame(ctx context.Context, path string, timecodeMs int64, width, height int) (image.Image, error)
}

// Option configures the FFmpeg extractor.
type Option func(*FFmpeg)

// WithFFmpegBinary overrides the ffmpeg executable.
func WithFFmpegBinary(binary string) Option {
	return func(f *FFmpeg) {
		if binary = strings.TrimSpace(binary); binary != "" {
			f.ffmpeg = binary
		}
	}
}

// WithFFprobeBinary overrides the ffprobe executable.
func WithFFprobeBinary(binary string) Option {
	return func(f *FFmpeg) {
		if binary = strings.TrimSpace(binary); binary != "" {
			f.ffprobe = binary
		}
	}
}

// FFmpeg drives the ffmpeg and ffprobe command line tools.
type FFmpeg struct {
	ffmpeg  string
	ffprobe string
}

// New constructs an FFmpeg extractor using PATH lookups by default.
func New(opts ...Option) *FFmpeg {
	f := &FFmpeg{ffmpeg: "ffmpeg", ffprobe: "ffprobe"}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Probe reports the frame count and native frame rate of the video at path.
func (f *FFmpeg) Probe(ctx context.Context, path string) (Metadata, error) {
	if err := checkVideo(path, "probe"); err != nil {
		return Metadata{}, err
	}
	result, err := inspect(ctx, f.ffprobe, path)
	if err != nil {
		return Metadata{}, services.Wrap(services.ErrExtraction, "extract", "probe", path, err)
	}
	return MetadataFromResult(result, path)
}

// MetadataFromResult derives Metadata from a parsed ffprobe result.
func MetadataFromResult(result ffprobe.Result, path string) (Metadata, error) {
	stream, ok := result.VideoStream()
	if !ok {
		return Metadata{}, services.Wrap(services.ErrExtraction, "extract", "probe", path, errors.New("no video stream"))
	}
	frames, ok := result.FrameCount()
	if !ok {
		return Metadata{}, services.Wrap(services.ErrExtraction, "extract", "probe", path, errors.New("frame count unavailable"))
	}
	meta := Metadata{
		FrameCount: frames,
		FrameRate:  FixedFrameRate,
		Width:      stream.Width,
		Height:     stream.Height,
		Duration:   result.DurationSeconds(),
	}
	if math.IsNaN(meta.Duration) {
		meta.Duration = 0
	}
	if rate, ok := result.FrameRate(); ok {
		meta.FrameRate = rate
		meta.RateFromStream = true
	}
	return meta, nil
}

// ExtractFrame returns the frame at timecodeMs scaled to fit inside
// width x height and padded with black to exactly that size.
func (f *FFmpeg) ExtractFrame(ctx context.Context, path string, timecodeMs int64, width, height int) (image.Image, error) {
	if err := checkVideo(path, "extract frame"); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, services.Wrap(services.ErrExtraction, "extract", "extract frame",
			fmt.Sprintf("invalid target size %dx%d", width, height), nil)
	}
	if timecodeMs < 0 {
		timecodeMs = 0
	}

	cmd := commandContext(ctx, f.ffmpeg, frameArgs(path, timecodeMs, width, height)...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, services.Wrap(services.ErrExtraction, "extract", "ffmpeg",
			fmt.Sprintf("%s at %dms: %s", path, timecodeMs, strings.TrimSpace(stderr.String())), err)
	}
	if stdout.Len() == 0 {
		// ffmpeg exits 0 without output when seeking past the last frame.
		return nil, services.Wrap(services.ErrExtraction, "extract", "ffmpeg",
			fmt.Sprintf("%s at %dms: no frame decoded", path, timecodeMs), nil)
	}
	img, err := png.Decode(&stdout)
	if err != nil {
		return nil, services.Wrap(services.ErrExtraction, "extract", "decode", path, err)
	}
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		return nil, services.Wrap(services.ErrExtraction, "extract", "decode",
			fmt.Sprintf("%s: frame is %dx%d, want %dx%d", path, b.Dx(), b.Dy(), width, height), nil)
	}
	return img, nil
}

func frameArgs(path string, timecodeMs int64, width, height int) []string {
	filter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black,setsar=1",
		width, height, width, height)
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-ss", fmt.Sprintf("%dms", timecodeMs),
		"-i", path,
		"-an", "-sn", "-dn",
		"-vf", filter,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-c:v", "png",
		"pipe:1",
	}
}

func checkVideo(path, operation string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrVideoNotFound, "extract", operation, path, err)
	}
	if err != nil {
		return services.Wrap(services.ErrExtraction, "extract", operation, path, err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrVideoNotFound, "extract", operation, path+" is a directory", nil)
	}
	return nil
}

// TimecodeMillis converts a frame position to a seek offset in milliseconds.
// Fractional positions are allowed.
func TimecodeMillis(position float64, rate ffprobe.Rational) int64 {
	if !rate.Valid() {
		rate = FixedFrameRate
	}
	if position <= 0 {
		return 0
	}
	return int64(math.Floor(position * 1000 * float64(rate.Den) / float64(rate.Num)))
}
