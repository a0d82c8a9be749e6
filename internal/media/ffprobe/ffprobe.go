package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
	raw     []byte
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Duration     string `json:"duration"`
	NBFrames     string `json:"nb_frames"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	Disposition  struct {
		AttachedPic int `json:"attached_pic"`
	} `json:"disposition"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Rational is an exact num/den ratio as reported by ffprobe ("24000/1001").
type Rational struct {
	Num int64
	Den int64
}

// Float returns the ratio as a float, or 0 for an invalid rational.
func (r Rational) Float() float64 {
	if !r.Valid() {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Valid reports whether the rational describes a positive rate.
func (r Rational) Valid() bool {
	return r.Num > 0 && r.Den > 0
}

func (r Rational) String() string {
	if r.Den == 1 {
		return strconv.FormatInt(r.Num, 10)
	}
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// ParseRational parses "num/den" or a bare integer. ffprobe reports "0/0" for
// unknown rates, which parses as an invalid rational without error.
func ParseRational(value string) (Rational, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Rational{}, nil
	}
	numStr, denStr, found := strings.Cut(value, "/")
	if !found {
		denStr = "1"
	}
	num, err := strconv.ParseInt(strings.TrimSpace(numStr), 10, 64)
	if err != nil {
		return Rational{}, fmt.Errorf("parse rational %q: %w", value, err)
	}
	den, err := strconv.ParseInt(strings.TrimSpace(denStr), 10, 64)
	if err != nil {
		return Rational{}, fmt.Errorf("parse rational %q: %w", value, err)
	}
	return Rational{Num: num, Den: den}, nil
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}
	return Parse(output)
}

// Parse decodes an ffprobe JSON document.
func Parse(data []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	result.raw = append([]byte(nil), data...)
	return result, nil
}

// RawJSON returns the raw ffprobe JSON payload.
func (r Result) RawJSON() []byte {
	return append([]byte(nil), r.raw...)
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	count := 0
	for _, stream := range r.Streams {
		if isVideo(stream) {
			count++
		}
	}
	return count
}

// VideoStream returns the first real video stream, skipping embedded cover art.
func (r Result) VideoStream() (Stream, bool) {
	for _, stream := range r.Streams {
		if isVideo(stream) {
			return stream, true
		}
	}
	return Stream{}, false
}

func isVideo(stream Stream) bool {
	return strings.EqualFold(stream.CodecType, "video") && stream.Disposition.AttachedPic == 0
}

// FrameRate returns the native frame rate of the primary video stream.
// r_frame_rate is preferred; avg_frame_rate is used when it is missing.
func (r Result) FrameRate() (Rational, bool) {
	stream, ok := r.VideoStream()
	if !ok {
		return Rational{}, false
	}
	for _, candidate := range []string{stream.RFrameRate, stream.AvgFrameRate} {
		rate, err := ParseRational(candidate)
		if err == nil && rate.Valid() {
			return rate, true
		}
	}
	return Rational{}, false
}

// FrameCount returns the number of frames in the primary video stream. When
// the container does not record nb_frames the count is estimated from the
// duration and frame rate.
func (r Result) FrameCount() (int64, bool) {
	stream, ok := r.VideoStream()
	if !ok {
		return 0, false
	}
	if frames, err := strconv.ParseInt(strings.TrimSpace(stream.NBFrames), 10, 64); err == nil && frames > 0 {
		return frames, true
	}
	rate, ok := r.FrameRate()
	if !ok {
		return 0, false
	}
	duration := parseFloat(stream.Duration)
	if duration <= 0 || math.IsNaN(duration) {
		duration = r.DurationSeconds()
	}
	if duration <= 0 || math.IsNaN(duration) {
		return 0, false
	}
	frames := int64(math.Floor(duration * rate.Float()))
	if frames <= 0 {
		return 0, false
	}
	return frames, true
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
