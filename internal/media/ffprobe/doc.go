// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual stream properties including frame counts and rates
//   - Rational: an exact frame rate such as 24000/1001
//
// Primary entry point:
//   - Inspect: executes ffprobe and returns parsed Result
//
// Helper methods on Result locate the primary video stream and derive its
// frame count and native frame rate, estimating the count from duration when
// the container does not record it.
package ffprobe
