// Package logging assembles structured slog loggers and formatting helpers used
// across slowmovie.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so the playback loop can tag log
// lines with the current video, tick number, playback state, and run ID. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
//
// The device runs headless, so every warning should carry enough context to be
// diagnosed from the log file alone: use WarnWithContext and ErrorWithContext
// to enforce event_type, error_hint, and impact fields.
package logging
