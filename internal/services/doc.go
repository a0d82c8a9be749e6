// Package services defines shared utilities consumed by the playback
// controller and the external collaborators it drives.
//
// Key responsibilities:
//   - Context helpers that stamp the current video, tick number, playback
//     state, and run identifier for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into "skip and retry" versus process-fatal.
//
// Use these helpers when wiring new collaborators so operational behaviour
// (error handling, observability, retries) stays uniform across the loop.
package services
