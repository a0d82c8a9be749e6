// Package config loads, normalizes, and validates slowmovie configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and resolves per-video playback overrides on
// top of the [playback] defaults. The Config type centralizes every knob the
// playback loop and CLI need.
//
// The playback loop re-reads configuration on every tick, so Load must stay
// cheap and side-effect free. Directory creation lives in EnsureDirectories.
package config
