// Package daemonrun wires the long-running player process: per-run log
// files, readiness checks, the single-instance lock, the state store, the
// display sink, and the playback scheduler.
package daemonrun
