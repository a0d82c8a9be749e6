// Package playback runs the slow movie state machine.
//
// Controller.Tick performs exactly one pass: resolve the playlist, pick the
// current video, extract and post-process the frame at its saved position,
// display it, then persist the advanced position and the video for the next
// tick. Nothing is persisted until the frame has been shown, so a crash
// mid-tick replays the same frame on restart.
//
// Scheduler.Run repeats ticks forever on a single goroutine. Sleeping between
// frames is the only suspension point and goes through an injectable Sleeper
// so tests can drive thousands of ticks instantly.
package playback
