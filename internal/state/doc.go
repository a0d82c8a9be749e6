// Package state persists playback progress: one frame position per video and
// the single NowPlaying record naming the video the next tick will show.
//
// Two backends implement Store. The SQLite backend (default) keeps both record
// kinds in playback.db and commits a tick's position and NowPlaying update in
// one transaction. The files backend keeps one small text file per video plus
// a now_playing file, each replaced atomically via temp-file rename, which
// matches the layout operators may already have on existing devices.
//
// Every write is write-through: nothing is buffered across ticks, so a crash
// loses at most the tick in progress. All failures are tagged with
// services.ErrStorage.
package state
