// Package playlist decides which videos are played and in what order.
//
// An explicit playlist from configuration is honoured in order, minus any
// entries whose files are missing. Without one, the video directory is
// scanned for supported containers and sorted by name. Every resolved video
// gets a zero position record if it has none yet.
package playlist
