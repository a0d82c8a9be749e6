// Package extract pulls single stills out of video files.
//
// FFmpeg implements Extractor by probing with ffprobe and asking ffmpeg for
// one frame, scaled to fit and letterboxed to the panel size, streamed back
// as PNG over stdout so nothing touches the disk.
package extract
