// Package display delivers dithered bitmaps to the panel.
//
// Two sinks are provided. PNGSink renders every frame to a PNG file, which is
// handy for development and for panels fed by another process. CommandSink
// hands each panel operation to an external driver program, passing the
// packed frame buffer on stdin for display.
package display
