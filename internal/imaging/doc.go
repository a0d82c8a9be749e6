// Package imaging turns extracted video frames into 1-bit e-paper bitmaps.
//
// Processing is grayscale conversion, a brightness factor, a contrast factor
// around the mean luminance, then Floyd-Steinberg error diffusion down to
// black and white. A factor of 1.0 leaves the image unchanged.
package imaging
