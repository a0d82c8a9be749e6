package imaging

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

// Grayscale converts img to 8-bit luminance using ITU-R 601-2 luma weights.
func Grayscale(img image.Image) *image.Gray {
	bounds := img.Bounds()
	out := image.NewGray(bounds)
	if _, ok := img.(*image.Gray); ok {
		draw.Draw(out, bounds, img, bounds.Min, draw.Src)
		return out
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			lum := (299*(r>>8) + 587*(g>>8) + 114*(b>>8) + 500) / 1000
			out.SetGray(x, y, color.Gray{Y: uint8(lum)})
		}
	}
	return out
}

// Adjust applies brightness then contrast to a grayscale copy of img.
// Brightness scales every value; contrast scales the distance of every value
// from the mean luminance. Results are clamped to [0, 255].
func Adjust(img image.Image, brightness, contrast float64) *image.Gray {
	gray := Grayscale(img)
	if brightness != 1.0 {
		apply(gray, func(v float64) float64 { return v * brightness })
	}
	if contrast != 1.0 {
		mean := math.Floor(meanLuminance(gray) + 0.5)
		apply(gray, func(v float64) float64 { return mean + (v-mean)*contrast })
	}
	return gray
}

func apply(gray *image.Gray, fn func(float64) float64) {
	var lut [256]uint8
	for i := range lut {
		lut[i] = clamp(fn(float64(i)))
	}
	for i, v := range gray.Pix {
		gray.Pix[i] = lut[v]
	}
}

func meanLuminance(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	count := bounds.Dx() * bounds.Dy()
	if count == 0 {
		return 0
	}
	var sum uint64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := gray.Pix[gray.PixOffset(bounds.Min.X, y):gray.PixOffset(bounds.Max.X, y)]
		for _, v := range row {
			sum += uint64(v)
		}
	}
	return float64(sum) / float64(count)
}

func clamp(v float64) uint8 {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
