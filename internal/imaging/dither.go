package imaging

import (
	"fmt"
	"image"

	"slowmovie/internal/services"
)

// Dither reduces gray to 1 bit with Floyd-Steinberg error diffusion.
// Values at or above 128 become white.
func Dither(gray *image.Gray) *Bitmap {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	out := NewBitmap(width, height)
	if width == 0 || height == 0 {
		return out
	}

	// Two rows of accumulated error, one pixel of padding on each side.
	current := make([]int, width+2)
	next := make([]int, width+2)
	for y := 0; y < height; y++ {
		row := gray.Pix[gray.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
		for x := 0; x < width; x++ {
			value := int(row[x]) + current[x+1]/16
			var target int
			if value >= 128 {
				target = 255
			} else {
				out.Set(x, y, false)
			}
			diff := value - target
			current[x+2] += diff * 7
			next[x] += diff * 3
			next[x+1] += diff * 5
			next[x+2] += diff
		}
		current, next = next, current
		for i := range next {
			next[i] = 0
		}
	}
	return out
}

// Process adjusts img and dithers it into a bitmap that must be exactly
// width x height.
func Process(img image.Image, width, height int, brightness, contrast float64) (*Bitmap, error) {
	if img == nil {
		return nil, services.Wrap(services.ErrImageProcessing, "imaging", "process", "no image", nil)
	}
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		return nil, services.Wrap(services.ErrImageProcessing, "imaging", "process",
			fmt.Sprintf("image is %dx%d, display is %dx%d", b.Dx(), b.Dy(), width, height), nil)
	}
	if brightness < 0 || contrast < 0 {
		return nil, services.Wrap(services.ErrImageProcessing, "imaging", "process",
			fmt.Sprintf("negative factor (brightness=%v contrast=%v)", brightness, contrast), nil)
	}
	return Dither(Adjust(img, brightness, contrast)), nil
}
