package imaging

import (
	"image"
	"image/color"
)

// Bitmap is a 1-bit image packed eight pixels per byte, most significant bit
// first, rows padded to a whole byte. A set bit is white, matching the frame
// buffer layout of common e-paper controllers.
type Bitmap struct {
	Width  int
	Height int
	Stride int
	Pix    []byte
}

// NewBitmap returns an all-white bitmap.
func NewBitmap(width, height int) *Bitmap {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	stride := (width + 7) / 8
	pix := make([]byte, stride*height)
	for i := range pix {
		pix[i] = 0xFF
	}
	return &Bitmap{Width: width, Height: height, Stride: stride, Pix: pix}
}

// White reports whether the pixel at (x, y) is white. Out of range
// coordinates read as white.
func (b *Bitmap) White(x, y int) bool {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return true
	}
	return b.Pix[y*b.Stride+x/8]&(0x80>>uint(x%8)) != 0
}

// Set colours the pixel at (x, y).
func (b *Bitmap) Set(x, y int, white bool) {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return
	}
	mask := byte(0x80 >> uint(x%8))
	idx := y*b.Stride + x/8
	if white {
		b.Pix[idx] |= mask
	} else {
		b.Pix[idx] &^= mask
	}
}

// Packed returns a copy of the frame buffer bytes.
func (b *Bitmap) Packed() []byte {
	return append([]byte(nil), b.Pix...)
}

// BlackPixels counts the black pixels in the bitmap.
func (b *Bitmap) BlackPixels() int {
	count := 0
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			if !b.White(x, y) {
				count++
			}
		}
	}
	return count
}

// Image expands the bitmap into an 8-bit grayscale image of pure black and
// white pixels, suitable for PNG encoding.
func (b *Bitmap) Image() *image.Gray {
	out := image.NewGray(image.Rect(0, 0, b.Width, b.Height))
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			if b.White(x, y) {
				out.SetGray(x, y, color.Gray{Y: 0xFF})
			}
		}
	}
	return out
}
