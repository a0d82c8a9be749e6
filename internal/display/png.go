package display

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"slowmovie/internal/fileutil"
	"slowmovie/internal/imaging"
	"slowmovie/internal/services"
)

// CurrentFrameName is the file PNGSink keeps up to date.
const CurrentFrameName = "current.png"

// PNGSink writes each displayed bitmap to <dir>/current.png. With keepFrames
// set every frame is also kept under a timestamped name.
type PNGSink struct {
	dir        string
	width      int
	height     int
	keepFrames bool
	now        func() time.Time
}

// NewPNGSink returns a sink writing into dir.
func NewPNGSink(dir string, width, height int, keepFrames bool) *PNGSink {
	return &PNGSink{dir: dir, width: width, height: height, keepFrames: keepFrames, now: time.Now}
}

// CurrentPath returns the location of the most recent frame.
func (s *PNGSink) CurrentPath() string {
	return filepath.Join(s.dir, CurrentFrameName)
}

func (s *PNGSink) Init(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return services.Wrap(services.ErrDisplay, "display", "init", s.dir, err)
	}
	return nil
}

// Clear writes an all-white frame.
func (s *PNGSink) Clear(ctx context.Context) error {
	return s.write(imaging.NewBitmap(s.width, s.height), false)
}

func (s *PNGSink) Display(ctx context.Context, bitmap *imaging.Bitmap) error {
	if err := checkBitmap(bitmap, s.width, s.height); err != nil {
		return err
	}
	return s.write(bitmap, s.keepFrames)
}

func (s *PNGSink) Sleep(ctx context.Context) error {
	return nil
}

func (s *PNGSink) write(bitmap *imaging.Bitmap, keep bool) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, bitmap.Image()); err != nil {
		return services.Wrap(services.ErrDisplay, "display", "encode png", "", err)
	}
	data := buf.Bytes()
	if err := fileutil.WriteFileAtomic(s.CurrentPath(), data, 0o644); err != nil {
		return services.Wrap(services.ErrDisplay, "display", "write png", s.CurrentPath(), err)
	}
	if keep {
		name := fmt.Sprintf("frame-%s.png", s.now().UTC().Format("20060102T150405.000"))
		target := filepath.Join(s.dir, name)
		if err := fileutil.WriteFileAtomic(target, data, 0o644); err != nil {
			return services.Wrap(services.ErrDisplay, "display", "write png", target, err)
		}
	}
	return nil
}
