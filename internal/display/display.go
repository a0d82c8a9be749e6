package display

import (
	"context"
	"fmt"

	"slowmovie/internal/config"
	"slowmovie/internal/imaging"
	"slowmovie/internal/services"
)

// Sink is an e-paper panel. Init wakes the panel, Sleep powers it down.
type Sink interface {
	Init(ctx context.Context) error
	Clear(ctx context.Context) error
	Display(ctx context.Context, bitmap *imaging.Bitmap) error
	Sleep(ctx context.Context) error
}

// New constructs the sink selected in cfg.
func New(cfg *config.Config) (Sink, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "display", "new", "config is required", nil)
	}
	switch cfg.Display.Sink {
	case config.SinkPNG:
		return NewPNGSink(cfg.Display.OutputDir, cfg.Display.Width, cfg.Display.Height, cfg.Display.KeepFrames), nil
	case config.SinkCommand:
		return NewCommandSink(cfg.Display.Command, cfg.Display.Width, cfg.Display.Height), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "display", "new",
			fmt.Sprintf("unsupported sink %q", cfg.Display.Sink), nil)
	}
}

func checkBitmap(bitmap *imaging.Bitmap, width, height int) error {
	if bitmap == nil {
		return services.Wrap(services.ErrImageProcessing, "display", "display", "no bitmap", nil)
	}
	if bitmap.Width != width || bitmap.Height != height {
		return services.Wrap(services.ErrImageProcessing, "display", "display",
			fmt.Sprintf("bitmap is %dx%d, panel is %dx%d", bitmap.Width, bitmap.Height, width, height), nil)
	}
	return nil
}
