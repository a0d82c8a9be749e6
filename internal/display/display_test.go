package display

import (
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"slowmovie/internal/config"
	"slowmovie/internal/imaging"
	"slowmovie/internal/services"
)

func TestPNGSinkWritesCurrentFrame(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	sink := NewPNGSink(dir, 10, 4, false)
	ctx := context.Background()
	if err := sink.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	bm := imaging.NewBitmap(10, 4)
	bm.Set(2, 1, false)
	if err := sink.Display(ctx, bm); err != nil {
		t.Fatalf("Display: %v", err)
	}

	f, err := os.Open(sink.CurrentPath())
	if err != nil {
		t.Fatalf("open current frame: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 10 || b.Dy() != 4 {
		t.Fatalf("unexpected bounds %v", b)
	}
	if r, _, _, _ := img.At(2, 1).RGBA(); r != 0 {
		t.Fatalf("expected black pixel at (2,1)")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected only current.png without keep_frames, got %d entries", len(entries))
	}
}

func TestPNGSinkKeepsHistory(t *testing.T) {
	dir := t.TempDir()
	sink := NewPNGSink(dir, 8, 8, true)
	tick := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sink.now = func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := sink.Display(ctx, imaging.NewBitmap(8, 8)); err != nil {
			t.Fatalf("Display: %v", err)
		}
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "frame-*.png"))
	if len(matches) != 3 {
		t.Fatalf("expected 3 kept frames, got %v", matches)
	}
}

func TestPNGSinkRejectsWrongSize(t *testing.T) {
	sink := NewPNGSink(t.TempDir(), 8, 8, false)
	err := sink.Display(context.Background(), imaging.NewBitmap(4, 4))
	if !errors.Is(err, services.ErrImageProcessing) {
		t.Fatalf("expected image processing error, got %v", err)
	}
}

func TestCommandSinkPassesBufferOnStdin(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "panel.sh")
	body := "#!/bin/sh\necho \"$1 $SLOWMOVIE_WIDTH $SLOWMOVIE_HEIGHT\" >> " + filepath.Join(dir, "ops.log") + "\n" +
		"if [ \"$1\" = display ]; then cat > " + filepath.Join(dir, "buffer.bin") + "; fi\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	sink := NewCommandSink(script, 16, 2)
	ctx := context.Background()
	bm := imaging.NewBitmap(16, 2)
	bm.Set(0, 0, false)
	for _, step := range []func() error{
		func() error { return sink.Init(ctx) },
		func() error { return sink.Display(ctx, bm) },
		func() error { return sink.Sleep(ctx) },
	} {
		if err := step(); err != nil {
			t.Fatalf("command sink step: %v", err)
		}
	}

	ops, err := os.ReadFile(filepath.Join(dir, "ops.log"))
	if err != nil {
		t.Fatalf("read ops: %v", err)
	}
	if got := strings.TrimSpace(string(ops)); got != "init 16 2\ndisplay 16 2\nsleep 16 2" {
		t.Fatalf("unexpected operations:\n%s", got)
	}
	buffer, err := os.ReadFile(filepath.Join(dir, "buffer.bin"))
	if err != nil {
		t.Fatalf("read buffer: %v", err)
	}
	if len(buffer) != 4 || buffer[0] != 0x7F || buffer[1] != 0xFF {
		t.Fatalf("unexpected buffer % x", buffer)
	}
}

func TestCommandSinkFailureIsDisplayError(t *testing.T) {
	script := filepath.Join(t.TempDir(), "broken.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho 'spi timeout' >&2\nexit 3\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	err := NewCommandSink(script, 8, 8).Init(context.Background())
	if !errors.Is(err, services.ErrDisplay) {
		t.Fatalf("expected display error, got %v", err)
	}
	if !strings.Contains(err.Error(), "spi timeout") {
		t.Fatalf("expected driver output in error, got %v", err)
	}
}

func TestNewSelectsSink(t *testing.T) {
	cfg := config.Default()
	cfg.Display.OutputDir = t.TempDir()
	sink, err := New(&cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := sink.(*PNGSink); !ok {
		t.Fatalf("expected PNG sink, got %T", sink)
	}
	cfg.Display.Sink = config.SinkCommand
	cfg.Display.Command = "/usr/local/bin/epd"
	sink, err = New(&cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := sink.(*CommandSink); !ok {
		t.Fatalf("expected command sink, got %T", sink)
	}
	cfg.Display.Sink = "hdmi"
	if _, err := New(&cfg); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
