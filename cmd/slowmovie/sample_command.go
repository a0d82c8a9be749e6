package main

import (
	"bytes"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"slowmovie/internal/extract"
	"slowmovie/internal/fileutil"
	"slowmovie/internal/imaging"
	"slowmovie/internal/playback"
)

func newSampleCommand(ctx *commandContext) *cobra.Command {
	var file string
	var count int
	var outDir string

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Render evenly spaced frames of a video to PNG files",
		Long: "Render evenly spaced frames of a video through the same extraction and\n" +
			"dithering path as playback. Playback state is not touched.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(file) == "" {
				return fmt.Errorf("--file is required")
			}
			if count <= 0 {
				return fmt.Errorf("--count must be positive")
			}
			dir := strings.TrimSpace(outDir)
			if dir == "" {
				dir = filepath.Join(cfg.Paths.StateDir, "samples")
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}

			path := resolveVideoPath(cfg, file)
			video := filepath.Base(path)
			settings := cfg.PlaybackFor(video)
			extractor := newExtractor(cfg)
			runCtx := cmd.Context()

			meta, err := extractor.Probe(runCtx, path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s has %d frames\n", video, meta.FrameCount)

			rate := playback.FrameRate(settings.FrameRatePolicy, meta)
			base := strings.TrimSuffix(video, filepath.Ext(video))
			for i, frame := range samplePositions(meta.FrameCount, count) {
				timecode := extract.TimecodeMillis(float64(frame), rate)
				img, err := extractor.ExtractFrame(runCtx, path, timecode, cfg.Display.Width, cfg.Display.Height)
				if err != nil {
					return err
				}
				bitmap, err := imaging.Process(img, cfg.Display.Width, cfg.Display.Height, settings.Brightness, settings.Contrast)
				if err != nil {
					return err
				}
				var buf bytes.Buffer
				if err := png.Encode(&buf, bitmap.Image()); err != nil {
					return fmt.Errorf("encode sample: %w", err)
				}
				target := filepath.Join(dir, fmt.Sprintf("%s-%d.png", base, i))
				if err := fileutil.WriteFileAtomic(target, buf.Bytes(), 0o644); err != nil {
					return err
				}
				fmt.Fprintf(out, "frame %d (%dms) -> %s\n", frame, timecode, target)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Video file name or path")
	cmd.Flags().IntVarP(&count, "count", "n", 10, "Number of frames to render")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default <state_dir>/samples)")
	return cmd
}

// samplePositions spreads count frame positions evenly from the first frame.
// Positions repeat when the video has fewer frames than count.
func samplePositions(frameCount int64, count int) []int64 {
	if frameCount <= 0 || count <= 0 {
		return nil
	}
	positions := make([]int64, count)
	for i := range positions {
		positions[i] = int64(i) * frameCount / int64(count)
	}
	return positions
}
