package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"slowmovie/internal/config"
	"slowmovie/internal/extract"
	"slowmovie/internal/media/ffprobe"
)

// newExtractor builds the extractor used by probe, sample, and status.
// Tests replace it with a fake.
var newExtractor = func(cfg *config.Config) extract.Extractor {
	return extract.New(
		extract.WithFFmpegBinary(cfg.FFmpeg.FFmpegBinary),
		extract.WithFFprobeBinary(cfg.FFmpeg.FFprobeBinary),
	)
}

// inspectVideo runs ffprobe for the raw JSON view. Tests replace it.
var inspectVideo = ffprobe.Inspect

// resolveVideoPath accepts an existing path or a filename inside the video
// directory.
func resolveVideoPath(cfg *config.Config, value string) string {
	if filepath.IsAbs(value) {
		return value
	}
	if _, err := os.Stat(value); err == nil {
		if abs, err := filepath.Abs(value); err == nil {
			return abs
		}
		return value
	}
	return filepath.Join(cfg.Paths.VideoDir, value)
}

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe FILE",
		Short: "Print probe metadata for a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := resolveVideoPath(cfg, args[0])
			out := cmd.OutOrStdout()

			if asJSON {
				result, err := inspectVideo(cmd.Context(), cfg.FFmpeg.FFprobeBinary, path)
				if err != nil {
					return err
				}
				_, err = out.Write(append(result.RawJSON(), '\n'))
				return err
			}

			meta, err := newExtractor(cfg).Probe(cmd.Context(), path)
			if err != nil {
				return err
			}
			settings := cfg.PlaybackFor(filepath.Base(path))
			rate := meta.FrameRate.String()
			if !meta.RateFromStream {
				rate += " (assumed)"
			}
			duration := time.Duration(meta.Duration * float64(time.Second)).Round(time.Second)
			ticks := float64(meta.FrameCount) / settings.Increment
			runtime := time.Duration(ticks * float64(settings.FrameDelay))

			fmt.Fprintln(out, renderTable(
				[]string{"Field", "Value"},
				[][]string{
					{"File", path},
					{"Frames", strconv.FormatInt(meta.FrameCount, 10)},
					{"Frame rate", rate},
					{"Resolution", fmt.Sprintf("%dx%d", meta.Width, meta.Height)},
					{"Duration", duration.String()},
					{"Ticks to finish", humanize.Comma(int64(ticks))},
					{"Wall time to finish", strings.TrimSpace(humanize.RelTime(time.Now(), time.Now().Add(runtime), "", ""))},
				},
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw ffprobe JSON document")
	return cmd
}
