package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"slowmovie/internal/config"
	"slowmovie/internal/extract"
	"slowmovie/internal/logging"
	"slowmovie/internal/playback"
	"slowmovie/internal/playlist"
	"slowmovie/internal/preflight"
	"slowmovie/internal/services"
	"slowmovie/internal/state"
)

// readOnlyPositions satisfies playlist.PositionEnsurer without creating
// records, so status never mutates persisted state.
type readOnlyPositions struct{}

func (readOnlyPositions) EnsurePosition(context.Context, string) (bool, error) {
	return false, nil
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration, dependency checks, and playback positions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store state.Store) error {
				p := newStatusPrinter(cmd.OutOrStdout())
				runCtx := cmd.Context()

				p.section("Configuration")
				configKind := statusOK
				configMsg := ctx.configPath
				if !ctx.configExists {
					configKind = statusWarn
					configMsg = ctx.configPath + " (not found, using defaults)"
				}
				p.line("Config", configKind, configMsg)
				p.line("Video directory", statusInfo, cfg.Paths.VideoDir)
				p.line("State backend", statusInfo, cfg.State.Backend)
				p.line("Display", statusInfo, fmt.Sprintf("%s %dx%d", cfg.Display.Sink, cfg.Display.Width, cfg.Display.Height))
				if cfg.Display.Sink == config.SinkPNG {
					p.line("Keep frames", statusInfo, yesNo(cfg.Display.KeepFrames))
				}
				p.line("Frame delay", statusInfo, fmt.Sprintf("%gs, %g frames per tick", cfg.Playback.FrameDelay, cfg.Playback.Increment))
				fmt.Fprintln(p.out)

				p.section("Checks")
				for _, result := range preflight.RunAll(runCtx, cfg) {
					kind := statusOK
					switch {
					case !result.Passed && result.Warning:
						kind = statusWarn
					case !result.Passed:
						kind = statusError
					}
					p.line(result.Name, kind, result.Detail)
				}
				fmt.Fprintln(p.out)

				p.section("Playlist")
				list, err := playlist.Resolve(runCtx, cfg, readOnlyPositions{}, logging.NewNop())
				if err != nil {
					kind := statusError
					if errors.Is(err, services.ErrEmptyPlaylist) {
						kind = statusWarn
					}
					p.line("Playlist", kind, err.Error())
					return nil
				}
				source := "explicit"
				if list.Scanned {
					source = "directory scan"
				}
				p.line("Source", statusInfo, fmt.Sprintf("%s, %d videos", source, len(list.Videos)))
				for _, dropped := range list.Dropped {
					p.line("Missing", statusWarn, dropped)
				}
				if pinned := cfg.Playback.PinnedVideo; pinned != "" {
					kind := statusInfo
					if !list.Contains(pinned) {
						kind = statusWarn
					}
					p.line("Pinned", kind, pinned)
				}

				rows, err := playlistRows(runCtx, cfg, store, list, probe)
				if err != nil {
					return err
				}
				fmt.Fprintln(p.out, renderTable(
					[]string{"#", "Video", "Title", "Position", "Frames", "Progress", "Now"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&probe, "probe", false, "Probe each video for its frame count (runs ffprobe)")
	return cmd
}

func playlistRows(ctx context.Context, cfg *config.Config, store state.Store, list playlist.Playlist, probe bool) ([][]string, error) {
	snapshot, err := store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	current, ok, err := store.NowPlaying(ctx, list.Videos)
	if err != nil {
		return nil, err
	}
	if !ok {
		current = list.Videos[0]
	}

	var extractor extract.Extractor
	if probe {
		extractor = newExtractor(cfg)
	}

	rows := make([][]string, 0, len(list.Videos))
	for i, video := range list.Videos {
		position := 0.0
		if rec, found := snapshot.PositionOf(video); found {
			position = rec.Position
		}
		frames, pct := "-", "-"
		if extractor != nil {
			if meta, err := extractor.Probe(ctx, list.Path(video)); err != nil {
				frames = "error"
			} else {
				frames = strconv.FormatInt(meta.FrameCount, 10)
				pct = playback.Progress(position, meta.FrameCount)
			}
		}
		marker := ""
		if video == current {
			marker = "*"
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			video,
			displayTitle(video),
			strconv.FormatFloat(position, 'f', -1, 64),
			frames,
			pct,
			marker,
		})
	}
	return rows, nil
}
