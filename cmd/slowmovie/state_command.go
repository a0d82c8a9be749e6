package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"slowmovie/internal/config"
	"slowmovie/internal/logging"
	"slowmovie/internal/playlist"
	"slowmovie/internal/state"
)

func newStateCommand(ctx *commandContext) *cobra.Command {
	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect and edit persisted playback state",
		Long: "Inspect and edit persisted playback state.\n" +
			"Stop the player first; edits made while it runs may be overwritten on the next tick.",
	}

	stateCmd.AddCommand(newStateShowCommand(ctx))
	stateCmd.AddCommand(newStateSetPositionCommand(ctx))
	stateCmd.AddCommand(newStateSetNowPlayingCommand(ctx))
	stateCmd.AddCommand(newStateResetCommand(ctx))

	return stateCmd
}

func newStateShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "List stored positions and the current video",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store state.Store) error {
				snapshot, err := store.Snapshot(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				nowPlaying := snapshot.NowPlaying
				if nowPlaying == "" {
					nowPlaying = "(none)"
				}
				fmt.Fprintf(out, "Backend: %s\n", cfg.State.Backend)
				fmt.Fprintf(out, "Now playing: %s\n", nowPlaying)
				if len(snapshot.Positions) == 0 {
					fmt.Fprintln(out, "No positions recorded")
					return nil
				}
				rows := make([][]string, 0, len(snapshot.Positions))
				for _, rec := range snapshot.Positions {
					updated := "-"
					if !rec.UpdatedAt.IsZero() {
						updated = humanize.Time(rec.UpdatedAt)
					}
					rows = append(rows, []string{rec.Video, strconv.FormatFloat(rec.Position, 'f', -1, 64), updated})
				}
				fmt.Fprintln(out, renderTable([]string{"Video", "Position", "Updated"}, rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft}))
				return nil
			})
		},
	}
}

func newStateSetPositionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-position VIDEO FRAME",
		Short: "Set the stored frame position of a video",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := strconv.ParseFloat(strings.TrimSpace(args[1]), 64)
			if err != nil {
				return fmt.Errorf("invalid frame %q: %w", args[1], err)
			}
			return ctx.withStore(func(_ *config.Config, store state.Store) error {
				if err := store.SetPosition(cmd.Context(), args[0], position); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s position set to %s\n", args[0], strconv.FormatFloat(position, 'f', -1, 64))
				return nil
			})
		},
	}
}

func newStateSetNowPlayingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-now-playing VIDEO",
		Short: "Choose the video shown on the next tick",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store state.Store) error {
				list, err := playlist.Resolve(cmd.Context(), cfg, readOnlyPositions{}, logging.NewNop())
				if err != nil {
					return err
				}
				video := args[0]
				if !list.Contains(video) {
					return fmt.Errorf("%s is not in the playlist", video)
				}
				if err := store.SetNowPlaying(cmd.Context(), video); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Now playing set to %s\n", video)
				return nil
			})
		},
	}
}

func newStateResetCommand(ctx *commandContext) *cobra.Command {
	var all bool
	var forget bool

	cmd := &cobra.Command{
		Use:   "reset [VIDEO]",
		Short: "Rewind stored positions to the first frame",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("specify exactly one of VIDEO or --all")
			}
			return ctx.withStore(func(_ *config.Config, store state.Store) error {
				runCtx := cmd.Context()
				videos := args
				if all {
					snapshot, err := store.Snapshot(runCtx)
					if err != nil {
						return err
					}
					videos = nil
					for _, rec := range snapshot.Positions {
						videos = append(videos, rec.Video)
					}
				}
				for _, video := range videos {
					var err error
					if forget {
						err = store.Forget(runCtx, video)
					} else {
						err = store.SetPosition(runCtx, video, 0)
					}
					if err != nil {
						return err
					}
				}
				action := "Reset"
				if forget {
					action = "Forgot"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d %s\n", action, len(videos), pluralize(len(videos), "video", "videos"))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Reset every stored video")
	cmd.Flags().BoolVar(&forget, "forget", false, "Delete the records instead of rewinding them")
	return cmd
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
