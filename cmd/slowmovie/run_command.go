package main

import (
	"github.com/spf13/cobra"

	"slowmovie/internal/daemonrun"
)

// prepareRun adjusts run options before the player starts. Tests use it to
// inject fakes.
var prepareRun func(*daemonrun.Options)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts daemonrun.Options
	var noReload bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the player in the foreground",
		Long: "Run the player in the foreground, showing one frame per tick until interrupted.\n" +
			"The configuration file is re-read before every tick.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !noReload {
				opts.ConfigPath = ctx.configPath
			}
			if prepareRun != nil {
				prepareRun(&opts)
			}
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "Override the configured log level")
	cmd.Flags().BoolVar(&opts.Development, "dev", false, "Include source locations in logs")
	cmd.Flags().BoolVar(&opts.Diagnostic, "diagnostic", false, "Also write a debug JSON log under log_dir/debug")
	cmd.Flags().Uint64Var(&opts.MaxTicks, "ticks", 0, "Stop after this many ticks (0 runs forever)")
	cmd.Flags().BoolVar(&opts.SkipClear, "no-clear", false, "Do not clear the panel at startup")
	cmd.Flags().BoolVar(&noReload, "no-reload", false, "Ignore configuration edits while running")
	return cmd
}
