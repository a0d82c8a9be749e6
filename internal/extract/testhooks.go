package extract

import (
	"context"
	"os/exec"

	"slowmovie/internal/media/ffprobe"
)

// SetProbeForTests overrides the ffprobe runner during tests.
func SetProbeForTests(fn func(context.Context, string, string) (ffprobe.Result, error)) func() {
	previous := inspect
	inspect = fn
	return func() {
		inspect = previous
	}
}

// SetCommandForTests overrides how external commands are constructed.
func SetCommandForTests(fn func(context.Context, string, ...string) *exec.Cmd) func() {
	previous := commandContext
	commandContext = fn
	return func() {
		commandContext = previous
	}
}
