package display

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"slowmovie/internal/imaging"
	"slowmovie/internal/services"
)

// CommandSink drives the panel through an external program invoked as
// "<command> init|clear|display|sleep". For display the packed frame buffer
// is written to the program's stdin. SLOWMOVIE_WIDTH and SLOWMOVIE_HEIGHT
// describe the panel.
type CommandSink struct {
	command string
	width   int
	height  int
}

// NewCommandSink returns a sink that shells out to command.
func NewCommandSink(command string, width, height int) *CommandSink {
	return &CommandSink{command: strings.TrimSpace(command), width: width, height: height}
}

func (s *CommandSink) Init(ctx context.Context) error {
	return s.run(ctx, "init", nil)
}

func (s *CommandSink) Clear(ctx context.Context) error {
	return s.run(ctx, "clear", nil)
}

func (s *CommandSink) Display(ctx context.Context, bitmap *imaging.Bitmap) error {
	if err := checkBitmap(bitmap, s.width, s.height); err != nil {
		return err
	}
	return s.run(ctx, "display", bitmap.Packed())
}

func (s *CommandSink) Sleep(ctx context.Context) error {
	return s.run(ctx, "sleep", nil)
}

func (s *CommandSink) run(ctx context.Context, operation string, stdin []byte) error {
	if s.command == "" {
		return services.Wrap(services.ErrDisplay, "display", operation, "no display command configured", nil)
	}
	cmd := exec.CommandContext(ctx, s.command, operation) //nolint:gosec
	cmd.Env = append(os.Environ(),
		"SLOWMOVIE_WIDTH="+strconv.Itoa(s.width),
		"SLOWMOVIE_HEIGHT="+strconv.Itoa(s.height),
	)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		return services.Wrap(services.ErrDisplay, "display", operation,
			fmt.Sprintf("%s: %s", s.command, strings.TrimSpace(string(output))), err)
	}
	return nil
}
