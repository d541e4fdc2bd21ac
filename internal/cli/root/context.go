package root

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/regenrek/panelctx/internal/cli/output"
	"github.com/regenrek/panelctx/internal/cli/spec"
)

// CommandContext wraps a command invocation.
type CommandContext struct {
	Context context.Context
	Args    []string
	Spec    spec.Command
	Cmd     *cli.Command
	Deps    Dependencies
	JSON    bool
	Out     io.Writer
	ErrOut  io.Writer
	// Session is set for commands marked session in the command table.
	Session *Session
	Started time.Time
}

// Arg returns the named positional argument.
func (c CommandContext) Arg(name string) string {
	if c.Cmd == nil {
		return ""
	}
	return c.Cmd.StringArg(name)
}

// Write prints data in the JSON envelope, or the formatted line otherwise.
func (c CommandContext) Write(data any, format string, args ...any) error {
	if c.JSON {
		meta := output.WithDuration(output.NewMeta(c.Spec.ID, c.Deps.Version), c.Started)
		return output.WriteSuccess(c.Out, meta, data)
	}
	_, err := fmt.Fprintf(c.Out, format+"\n", args...)
	return err
}
