package root

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/regenrek/panelctx/internal/cli/output"
	"github.com/regenrek/panelctx/internal/cli/spec"
	"github.com/regenrek/panelctx/internal/panel"
)

// sessionCloseTimeout bounds the final persist when a command returns.
const sessionCloseTimeout = 10 * time.Second

type builder struct {
	doc  *spec.Spec
	deps Dependencies
	reg  *Registry
}

// BuildApp constructs a CLI app from the spec and registry.
func BuildApp(doc *spec.Spec, deps Dependencies, reg *Registry) (*cli.Command, error) {
	if doc == nil {
		return nil, fmt.Errorf("spec is nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	if err := reg.EnsureHandlers(doc); err != nil {
		return nil, err
	}
	if deps.Stdout == nil {
		deps.Stdout = io.Discard
	}
	if deps.Stderr == nil {
		deps.Stderr = io.Discard
	}
	if deps.Open == nil {
		deps.Open = OpenSession
	}
	b := builder{doc: doc, deps: deps, reg: reg}
	return b.app()
}

func (b builder) app() (*cli.Command, error) {
	flags, err := buildFlags(b.doc.GlobalFlags)
	if err != nil {
		return nil, err
	}
	app := &cli.Command{
		Name:      b.doc.App.Name,
		Usage:     b.doc.App.Summary,
		Flags:     flags,
		Writer:    b.deps.Stdout,
		ErrWriter: b.deps.Stderr,
		// Panel commands are shell lines; commas inside them are not separators.
		DisableSliceFlagSeparator: true,
		Action: func(_ context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
	}
	var restoreEnv func()
	app.Before = func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
		if cmd.Bool("version") {
			_, _ = fmt.Fprintf(b.deps.Stdout, "%s %s\n", cmd.Name, b.deps.Version)
			return ctx, cli.Exit("", 0)
		}
		cleanup, err := applyRunEnvFromFlags(cmd)
		restoreEnv = cleanup
		return ctx, err
	}
	app.After = func(context.Context, *cli.Command) error {
		if restoreEnv != nil {
			restoreEnv()
			restoreEnv = nil
		}
		return nil
	}
	for _, cmdSpec := range b.doc.Commands {
		cmd, err := b.command(cmdSpec)
		if err != nil {
			return nil, err
		}
		app.Commands = append(app.Commands, cmd)
	}
	return app, nil
}

func (b builder) command(cmdSpec spec.Command) (*cli.Command, error) {
	flags, err := buildFlags(cmdSpec.Flags)
	if err != nil {
		return nil, fmt.Errorf("flags for %s: %w", cmdSpec.ID, err)
	}
	cmd := &cli.Command{
		Name:        cmdSpec.Name,
		Aliases:     cmdSpec.Aliases,
		Usage:       cmdSpec.Summary,
		Description: cmdSpec.Description,
		Hidden:      cmdSpec.Hidden,
		Flags:       flags,
		ArgsUsage:   argsUsage(cmdSpec.Args),
		Arguments:   buildArguments(cmdSpec.Args),
	}
	for _, child := range cmdSpec.Subcommands {
		sub, err := b.command(child)
		if err != nil {
			return nil, err
		}
		cmd.Commands = append(cmd.Commands, sub)
	}
	if handler, ok := b.reg.HandlerFor(cmdSpec.ID); ok {
		cmd.Action = func(ctx context.Context, cliCmd *cli.Command) error {
			return b.run(ctx, cliCmd, cmdSpec, handler)
		}
	}
	return cmd, nil
}

// run validates the invocation, opens a session when the command needs one
// and maps a handler error to the JSON error envelope under --json.
func (b builder) run(ctx context.Context, cliCmd *cli.Command, cmdSpec spec.Command, handler Handler) (err error) {
	cc := CommandContext{
		Context: ctx,
		Args:    cliCmd.Args().Slice(),
		Spec:    cmdSpec,
		Cmd:     cliCmd,
		Deps:    b.deps,
		JSON:    cliCmd.Bool("json"),
		Out:     b.deps.Stdout,
		ErrOut:  b.deps.Stderr,
		Started: time.Now(),
	}
	if err := validateArgs(cmdSpec, cliCmd); err != nil {
		return err
	}
	if err := validateConstraints(cmdSpec, cliCmd); err != nil {
		return err
	}
	if cc.JSON && (cmdSpec.JSON == nil || !cmdSpec.JSON.Supported) {
		return fmt.Errorf("command %s does not support --json", cmdSpec.Name)
	}
	if cmdSpec.Session {
		sess, err := b.deps.Open(ctx, SessionOptions{
			ConfigPath: cliCmd.String("config"),
			Host:       cliCmd.String("host"),
			Watch:      cmdSpec.ID == "store.watch",
		})
		if err != nil {
			return b.fail(cc, err)
		}
		cc.Session = sess
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sessionCloseTimeout)
			defer cancel()
			if closeErr := sess.Close(closeCtx); closeErr != nil && err == nil {
				err = b.fail(cc, closeErr)
			}
		}()
	}
	if err := handler(cc); err != nil {
		return b.fail(cc, err)
	}
	return nil
}

func (b builder) fail(cc CommandContext, err error) error {
	var exit cli.ExitCoder
	if !cc.JSON || errors.As(err, &exit) {
		return err
	}
	meta := output.WithDuration(output.NewMeta(cc.Spec.ID, b.deps.Version), cc.Started)
	_ = output.WriteError(cc.Out, meta, string(panel.KindOf(err)), err.Error(), errorDetails(err))
	return cli.Exit("", 1)
}

func errorDetails(err error) map[string]any {
	var amb *panel.AmbiguousError
	if errors.As(err, &amb) {
		return map[string]any{"candidates": amb.Candidates}
	}
	return nil
}

func argsUsage(args []spec.Arg) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		name := strings.ToUpper(arg.Name)
		if arg.Variadic {
			name += "..."
		}
		if !arg.Required {
			name = "[" + name + "]"
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, " ")
}
