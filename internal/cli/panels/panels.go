// Package panels implements the panel management commands.
package panels

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/kballard/go-shellquote"

	"github.com/regenrek/panelctx/internal/cli/output"
	"github.com/regenrek/panelctx/internal/cli/root"
	"github.com/regenrek/panelctx/internal/panel"
)

func Register(reg *root.Registry) {
	reg.Register("panel.create", runCreate)
	reg.Register("panel.rename", runRename)
	reg.Register("panel.delete", runDelete)
	reg.Register("panel.set_commands", runSetCommands)
	reg.Register("panel.list", runList)
}

// ParseCommands checks that every command is a well-formed shell line.
func ParseCommands(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for i, cmd := range raw {
		cmd = strings.TrimSpace(cmd)
		if cmd == "" {
			return nil, fmt.Errorf("%w: command %d is empty", panel.ErrInvalidCommand, i+1)
		}
		if _, err := shellquote.Split(cmd); err != nil {
			return nil, fmt.Errorf("%w: command %d: %v", panel.ErrInvalidCommand, i+1, err)
		}
		out = append(out, cmd)
	}
	if err := panel.ValidateCommands(out); err != nil {
		return nil, err
	}
	return out, nil
}

func runCreate(ctx root.CommandContext) error {
	loc, err := panel.ParseLocation(ctx.Cmd.String("at"))
	if err != nil {
		return err
	}
	cmds, err := ParseCommands(ctx.Cmd.StringSlice("command"))
	if err != nil {
		return err
	}
	p, err := ctx.Session.Controller.Create(ctx.Context, ctx.Arg("name"), loc, cmds)
	if err != nil {
		return err
	}
	if err := ctx.Session.Flush(ctx.Context); err != nil {
		return err
	}
	return ctx.Write(output.Panel(p), "created %s in pane %s", p.Name, p.LiveRef)
}

func runRename(ctx root.CommandContext) error {
	ctl := ctx.Session.Controller
	from, to := ctx.Arg("name"), ctx.Arg("new_name")
	p, err := ctl.Find(ctx.Context, from)
	if err != nil {
		return err
	}
	if err := ctl.Rename(ctx.Context, p.ID, to); err != nil {
		return err
	}
	if err := ctx.Session.Flush(ctx.Context); err != nil {
		return err
	}
	return ctx.Write(output.RenameView{From: from, To: to}, "renamed %s to %s", from, to)
}

func runDelete(ctx root.CommandContext) error {
	ctl := ctx.Session.Controller
	p, err := ctl.Find(ctx.Context, ctx.Arg("name"))
	if err != nil {
		return err
	}
	if err := ctl.Delete(ctx.Context, p.ID); err != nil {
		return err
	}
	return ctx.Write(output.Panel(p), "deleted %s", p.Name)
}

func runSetCommands(ctx root.CommandContext) error {
	var cmds []string
	if !ctx.Cmd.Bool("clear") {
		parsed, err := ParseCommands(ctx.Cmd.StringSlice("command"))
		if err != nil {
			return err
		}
		cmds = parsed
	}
	ctl := ctx.Session.Controller
	p, err := ctl.Find(ctx.Context, ctx.Arg("name"))
	if err != nil {
		return err
	}
	if err := ctl.UpdateCommands(ctx.Context, p.ID, cmds); err != nil {
		return err
	}
	if err := ctx.Session.Flush(ctx.Context); err != nil {
		return err
	}
	p.Commands = cmds
	return ctx.Write(output.Panel(p), "%s: %d commands, applied on next restore", p.Name, len(cmds))
}

func runList(ctx root.CommandContext) error {
	ps, err := ctx.Session.Controller.Panels(ctx.Context)
	if err != nil {
		return err
	}
	if ctx.JSON {
		return ctx.Write(output.Panels(ps), "")
	}
	if len(ps) == 0 {
		_, err := fmt.Fprintln(ctx.Out, "no panels")
		return err
	}
	tw := tabwriter.NewWriter(ctx.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tLOCATION\tSTATUS\tCOMMANDS")
	for _, p := range ps {
		loc := p.Location.String()
		if loc == "" {
			loc = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", p.Name, loc, status(p), len(p.Commands))
	}
	return tw.Flush()
}

func status(p panel.Panel) string {
	if p.Status == panel.StatusFailed && p.Failure != "" {
		return fmt.Sprintf("%s (%s)", p.Status, p.Failure)
	}
	return string(p.Status)
}
