// Package restore implements persist, restore and watch.
package restore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/regenrek/panelctx/internal/cli/output"
	"github.com/regenrek/panelctx/internal/cli/root"
	"github.com/regenrek/panelctx/internal/runenv"
	"github.com/regenrek/panelctx/internal/userpath"
)

// exitPartial is the exit code when some panels could not be restored.
const exitPartial = 2

func Register(reg *root.Registry) {
	reg.Register("store.persist", runPersist)
	reg.Register("store.restore", runRestore)
	reg.Register("store.watch", runWatch)
}

func runPersist(ctx root.CommandContext) error {
	ctl := ctx.Session.Controller
	if err := ctl.Persist(ctx.Context); err != nil {
		return err
	}
	ps, err := ctl.Panels(ctx.Context)
	if err != nil {
		return err
	}
	path := ctx.Session.Config.Store.Path
	data := map[string]any{"path": path, "panels": len(ps)}
	return ctx.Write(data, "saved %d panels to %s", len(ps), userpath.ShortenUser(path))
}

func runRestore(ctx root.CommandContext) error {
	c, cancel := context.WithTimeout(ctx.Context, runenv.RestoreTimeout())
	defer cancel()
	report, err := ctx.Session.Controller.Restore(c)
	if err != nil {
		return err
	}
	if err := ctx.Write(output.Report(report), "%s", report.Summary()); err != nil {
		return err
	}
	if report.Err() != nil {
		return cli.Exit("", exitPartial)
	}
	return nil
}

func runWatch(ctx root.CommandContext) error {
	c, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	sess := ctx.Session
	if ctx.Cmd.Bool("restore") || sess.Config.Restore.OnStart {
		report, err := sess.Controller.Restore(c)
		if err != nil {
			return err
		}
		slog.Info("watch: restored on start", slog.String("summary", report.Summary()))
		fmt.Fprintln(ctx.ErrOut, report.Summary())
	}
	fmt.Fprintf(ctx.ErrOut, "watching %s (interrupt to stop)\n", userpath.ShortenUser(sess.Config.Store.Path))
	if err := sess.Controller.Watch(c); err != nil {
		return err
	}
	slog.Info("watch: stopped")
	return nil
}
