// Package navigate implements goto, next and prev.
package navigate

import (
	"github.com/regenrek/panelctx/internal/cli/output"
	"github.com/regenrek/panelctx/internal/cli/root"
	"github.com/regenrek/panelctx/internal/controller"
	"github.com/regenrek/panelctx/internal/navigator"
)

func Register(reg *root.Registry) {
	reg.Register("nav.goto", func(ctx root.CommandContext) error {
		return focus(ctx, func(ctl *controller.Controller) (navigator.Entry, error) {
			return ctl.NavigateTo(ctx.Context, ctx.Arg("query"))
		})
	})
	reg.Register("nav.next", func(ctx root.CommandContext) error {
		return focus(ctx, func(ctl *controller.Controller) (navigator.Entry, error) {
			return ctl.CycleNext(ctx.Context)
		})
	})
	reg.Register("nav.prev", func(ctx root.CommandContext) error {
		return focus(ctx, func(ctl *controller.Controller) (navigator.Entry, error) {
			return ctl.CyclePrev(ctx.Context)
		})
	})
}

func focus(ctx root.CommandContext, move func(*controller.Controller) (navigator.Entry, error)) error {
	entry, err := move(ctx.Session.Controller)
	if err != nil {
		return err
	}
	return ctx.Write(output.Focus(entry), "focused %s", entry.Name)
}
