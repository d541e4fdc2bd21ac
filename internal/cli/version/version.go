package version

import (
	"github.com/regenrek/panelctx/internal/cli/output"
	"github.com/regenrek/panelctx/internal/cli/root"
	"github.com/regenrek/panelctx/internal/identity"
)

func Register(reg *root.Registry) {
	reg.Register("version", runVersion)
}

func runVersion(ctx root.CommandContext) error {
	name := ctx.Deps.AppName
	if name == "" {
		name = identity.CLIName
	}
	return ctx.Write(output.Version{Version: ctx.Deps.Version}, "%s %s", name, ctx.Deps.Version)
}
