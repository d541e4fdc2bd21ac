package app

import (
	"github.com/regenrek/panelctx/internal/cli/navigate"
	"github.com/regenrek/panelctx/internal/cli/panels"
	"github.com/regenrek/panelctx/internal/cli/restore"
	"github.com/regenrek/panelctx/internal/cli/root"
	"github.com/regenrek/panelctx/internal/cli/version"
)

func registerAll(reg *root.Registry) {
	if reg == nil {
		return
	}
	panels.Register(reg)
	navigate.Register(reg)
	restore.Register(reg)
	version.Register(reg)
}
