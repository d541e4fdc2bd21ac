package app

import (
	"github.com/regenrek/panelctx/internal/cli/root"
	"github.com/regenrek/panelctx/internal/cli/spec"
)

// NewRunner builds the runner from the embedded command table with every
// handler package registered.
func NewRunner(deps root.Dependencies) (*root.Runner, error) {
	specDoc, err := spec.LoadDefault()
	if err != nil {
		return nil, err
	}
	reg := root.NewRegistry()
	registerAll(reg)
	return root.NewRunner(specDoc, deps, reg)
}
