package root

import (
	"context"
	"errors"

	"github.com/urfave/cli/v3"

	"github.com/regenrek/panelctx/internal/cli/spec"
	"github.com/regenrek/panelctx/internal/identity"
)

// Runner executes a built app.
type Runner struct {
	app *cli.Command
}

func NewRunner(doc *spec.Spec, deps Dependencies, reg *Registry) (*Runner, error) {
	app, err := BuildApp(doc, deps, reg)
	if err != nil {
		return nil, err
	}
	return &Runner{app: app}, nil
}

// Run parses args and runs the matching command. The app name follows argv[0]
// so help output matches how the binary was invoked.
func (r *Runner) Run(ctx context.Context, args []string) error {
	if r == nil || r.app == nil {
		return errors.New("runner is not initialized")
	}
	r.app.Name = identity.ResolveBinaryName(args)
	return r.app.Run(ctx, args)
}
