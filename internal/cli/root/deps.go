package root

import (
	"io"
	"os"

	"github.com/regenrek/panelctx/internal/identity"
)

// Dependencies provides external services for CLI handlers.
type Dependencies struct {
	Version string
	AppName string

	Stdout io.Writer
	Stderr io.Writer

	Open Opener
}

// DefaultDependencies returns dependencies wired to production services.
func DefaultDependencies(version string) Dependencies {
	return Dependencies{
		Version: version,
		AppName: identity.CLIName,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Open:    OpenSession,
	}
}
