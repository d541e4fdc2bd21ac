// Package entry is the process entry point shared by cmd/panelctx.
package entry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/regenrek/panelctx/internal/cli/app"
	"github.com/regenrek/panelctx/internal/cli/root"
	"github.com/regenrek/panelctx/internal/config"
	"github.com/regenrek/panelctx/internal/identity"
	"github.com/regenrek/panelctx/internal/logging"
)

// Run starts the CLI and returns the process exit code.
func Run(args []string, version string) int {
	appName := identity.ResolveBinaryName(args)
	mode := logging.ModeFromArgs(args)
	cfg, _, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: load config: %v\n", appName, err)
		return 1
	}
	closeLogger, err := logging.Init(cfg.Logging, logging.InitOptions{
		App:     identity.AppSlug,
		Version: version,
		Mode:    mode,
	})
	if err != nil {
		if mode == logging.ModeWatch {
			fmt.Fprintf(os.Stderr, "%s: init logging: %v\n", appName, err)
			return 1
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
		slog.Error("init logging failed; using stderr fallback", slog.Any("err", err))
	} else if closeLogger != nil {
		defer func() { _ = closeLogger() }()
	}

	deps := root.DefaultDependencies(version)
	deps.AppName = appName
	runner, err := app.NewRunner(deps)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return 1
	}
	if err := runner.Run(context.Background(), args); err != nil {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return 1
	}
	return 0
}
