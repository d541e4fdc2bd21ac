package identity

import (
	"path/filepath"
	"strings"
)

const (
	BrandName = "PanelCtx"
	// AppSlug is the canonical identifier for on-disk state.
	AppSlug = "panelctx"
	CLIName = "panelctx"

	GlobalConfigFile = "config.yml"
	StoreFile        = "panels.json"
	LogFile          = "panelctx.log"

	// PaneLabelOption is the tmux user option that carries a panel name on its pane.
	PaneLabelOption = "@panelctx"
)

// ResolveBinaryName picks the CLI name to show in help output from argv[0].
func ResolveBinaryName(args []string) string {
	if len(args) == 0 {
		return CLIName
	}
	return NormalizeCLIName(filepath.Base(args[0]))
}

// NormalizeCLIName maps aliases and unknown names onto CLIName.
func NormalizeCLIName(name string) string {
	trimmed := strings.ToLower(strings.TrimSpace(name))
	trimmed = strings.TrimSuffix(trimmed, ".exe")
	if trimmed == AppSlug {
		return AppSlug
	}
	return CLIName
}
