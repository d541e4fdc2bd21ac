package appdirs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/regenrek/panelctx/internal/identity"
	"github.com/regenrek/panelctx/internal/runenv"
)

// ConfigDirPath returns the directory holding config.yml without creating it.
func ConfigDirPath() (string, error) {
	if override := runenv.ConfigDir(); override != "" {
		return override, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, identity.AppSlug), nil
}

// DataDirPath returns the directory holding the panel store without creating
// it. It defaults to the config dir.
func DataDirPath() (string, error) {
	if override := runenv.DataDir(); override != "" {
		return override, nil
	}
	return ConfigDirPath()
}

// RuntimeDirPath returns the directory for logs and transient state without creating it.
func RuntimeDirPath() (string, error) {
	if override := runenv.RuntimeDir(); override != "" {
		return override, nil
	}
	dir, err := ConfigDirPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "run"), nil
}

func DefaultConfigPath() (string, error) {
	dir, err := ConfigDirPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, identity.GlobalConfigFile), nil
}

func DefaultStorePath() (string, error) {
	dir, err := DataDirPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, identity.StoreFile), nil
}
