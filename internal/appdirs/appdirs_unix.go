//go:build !windows

package appdirs

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"syscall"

	"github.com/regenrek/panelctx/internal/runenv"
)

var privateDirWarnOnce sync.Once

// DataDir returns the data directory, creating it with 0700 when missing.
func DataDir() (string, error) {
	dir, err := DataDirPath()
	if err != nil {
		return "", err
	}
	return EnsurePrivateDir(dir, runenv.DataDir() != "")
}

// RuntimeDir returns the runtime directory, creating it with 0700 when missing.
func RuntimeDir() (string, error) {
	dir, err := RuntimeDirPath()
	if err != nil {
		return "", err
	}
	return EnsurePrivateDir(dir, runenv.RuntimeDir() != "")
}

// EnsurePrivateDir creates dir with 0700 or tightens an existing default dir
// owned by the current user. Overrides are only warned about.
func EnsurePrivateDir(dir string, isOverride bool) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("directory path is empty")
	}
	info, err := os.Stat(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("stat %s: %w", dir, err)
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return "", fmt.Errorf("create %s: %w", dir, err)
		}
		return dir, nil
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%q is not a directory", dir)
	}
	mode := info.Mode().Perm()
	if mode&0o077 == 0 {
		return dir, nil
	}
	if isOverride {
		privateDirWarnOnce.Do(func() {
			slog.Warn("state dir is group/world accessible; consider chmod 0700", "path", dir, "mode", mode.String())
		})
		return dir, nil
	}
	if ownedByCurrentUser(info) {
		if err := os.Chmod(dir, 0o700); err != nil {
			return "", fmt.Errorf("chmod %s: %w", dir, err)
		}
		return dir, nil
	}
	privateDirWarnOnce.Do(func() {
		slog.Warn("state dir is not owned by current user; permissions unchanged", "path", dir, "mode", mode.String())
	})
	return dir, nil
}

func ownedByCurrentUser(info os.FileInfo) bool {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return false
	}
	return stat.Uid == uint32(os.Getuid())
}
