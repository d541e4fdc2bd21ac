//go:build windows

package appdirs

import (
	"fmt"
	"os"
)

func DataDir() (string, error) {
	dir, err := DataDirPath()
	if err != nil {
		return "", err
	}
	return EnsurePrivateDir(dir, false)
}

func RuntimeDir() (string, error) {
	dir, err := RuntimeDirPath()
	if err != nil {
		return "", err
	}
	return EnsurePrivateDir(dir, false)
}

func EnsurePrivateDir(dir string, _ bool) (string, error) {
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
	return dir, nil
}
