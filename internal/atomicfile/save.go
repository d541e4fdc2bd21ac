// Package atomicfile replaces files through a synced temp file and rename so
// readers never observe a partial write.
package atomicfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const defaultPerm os.FileMode = 0o600

// Save writes data to path atomically.
func Save(path string, data []byte, perm os.FileMode) error {
	return Write(path, perm, func(w io.Writer) error {
		_, err := io.Copy(w, bytes.NewReader(data))
		return err
	})
}

// Write streams the output of fill into a temp file next to path and renames it
// into place once fill succeeds. The temp file is removed on any failure.
func Write(path string, perm os.FileMode, fill func(io.Writer) error) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("atomicfile: path is required")
	}
	if fill == nil {
		return errors.New("atomicfile: writer func is required")
	}
	if perm == 0 {
		perm = defaultPerm
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("atomicfile: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("atomicfile: create temp: %w", err)
	}
	name := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(name)
		}
	}()
	if err := writeTemp(tmp, perm, fill); err != nil {
		return err
	}
	if err := replace(name, path); err != nil {
		return fmt.Errorf("atomicfile: replace file: %w", err)
	}
	committed = true
	_ = os.Chmod(path, perm)
	return nil
}

func writeTemp(tmp *os.File, perm os.FileMode, fill func(io.Writer) error) error {
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("atomicfile: chmod temp: %w", err)
	}
	if err := fill(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("atomicfile: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("atomicfile: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("atomicfile: close temp: %w", err)
	}
	return nil
}

// replace renames src over dst, retrying once after removing dst for
// platforms where rename does not overwrite.
func replace(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if removeErr := os.Remove(dst); removeErr != nil && !os.IsNotExist(removeErr) {
		return err
	}
	return os.Rename(src, dst)
}
