// Package panelstore persists panel records as a versioned JSON document.
package panelstore

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/regenrek/panelctx/internal/atomicfile"
	"github.com/regenrek/panelctx/internal/limits"
	"github.com/regenrek/panelctx/internal/panel"
	"github.com/regenrek/panelctx/internal/userpath"
)

const quarantineDirName = "quarantine"

// Store reads and writes one store file. Load and Save perform blocking I/O
// and are safe for concurrent use.
type Store struct {
	path string
	dir  string
	now  func() time.Time

	mu       sync.Mutex
	lastSeen [sha256.Size]byte
	haveSeen bool
}

func New(path string) (*Store, error) {
	path = userpath.Clean(path)
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("panelstore: path is required")
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return &Store{path: path, dir: filepath.Dir(path), now: time.Now}, nil
}

func (s *Store) Path() string { return s.path }

// Load returns the stored records. A missing file yields no records. A corrupt
// file is copied into quarantine/ and reported as panel.ErrStoreCorrupt; an
// unreadable one is reported the same way without a copy.
func (s *Store) Load(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		if errors.Is(err, panel.ErrStoreCorrupt) {
			return nil, err
		}
		return nil, fmt.Errorf("panelstore: open %s: %w: %v", s.path, panel.ErrStoreCorrupt, err)
	}
	records, err := decode(data)
	if err == nil {
		err = validate(records)
	}
	if err != nil {
		if errors.Is(err, panel.ErrStoreCorrupt) {
			s.quarantine(data)
		}
		return nil, fmt.Errorf("panelstore: load %s: %w", s.path, err)
	}
	s.remember(data)
	return records, nil
}

func (s *Store) read() ([]byte, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limits.StoreMaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("panelstore: read %s: %w: %v", s.path, panel.ErrStoreCorrupt, err)
	}
	if int64(len(data)) > limits.StoreMaxBytes {
		return nil, fmt.Errorf("panelstore: %s exceeds %d bytes: %w", s.path, limits.StoreMaxBytes, panel.ErrStoreCorrupt)
	}
	return data, nil
}

// Save replaces the store with records. Failures wrap panel.ErrStoreWriteError
// and are not retried.
func (s *Store) Save(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(records); err != nil {
		return fmt.Errorf("panelstore: refusing to save: %w", err)
	}
	data, err := encode(records, s.now())
	if err != nil {
		return fmt.Errorf("panelstore: encode: %w: %v", panel.ErrStoreWriteError, err)
	}
	if err := atomicfile.Save(s.path, data, 0o600); err != nil {
		return fmt.Errorf("panelstore: %w: %v", panel.ErrStoreWriteError, err)
	}
	s.remember(data)
	return nil
}

func (s *Store) remember(data []byte) {
	sum := sha256.Sum256(data)
	s.mu.Lock()
	s.lastSeen = sum
	s.haveSeen = true
	s.mu.Unlock()
}

// changedOnDisk reports whether the file differs from what this Store last
// loaded or wrote.
func (s *Store) changedOnDisk() bool {
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return errors.Is(err, os.ErrNotExist) && s.haveSeen
	}
	sum := sha256.Sum256(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.haveSeen || sum != s.lastSeen
}

func (s *Store) quarantine(data []byte) {
	stamp := s.now().UTC().Format("20060102-150405.000")
	target := filepath.Join(s.dir, quarantineDirName, filepath.Base(s.path)+"-"+stamp)
	if err := atomicfile.Save(target, data, 0o600); err != nil {
		slog.Warn("panelstore: quarantine failed", slog.String("path", target), slog.Any("err", err))
		return
	}
	slog.Warn("panelstore: corrupt store quarantined", slog.String("path", s.path), slog.String("copy", target))
}
