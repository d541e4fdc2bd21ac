package panelstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/regenrek/panelctx/internal/logging"
)

const watchDebounce = 100 * time.Millisecond

// Watch signals when another process changes the store file. Writes made by
// this Store are not reported. The channel closes when ctx ends.
func (s *Store) Watch(ctx context.Context) (<-chan struct{}, error) {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return nil, fmt.Errorf("panelstore: watch dir: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("panelstore: watcher: %w", err)
	}
	// The directory is watched because atomic saves replace the file inode.
	if err := w.Add(s.dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("panelstore: watch %s: %w", s.dir, err)
	}
	out := make(chan struct{}, 1)
	go s.watchLoop(ctx, w, out)
	return out, nil
}

func (s *Store) watchLoop(ctx context.Context, w *fsnotify.Watcher, out chan<- struct{}) {
	defer close(out)
	defer w.Close()
	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !s.relevant(ev) {
				continue
			}
			timer.Reset(watchDebounce)
		case <-timer.C:
			if !s.changedOnDisk() {
				continue
			}
			select {
			case out <- struct{}{}:
			default:
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logging.LogEvery(ctx, "panelstore.watch", time.Minute, slog.LevelWarn,
				"panelstore: watch error", slog.Any("err", err))
		}
	}
}

func (s *Store) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != s.path {
		return false
	}
	return ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0
}
