package artifact

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates every artifact when the SQLite database file changes.
type Watcher struct {
	cache    *Cache
	fsw      *fsnotify.Watcher
	names    map[string]bool
	onChange []func()
	logger   *slog.Logger
}

// NewWatcher starts watching the directory containing dbPath. Changes to the
// database file or its -wal and -journal companions trigger invalidation;
// onChange callbacks run after each invalidation.
func NewWatcher(cache *Cache, dbPath string, logger *slog.Logger, onChange ...func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create database watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(dbPath)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(dbPath), err)
	}

	base := filepath.Base(dbPath)
	return &Watcher{
		cache: cache,
		fsw:   fsw,
		names: map[string]bool{
			base:              true,
			base + "-wal":     true,
			base + "-journal": true,
		},
		onChange: onChange,
		logger:   logger,
	}, nil
}

// Run processes filesystem events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Info("database changed, invalidating artifacts", "file", event.Name, "op", event.Op.String())
			if err := w.cache.InvalidateAll(); err != nil {
				w.logger.Error("invalidate artifacts failed", "error", err)
			}
			for _, fn := range w.onChange {
				fn()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("database watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !w.names[filepath.Base(event.Name)] {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}
