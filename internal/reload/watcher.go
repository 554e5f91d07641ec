// Package reload implements the guest-module and config hot-reload
// watcher (spec.md §4.9 addition): it watches files for writes and
// notifies a callback, without deciding what a reload means.
package reload

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher wraps an fsnotify.Watcher, filtering its directory-level events
// down to a fixed set of files of interest. fsnotify watches directories
// rather than individual files because editors and build tools commonly
// replace a file by rename instead of writing it in place, which an
// inode-level watch on the file itself would miss.
type Watcher struct {
	fsw    *fsnotify.Watcher
	logger *slog.Logger
	paths  map[string]bool
}

// New starts an OS-level watcher with nothing registered yet.
func New(logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{fsw: fsw, logger: logger, paths: make(map[string]bool)}, nil
}

// Watch registers paths as files of interest, adding their containing
// directories to the underlying watch set (directories may be shared;
// fsnotify.Watcher.Add is idempotent).
func (w *Watcher) Watch(paths ...string) error {
	for _, p := range paths {
		w.paths[p] = true
		if err := w.fsw.Add(filepath.Dir(p)); err != nil {
			return err
		}
	}
	return nil
}

// Run blocks, calling onChange(path) for every write or create event on
// one of the registered paths, until ctx is canceled or the watcher is
// closed. Runs on its own goroutine in the embedder, per spec.md §5.
func (w *Watcher) Run(ctx context.Context, onChange func(path string)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.paths[ev.Name] {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			onChange(ev.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warn("reload watcher error", "err", err)
			}
		}
	}
}

// Close releases the underlying OS watch handles.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
