package catalog

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the sound directory and rescans the catalog on changes.
type Watcher struct {
	watcher *fsnotify.Watcher
	catalog *Catalog
	logger  *slog.Logger
	done    chan struct{}
	mu      sync.Mutex
	running bool
}

// NewWatcher creates a watcher over the catalog's sound directory.
func NewWatcher(catalog *Catalog, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher: watcher,
		catalog: catalog,
		logger:  logger,
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching the sound directory for changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addRecursive(w.catalog.Dir()); err != nil {
		return err
	}

	go w.watch()
	w.logger.Debug("sound directory watcher started", "dir", w.catalog.Dir())
	return nil
}

// addRecursive watches dir and every subdirectory under it, since the
// catalog scan is recursive.
func (w *Watcher) addRecursive(dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() || path == dir {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("failed to watch subdirectory", "dir", path, "error", err)
		}
		return nil
	})
}

// watch is the main watch loop.
func (w *Watcher) watch() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// New subdirectories must be watched too before their
			// contents can trigger rescans.
			if event.Has(fsnotify.Create) {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						w.logger.Warn("failed to watch subdirectory", "dir", event.Name, "error", err)
					}
					w.rescan(event.Name)
					continue
				}
			}
			if !strings.HasSuffix(strings.ToLower(event.Name), ".wav") {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.rescan(event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("sound directory watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) rescan(name string) {
	w.logger.Debug("sound directory changed, rescanning", "path", name)
	if _, err := w.catalog.Scan(); err != nil {
		w.logger.Warn("failed to rescan sound directory", "error", err)
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false
	close(w.done)
	return w.watcher.Close()
}
