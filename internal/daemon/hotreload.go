package daemon

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jmylchreest/thor/internal/bridge"
)

// Poster is the part of the event bridge background goroutines post to.
type Poster interface {
	Post(ev bridge.Event) bool
}

// ConfigWatcher reports changes to the config file and the active theme
// files as one debounced EventConfigChanged.
//
// Directories are watched rather than the files themselves so that
// editors replacing a file by rename are still seen.
type ConfigWatcher struct {
	logger   *slog.Logger
	poster   Poster
	watcher  *fsnotify.Watcher
	finished chan struct{}

	mu       sync.Mutex
	debounce time.Duration
	files    map[string]bool
	dirs     []string
	timer    *time.Timer
	pending  string
	closed   bool
}

// NewConfigWatcher starts a watcher that posts to poster. Nothing is
// watched until Watch is called.
func NewConfigWatcher(poster Poster, debounce time.Duration, logger *slog.Logger) (*ConfigWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &ConfigWatcher{
		logger:   logger,
		poster:   poster,
		watcher:  fw,
		finished: make(chan struct{}),
		debounce: debounce,
		files:    make(map[string]bool),
	}
	go w.run()
	return w, nil
}

// Watch replaces the watched set with paths. Files that do not exist yet
// are still reported once they are created, as long as their directory
// exists.
func (w *ConfigWatcher) Watch(paths ...string) error {
	files := make(map[string]bool, len(paths))
	var dirs []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		p = filepath.Clean(p)
		files[p] = true
		if dir := filepath.Dir(p); !slices.Contains(dirs, dir) {
			dirs = append(dirs, dir)
		}
	}
	slices.Sort(dirs)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}

	for _, dir := range w.dirs {
		if !slices.Contains(dirs, dir) {
			_ = w.watcher.Remove(dir)
		}
	}

	var errs []error
	var added []string
	for _, dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			errs = append(errs, fmt.Errorf("failed to watch %s: %w", dir, err))
			continue
		}
		added = append(added, dir)
	}

	w.files = files
	w.dirs = added
	w.logger.Debug("watching for config changes", "files", len(files), "dirs", added)
	return errors.Join(errs...)
}

// SetDebounce changes the grace period applied to later changes.
func (w *ConfigWatcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	w.debounce = d
	w.mu.Unlock()
}

// Close stops watching. A change still waiting for its debounce is
// discarded.
func (w *ConfigWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	err := w.watcher.Close()
	<-w.finished
	return err
}

func (w *ConfigWatcher) run() {
	defer close(w.finished)
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) ||
				ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				w.changed(filepath.Clean(ev.Name), ev.Op)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

// changed (re)starts the debounce timer for a watched file.
func (w *ConfigWatcher) changed(path string, op fsnotify.Op) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || !w.files[path] {
		return
	}

	w.logger.Debug("watched file changed", "path", path, "op", op)
	w.pending = path
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *ConfigWatcher) fire() {
	w.mu.Lock()
	if w.closed || w.pending == "" {
		w.mu.Unlock()
		return
	}
	path := w.pending
	w.pending = ""
	w.timer = nil
	w.mu.Unlock()

	w.poster.Post(bridge.Event{
		Kind:   bridge.EventConfigChanged,
		Path:   path,
		Source: "watcher",
	})
}
