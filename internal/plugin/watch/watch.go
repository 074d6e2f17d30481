// Package watch reloads plugins when files under the plugin root change.
//
// The root and every plugin directory directly below it are watched with
// fsnotify. Changes are coalesced per plugin directory; when a directory has
// been quiet for the debounce delay, the plugin is loaded again, or unloaded
// if its directory or entry file is gone.
package watch

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dshills/assetplug/internal/logging"
	"github.com/dshills/assetplug/internal/plugin"
	"github.com/fsnotify/fsnotify"
)

// DefaultDelay is the debounce delay used when none is configured.
const DefaultDelay = 250 * time.Millisecond

// ErrWatcherClosed is returned when operating on a closed watcher.
var ErrWatcherClosed = errors.New("watcher closed")

// Registry is the part of plugin.Registry the watcher drives.
type Registry interface {
	ReloadPlugin(dir string) (plugin.Descriptor, error)
	UnloadPath(dir string) (string, error)
}

// Watcher reloads plugins on filesystem changes.
type Watcher struct {
	mu sync.Mutex

	fsw    *fsnotify.Watcher
	reg    Registry
	root   string
	delay  time.Duration
	logger *logging.Logger

	watched map[string]bool
	pending map[string]*time.Timer

	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDelay sets the debounce delay. Non-positive values select DefaultDelay.
func WithDelay(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New starts watching root and its plugin directories.
func New(reg Registry, root string, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		reg:     reg,
		root:    filepath.Clean(root),
		delay:   DefaultDelay,
		logger:  logging.Default(),
		watched: make(map[string]bool),
		pending: make(map[string]*time.Timer),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.WithComponent("watch")

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w.fsw = fsw

	if err := w.add(w.root); err != nil {
		fsw.Close()
		return nil, err
	}

	entries, err := os.ReadDir(w.root)
	if err != nil {
		fsw.Close()
		return nil, err
	}
	for _, entry := range entries {
		if !entry.IsDir() || isHidden(entry.Name()) {
			continue
		}
		if err := w.add(filepath.Join(w.root, entry.Name())); err != nil {
			w.logger.Warn("cannot watch plugin directory", "dir", entry.Name(), "err", err)
		}
	}

	w.closedWg.Add(1)
	go w.processLoop()

	w.logger.Info("watching plugins", "root", w.root, "delay", w.delay)
	return w, nil
}

// Root returns the watched plugin root.
func (w *Watcher) Root() string {
	return w.root
}

// WatchedPaths returns the number of directories being watched.
func (w *Watcher) WatchedPaths() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watched)
}

// PendingCount returns the number of plugin directories waiting for their
// debounce delay to expire.
func (w *Watcher) PendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Flush immediately handles every pending plugin directory.
func (w *Watcher) Flush() {
	w.mu.Lock()
	dirs := make([]string, 0, len(w.pending))
	for dir, t := range w.pending {
		t.Stop()
		dirs = append(dirs, dir)
	}
	w.mu.Unlock()

	for _, dir := range dirs {
		w.fire(dir)
	}
}

// Close stops the watcher. Pending reloads are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	for dir, t := range w.pending {
		t.Stop()
		delete(w.pending, dir)
	}
	w.mu.Unlock()

	w.closedWg.Wait()
	return w.fsw.Close()
}

func (w *Watcher) add(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if w.watched[dir] {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return err
	}
	w.watched[dir] = true
	return nil
}

func (w *Watcher) forget(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watched[dir] {
		// fsnotify drops removed directories on its own; Remove may fail.
		_ = w.fsw.Remove(dir)
		delete(w.watched, dir)
	}
}

// processLoop handles incoming fsnotify events.
func (w *Watcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

// handle maps an event to the plugin directory it belongs to.
func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod {
		return
	}

	dir, ok := w.pluginDir(ev.Name)
	if !ok {
		return
	}

	if dir == filepath.Clean(ev.Name) {
		switch {
		case ev.Op.Has(fsnotify.Create):
			if info, err := os.Stat(dir); err == nil && info.IsDir() {
				if err := w.add(dir); err != nil {
					w.logger.Warn("cannot watch plugin directory", "dir", dir, "err", err)
				}
			}
		case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
			w.forget(dir)
		}
	}

	w.schedule(dir)
}

// pluginDir returns <root>/<first path element> for a path below root.
func (w *Watcher) pluginDir(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, filepath.Clean(path))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	first, _, _ := strings.Cut(rel, string(filepath.Separator))
	if isHidden(first) {
		return "", false
	}
	return filepath.Join(w.root, first), true
}

// schedule (re)starts the debounce timer for dir.
func (w *Watcher) schedule(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if t, ok := w.pending[dir]; ok {
		t.Reset(w.delay)
		return
	}
	w.pending[dir] = time.AfterFunc(w.delay, func() {
		w.fire(dir)
	})
}

// fire reloads or unloads the plugin in dir.
func (w *Watcher) fire(dir string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	if _, ok := w.pending[dir]; !ok {
		w.mu.Unlock()
		return
	}
	delete(w.pending, dir)
	w.mu.Unlock()

	if _, err := os.Stat(filepath.Join(dir, plugin.EntryFile)); err != nil {
		name, uerr := w.reg.UnloadPath(dir)
		switch {
		case uerr == nil:
			w.logger.Info("plugin removed", "plugin", name, "dir", dir)
		case plugin.KindOf(uerr) != plugin.KindNotFound:
			w.logger.Warn("unload failed", "dir", dir, "err", uerr)
		}
		return
	}

	desc, err := w.reg.ReloadPlugin(dir)
	if err != nil {
		w.logger.Warn("reload failed", "dir", dir, "err", err)
		return
	}
	w.logger.Info("plugin reloaded", "plugin", desc.Name, "dir", dir)
}

// isHidden reports names editors and VCS tools use for scratch files.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~")
}
