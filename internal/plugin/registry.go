package plugin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dshills/assetplug/internal/logging"
	plua "github.com/dshills/assetplug/internal/plugin/lua"
)

// DefaultRoot is the plugin directory used when none is configured.
const DefaultRoot = "plugins"

// Registry owns every loaded plugin: discovery, lifecycle and event fan-out.
//
// All operations are serialized by one lock. Broadcast holds it for the
// whole fan-out, so load and unload never interleave with event delivery
// and callers never observe a half-inserted entry.
type Registry struct {
	mu sync.Mutex

	root      string
	logger    *logging.Logger
	enabledFn func(name string) bool

	// Loaded plugins by name
	entries map[string]*entry

	// Registration order, used for List, Broadcast and Close
	loadOrder []string

	subMu       sync.Mutex
	subscribers []NoticeHandler
}

type entry struct {
	desc    Descriptor
	session *Session
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used for diagnostics and guest output.
func WithLogger(logger *logging.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRoot sets the directory scanned by Reload.
func WithRoot(dir string) RegistryOption {
	return func(r *Registry) {
		r.root = dir
	}
}

// WithEnabledFunc decides the enabled flag a plugin is registered with.
// fn runs before the entry is inserted, so a plugin it rejects never
// receives an event. By default every plugin starts enabled.
func WithEnabledFunc(fn func(name string) bool) RegistryOption {
	return func(r *Registry) {
		r.enabledFn = fn
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		root:      DefaultRoot,
		logger:    logging.Default(),
		entries:   make(map[string]*entry),
		loadOrder: make([]string, 0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Root returns the configured plugin directory.
func (r *Registry) Root() string {
	return r.root
}

// LoadAll loads every immediate subdirectory of baseDir as a plugin.
//
// A missing baseDir is created and yields no plugins. A subdirectory that
// fails to load is logged and skipped. The returned descriptors are in
// directory order and include only plugins that loaded.
func (r *Registry) LoadAll(baseDir string) ([]Descriptor, error) {
	return r.loadAll(baseDir, false)
}

func (r *Registry) loadAll(baseDir string, reload bool) ([]Descriptor, error) {
	info, err := os.Stat(baseDir)
	if errors.Is(err, os.ErrNotExist) {
		r.logger.Info("creating plugins directory", "path", baseDir)
		if err := os.MkdirAll(baseDir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: creating %s: %w", ErrIO, baseDir, err)
		}
		return []Descriptor{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrIO, baseDir)
	}

	dirs, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrIO, baseDir, err)
	}

	loaded := make([]Descriptor, 0, len(dirs))
	for _, d := range dirs {
		path := filepath.Join(baseDir, d.Name())

		// Stat follows symlinks to plugin directories.
		fi, err := os.Stat(path)
		if err != nil || !fi.IsDir() {
			continue
		}

		desc, err := r.load(path, reload)
		if err != nil {
			r.logger.Warn("failed to load plugin", "path", path, "error", err)
			continue
		}
		loaded = append(loaded, desc)
	}

	r.logger.Info("plugins loaded", "count", len(loaded), "root", baseDir)
	return loaded, nil
}

// Reload rescans the configured root, reloading every directory with
// ReloadPlugin. An entry whose directory disappeared stays registered
// until unloaded.
func (r *Registry) Reload() ([]Descriptor, error) {
	return r.loadAll(r.root, true)
}

// LoadPlugin loads one plugin directory into a fresh session and registers
// it under the name it declares.
//
// The optional on_load hook runs before registration; its failure is
// logged and the plugin still counts as loaded. Registering a name that is
// already present replaces the previous plugin and closes its session
// without running on_unload.
func (r *Registry) LoadPlugin(dir string) (Descriptor, error) {
	return r.load(dir, false)
}

// ReloadPlugin loads dir again and replaces what was loaded from it before.
// Besides the LoadPlugin replacement by name, any other entry loaded from
// the same directory (the script changed its declared name) is unloaded,
// with on_unload run best-effort, so one directory never backs two
// plugins.
func (r *Registry) ReloadPlugin(dir string) (Descriptor, error) {
	return r.load(dir, true)
}

func (r *Registry) load(dir string, reload bool) (Descriptor, error) {
	session, err := NewSession(WithSessionLogger(r.logger))
	if err != nil {
		r.notify(Notice{Type: NoticeFailed, Path: dir, Err: err})
		return Descriptor{}, err
	}

	desc, err := session.Load(dir)
	if err != nil {
		session.Close()
		r.notify(Notice{Type: NoticeFailed, Path: dir, Err: err})
		return Descriptor{}, err
	}

	if r.enabledFn != nil {
		desc.Enabled = r.enabledFn(desc.Name)
	}

	r.callLifecycle(desc.Name, session, HookLoad)

	r.mu.Lock()
	var stale []*entry
	if reload {
		stale = r.takeByPath(dir, desc.Name)
	}
	previous, replaced := r.entries[desc.Name]
	if replaced {
		r.removeFromLoadOrder(desc.Name)
	}
	r.entries[desc.Name] = &entry{desc: desc, session: session}
	r.loadOrder = append(r.loadOrder, desc.Name)
	r.mu.Unlock()

	if replaced {
		r.logger.Warn("plugin replaced by later load",
			"plugin", desc.Name, "previous", previous.desc.Path, "path", desc.Path)
		previous.session.Close()
	}
	for _, e := range stale {
		r.logger.Info("plugin renamed", "previous", e.desc.Name, "plugin", desc.Name, "path", desc.Path)
		r.finishUnload(e)
	}

	r.logger.Info("plugin loaded", "plugin", desc.Name, "version", desc.Version, "path", desc.Path)
	r.notify(Notice{Type: NoticeLoaded, Plugin: desc.Name, Path: desc.Path})
	return desc, nil
}

// UnloadPlugin removes a plugin, runs its optional on_unload hook and
// closes its session. Hook failures are logged and otherwise ignored.
func (r *Registry) UnloadPlugin(name string) error {
	r.mu.Lock()
	e, ok := r.entries[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: plugin %s", ErrNotFound, name)
	}
	delete(r.entries, name)
	r.removeFromLoadOrder(name)
	r.mu.Unlock()

	r.finishUnload(e)
	return nil
}

// UnloadPath unloads every plugin loaded from dir and returns the name of
// the first one in registration order.
func (r *Registry) UnloadPath(dir string) (string, error) {
	r.mu.Lock()
	removed := r.takeByPath(dir, "")
	r.mu.Unlock()

	if len(removed) == 0 {
		return "", fmt.Errorf("%w: no plugin loaded from %s", ErrNotFound, dir)
	}
	for _, e := range removed {
		r.finishUnload(e)
	}
	return removed[0].desc.Name, nil
}

// takeByPath removes every entry loaded from dir except the one named keep
// and returns them in registration order. Must be called with mu held.
func (r *Registry) takeByPath(dir, keep string) []*entry {
	clean := filepath.Clean(dir)

	var names []string
	for _, n := range r.loadOrder {
		if n != keep && filepath.Clean(r.entries[n].desc.Path) == clean {
			names = append(names, n)
		}
	}

	removed := make([]*entry, 0, len(names))
	for _, n := range names {
		removed = append(removed, r.entries[n])
		delete(r.entries, n)
		r.removeFromLoadOrder(n)
	}
	return removed
}

// finishUnload runs on_unload for an entry already removed from the maps,
// closes its session and sends the notice.
func (r *Registry) finishUnload(e *entry) {
	name := e.desc.Name
	r.callLifecycle(name, e.session, HookUnload)
	e.session.Close()

	r.logger.Info("plugin unloaded", "plugin", name)
	r.notify(Notice{Type: NoticeUnloaded, Plugin: name, Path: e.desc.Path})
}

// SetEnabled enables or disables a plugin. Disabled plugins are skipped by
// Broadcast and rejected by Call.
func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	e, ok := r.entries[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: plugin %s", ErrNotFound, name)
	}
	e.desc.Enabled = enabled
	r.mu.Unlock()

	noticeType := NoticeDisabled
	if enabled {
		noticeType = NoticeEnabled
	}
	r.logger.Info("plugin "+noticeType.String(), "plugin", name)
	r.notify(Notice{Type: noticeType, Plugin: name, Path: e.desc.Path})
	return nil
}

// List returns descriptors of all registered plugins in registration order.
func (r *Registry) List() []Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]Descriptor, 0, len(r.loadOrder))
	for _, name := range r.loadOrder {
		result = append(result, r.entries[name].desc)
	}
	return result
}

// Get returns the descriptor of a registered plugin.
func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return Descriptor{}, false
	}
	return e.desc, true
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Broadcast delivers event to every enabled plugin in registration order.
//
// A plugin without the handler is skipped silently. Any other failure is
// logged with the plugin name and delivery continues with the next plugin.
// Broadcast never returns an error.
func (r *Registry) Broadcast(event Event) {
	handler := event.Handler()
	payload, err := event.Payload()
	if err != nil {
		r.logger.Error("failed to encode event", "event", event.Name(), "error", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.loadOrder {
		e := r.entries[name]
		if !e.desc.Enabled {
			continue
		}

		if _, err := e.session.Call(handler, payload...); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			r.logger.Error("plugin event handler failed",
				"plugin", name, "handler", handler, "error", err)
		}
	}
}

// Call invokes fn in the named plugin and returns its first result.
func (r *Registry) Call(name, fn string, args ...plua.Value) (plua.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return plua.Nil(), fmt.Errorf("%w: plugin %s", ErrNotFound, name)
	}
	if !e.desc.Enabled {
		return plua.Nil(), fmt.Errorf("%w: %s", ErrDisabled, name)
	}
	return e.session.Call(fn, args...)
}

// Close unloads every plugin in reverse registration order.
func (r *Registry) Close() error {
	r.mu.Lock()
	names := make([]string, len(r.loadOrder))
	for i, name := range r.loadOrder {
		names[len(r.loadOrder)-1-i] = name
	}
	r.mu.Unlock()

	var errs []error
	for _, name := range names {
		if err := r.UnloadPlugin(name); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// callLifecycle runs an optional lifecycle hook: attempt, log, ignore.
func (r *Registry) callLifecycle(name string, session *Session, hook string) {
	if _, err := session.Call(hook); err != nil && !errors.Is(err, ErrNotFound) {
		r.logger.Warn("plugin lifecycle hook failed", "plugin", name, "handler", hook, "error", err)
	}
}

// removeFromLoadOrder removes a name from the load order slice.
// Must be called with mu held.
func (r *Registry) removeFromLoadOrder(name string) {
	for i, n := range r.loadOrder {
		if n == name {
			r.loadOrder = append(r.loadOrder[:i], r.loadOrder[i+1:]...)
			return
		}
	}
}
