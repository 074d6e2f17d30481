// Package app wires configuration, storage and the plugin registry into
// the operations the command line exposes. Every asset mutation is
// persisted first and then broadcast to plugins.
package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/dshills/assetplug/internal/config"
	"github.com/dshills/assetplug/internal/logging"
	"github.com/dshills/assetplug/internal/plugin"
	"github.com/dshills/assetplug/internal/plugin/watch"
	"github.com/dshills/assetplug/internal/storage"
)

// App is the application service.
type App struct {
	mu sync.Mutex

	cfg      *config.Config
	logger   *logging.Logger
	store    *storage.Store
	registry *plugin.Registry
	watcher  *watch.Watcher
	metrics  *Metrics

	stateMu  sync.Mutex
	disabled map[string]bool

	running atomic.Bool
	closed  bool
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger. By default one is built from the config.
func WithLogger(logger *logging.Logger) Option {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics sets the metrics tracker.
func WithMetrics(m *Metrics) Option {
	return func(a *App) {
		if m != nil {
			a.metrics = m
		}
	}
}

// New opens the store and creates an empty plugin registry. Plugins are
// loaded by Start.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	a := &App{cfg: cfg, metrics: NewMetrics(), disabled: make(map[string]bool)}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logging.New(cfg.LoggingConfig())
	}

	store, err := storage.Open(ctx, cfg.Database.Type, cfg.Database.DSN,
		storage.WithLogger(a.logger.WithComponent("storage")))
	if err != nil {
		return nil, &ComponentError{Component: "storage", Action: "open", Err: err}
	}
	a.store = store

	a.registry = plugin.NewRegistry(
		plugin.WithLogger(a.logger.WithComponent("plugin")),
		plugin.WithRoot(cfg.Plugins.Dir),
		plugin.WithEnabledFunc(a.pluginEnabled),
	)

	return a, nil
}

// Config returns the configuration the app was built with.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Logger returns the application logger.
func (a *App) Logger() *logging.Logger {
	return a.logger
}

// Registry returns the plugin registry.
func (a *App) Registry() *plugin.Registry {
	return a.registry
}

// Store returns the asset store.
func (a *App) Store() *storage.Store {
	return a.store
}

// Metrics returns the metrics tracker.
func (a *App) Metrics() *Metrics {
	return a.metrics
}

// IsRunning reports whether Start has completed and Shutdown has not.
func (a *App) IsRunning() bool {
	return a.running.Load()
}

// Start loads every plugin under the configured root, starts the watcher
// when enabled and broadcasts AppStarted. Plugins disabled in an earlier
// run stay disabled.
func (a *App) Start() error {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if !a.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	if err := a.loadPluginStates(context.Background()); err != nil {
		a.running.Store(false)
		return err
	}

	descs, err := a.registry.LoadAll(a.cfg.Plugins.Dir)
	if err != nil {
		a.running.Store(false)
		return &ComponentError{Component: "plugins", Action: "load", Err: err}
	}
	a.logger.Info("plugins loaded", "count", len(descs), "root", a.cfg.Plugins.Dir)

	if a.cfg.Plugins.Watch {
		if err := a.StartWatching(); err != nil {
			a.logger.Warn("plugin watcher not started", "err", err)
		}
	}

	a.broadcast(plugin.AppStarted())
	return nil
}

// StartWatching reloads plugins on filesystem changes until Shutdown.
// Calling it while a watcher runs has no effect.
func (a *App) StartWatching() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if a.watcher != nil {
		return nil
	}
	w, err := watch.New(a.registry, a.cfg.Plugins.Dir,
		watch.WithDelay(a.cfg.Plugins.Debounce),
		watch.WithLogger(a.logger))
	if err != nil {
		return &ComponentError{Component: "watch", Action: "start", Err: err}
	}
	a.watcher = w
	return nil
}

// Shutdown broadcasts AppClosing if the app was started, then unloads
// every plugin and closes the store. It is safe to call more than once.
func (a *App) Shutdown() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	w := a.watcher
	a.watcher = nil
	a.mu.Unlock()

	var errs []error
	if w != nil {
		if err := w.Close(); err != nil {
			errs = append(errs, &ComponentError{Component: "watch", Action: "close", Err: err})
		}
	}

	if a.running.Swap(false) {
		a.broadcast(plugin.AppClosing())
	}

	if err := a.registry.Close(); err != nil {
		errs = append(errs, &ComponentError{Component: "plugins", Action: "close", Err: err})
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, &ComponentError{Component: "storage", Action: "close", Err: err})
	}
	return errors.Join(errs...)
}

func (a *App) loadPluginStates(ctx context.Context) error {
	states, err := a.store.PluginStates(ctx)
	if err != nil {
		return &ComponentError{Component: "storage", Action: "load plugin states", Err: err}
	}
	a.stateMu.Lock()
	for name, enabled := range states {
		if !enabled {
			a.disabled[name] = true
		}
	}
	a.stateMu.Unlock()
	return nil
}

// pluginEnabled reports the state a plugin is registered with, so one
// switched off earlier stays off across loads and watcher reloads.
func (a *App) pluginEnabled(name string) bool {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return !a.disabled[name]
}

// broadcast dispatches ev to every enabled plugin and records its timing.
func (a *App) broadcast(ev plugin.Event) {
	t := StartTimer()
	a.registry.Broadcast(ev)
	a.metrics.RecordEvent(ev.Name(), t.Elapsed())
}
