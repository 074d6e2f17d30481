package app

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"github.com/dshills/assetplug/internal/plugin"
	plua "github.com/dshills/assetplug/internal/plugin/lua"
	"github.com/tidwall/gjson"
)

var eventNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reservedEvents are handled by built-in events and cannot be emitted.
var reservedEvents = map[string]bool{
	"load":          true,
	"unload":        true,
	"asset_created": true,
	"asset_updated": true,
	"asset_deleted": true,
	"app_started":   true,
	"app_closing":   true,
}

// Plugins returns the loaded plugins sorted by name.
func (a *App) Plugins() []plugin.Descriptor {
	descs := a.registry.List()
	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })
	return descs
}

// ReloadPlugins scans the plugin root again and returns the plugins it
// loaded, sorted by name.
func (a *App) ReloadPlugins() ([]plugin.Descriptor, error) {
	descs, err := a.registry.Reload()
	if err != nil {
		return nil, NewOperationError("reload plugins", a.cfg.Plugins.Dir, err)
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })
	return descs, nil
}

// SetPluginEnabled enables or disables a plugin by name and remembers the
// choice for later runs.
func (a *App) SetPluginEnabled(ctx context.Context, name string, enabled bool) error {
	if err := a.registry.SetEnabled(name, enabled); err != nil {
		return NewOperationError("set plugin enabled", name, err)
	}

	a.stateMu.Lock()
	if enabled {
		delete(a.disabled, name)
	} else {
		a.disabled[name] = true
	}
	a.stateMu.Unlock()

	if err := a.store.SavePluginState(ctx, name, enabled); err != nil {
		return NewOperationError("set plugin enabled", name, err)
	}
	return nil
}

// Emit broadcasts a custom event. Plugins receive it in on_<name> with
// data as a JSON string. Empty data is sent as null.
func (a *App) Emit(name string, data json.RawMessage) error {
	if !eventNamePattern.MatchString(name) {
		return fmt.Errorf("%w: name %q must be an identifier", ErrInvalidEvent, name)
	}
	if reservedEvents[name] {
		return fmt.Errorf("%w: %q is a built-in event", ErrInvalidEvent, name)
	}
	if len(data) > 0 && !gjson.ValidBytes(data) {
		return fmt.Errorf("%w: payload is not valid JSON", ErrInvalidEvent)
	}

	a.broadcast(plugin.Custom(name, data))
	return nil
}

// CallPlugin invokes fn in the named plugin and returns its first result.
func (a *App) CallPlugin(name, fn string, args ...plua.Value) (plua.Value, error) {
	v, err := a.registry.Call(name, fn, args...)
	if err != nil {
		return plua.Nil(), NewOperationError("call plugin", name+"."+fn, err)
	}
	return v, nil
}
