package plugin

import (
	"encoding/json"
	"fmt"

	"github.com/dshills/assetplug/internal/asset"
	plua "github.com/dshills/assetplug/internal/plugin/lua"
	"github.com/google/uuid"
)

// EventType identifies the variant held by an Event.
type EventType int

// Event types.
const (
	EventAssetCreated EventType = iota
	EventAssetUpdated
	EventAssetDeleted
	EventAppStarted
	EventAppClosing
	EventCustom
)

// String returns a string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventAssetCreated:
		return "asset_created"
	case EventAssetUpdated:
		return "asset_updated"
	case EventAssetDeleted:
		return "asset_deleted"
	case EventAppStarted:
		return "app_started"
	case EventAppClosing:
		return "app_closing"
	case EventCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Hook names called by the Registry.
const (
	HookLoad         = "on_load"
	HookUnload       = "on_unload"
	HookAssetCreated = "on_asset_created"
	HookAssetUpdated = "on_asset_updated"
	HookAssetDeleted = "on_asset_deleted"
	HookAppStarted   = "on_app_started"
	HookAppClosing   = "on_app_closing"

	// CustomHookPrefix is prepended to a custom event name.
	CustomHookPrefix = "on_"
)

// Event is a domain, lifecycle or custom event delivered to plugins.
// Events are built by the host and never modified by the Registry.
type Event struct {
	typ     EventType
	asset   *asset.Asset
	assetID uuid.UUID
	name    string
	data    any
}

// AssetCreated returns the event sent after an asset is stored.
func AssetCreated(a *asset.Asset) Event {
	return Event{typ: EventAssetCreated, asset: a}
}

// AssetUpdated returns the event sent after an asset is changed.
func AssetUpdated(a *asset.Asset) Event {
	return Event{typ: EventAssetUpdated, asset: a}
}

// AssetDeleted returns the event sent after an asset is removed.
func AssetDeleted(id uuid.UUID) Event {
	return Event{typ: EventAssetDeleted, assetID: id}
}

// AppStarted returns the event sent once plugins are loaded at startup.
func AppStarted() Event {
	return Event{typ: EventAppStarted}
}

// AppClosing returns the event sent before the application exits.
func AppClosing() Event {
	return Event{typ: EventAppClosing}
}

// Custom returns a named event. Handlers are looked up as on_<name>.
// data is encoded as JSON; json.RawMessage is passed through unchanged.
func Custom(name string, data any) Event {
	return Event{typ: EventCustom, name: name, data: data}
}

// Type returns the event variant.
func (e Event) Type() EventType {
	return e.typ
}

// Name returns the custom event name, or the type name for other events.
func (e Event) Name() string {
	if e.typ == EventCustom {
		return e.name
	}
	return e.typ.String()
}

// Handler returns the name of the guest function that receives e.
func (e Event) Handler() string {
	switch e.typ {
	case EventAssetCreated:
		return HookAssetCreated
	case EventAssetUpdated:
		return HookAssetUpdated
	case EventAssetDeleted:
		return HookAssetDeleted
	case EventAppStarted:
		return HookAppStarted
	case EventAppClosing:
		return HookAppClosing
	default:
		return CustomHookPrefix + e.name
	}
}

// Payload returns the arguments passed to the handler. Assets and custom
// data are passed as one JSON string; a deleted asset as its id string;
// lifecycle events take no arguments.
func (e Event) Payload() ([]plua.Value, error) {
	switch e.typ {
	case EventAssetCreated, EventAssetUpdated:
		encoded, err := encodeJSON(e.asset)
		if err != nil {
			return nil, err
		}
		return []plua.Value{plua.String(encoded)}, nil
	case EventAssetDeleted:
		return []plua.Value{plua.String(e.assetID.String())}, nil
	case EventAppStarted, EventAppClosing:
		return nil, nil
	default:
		encoded, err := encodeJSON(e.data)
		if err != nil {
			return nil, err
		}
		return []plua.Value{plua.String(encoded)}, nil
	}
}

func encodeJSON(v any) (string, error) {
	if raw, ok := v.(json.RawMessage); ok {
		if len(raw) == 0 {
			return "null", nil
		}
		if !json.Valid(raw) {
			return "", fmt.Errorf("encoding payload: invalid JSON")
		}
		return string(raw), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding payload: %w", err)
	}
	return string(data), nil
}
