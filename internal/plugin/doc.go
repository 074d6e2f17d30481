// Package plugin hosts sandboxed Lua plugins and delivers application
// events to them.
//
// # Plugin Layout
//
// A plugin is a directory holding an init.lua entry script. The Registry
// scans one root directory, one level deep, one plugin per subdirectory:
//
//	plugins/
//	├── price-alert/
//	│   └── init.lua
//	└── audit-log/
//	    └── init.lua
//
// The entry script must return a table. Its string fields name, version,
// author and description form the plugin Descriptor; missing fields fall
// back to "Unknown" and "0.0.0". Hooks are global functions:
//
//	function on_load() log("ready") end
//
//	function on_asset_created(json)
//	    log("new asset: " .. json)
//	end
//
//	return {
//	    name = "audit-log",
//	    version = "1.0.0",
//	}
//
// # Hooks
//
// Every hook is optional. A missing hook is never an error.
//
//	on_load()                  after the entry script ran
//	on_unload()                before the session is closed
//	on_app_started()           AppStarted
//	on_app_closing()           AppClosing
//	on_asset_created(json)     AssetCreated, asset encoded as JSON
//	on_asset_updated(json)     AssetUpdated, asset encoded as JSON
//	on_asset_deleted(id)       AssetDeleted, asset id string
//	on_<name>(json)            Custom(name, data), data encoded as JSON
//
// Lifecycle hooks (on_load, on_unload) are attempted and a failure is only
// logged. Broadcast hooks treat a missing handler as routine and log any
// other failure with the plugin name before moving to the next plugin.
//
// # Sandbox
//
// Each Session owns one interpreter with io, os, debug and package never
// opened and file or code loading globals removed. Two bridge functions are
// installed: log(msg) writes at info level and print(...) at debug level,
// both tagged with the plugin name. See package lua for the full list.
//
// There is no execution timeout or memory quota. A plugin that loops
// forever blocks the goroutine that called into it, and during Broadcast
// that blocks the whole Registry.
//
// # Duplicate Names
//
// Loading a plugin whose declared name is already registered replaces the
// earlier entry. The earlier session is closed without on_unload and the
// name moves to the end of the registration order.
//
// # Errors
//
// Errors wrap one of ErrNotFound, ErrLoad, ErrInterpreter, ErrIO or
// ErrDisabled; KindOf classifies them.
package plugin
