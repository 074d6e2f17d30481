package plugin

import (
	plua "github.com/dshills/assetplug/internal/plugin/lua"
	lua "github.com/yuin/gopher-lua"
)

// EntryFile is the script evaluated when a plugin directory is loaded.
const EntryFile = "init.lua"

// Defaults for descriptor fields the script leaves out.
const (
	DefaultName    = "Unknown"
	DefaultVersion = "0.0.0"
)

// Descriptor is the metadata snapshot taken when a plugin is loaded.
// Path is fixed at load time; Enabled only changes through
// Registry.SetEnabled.
type Descriptor struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Author      string `json:"author,omitempty"`
	Description string `json:"description,omitempty"`
	Path        string `json:"path"`
	Enabled     bool   `json:"enabled"`
}

// descriptorFromTable reads the descriptor fields from the table returned
// by the entry script. Missing or non-string fields fall back to defaults.
func descriptorFromTable(bridge *plua.Bridge, tbl *lua.LTable, dir string) Descriptor {
	desc := Descriptor{
		Name:    DefaultName,
		Version: DefaultVersion,
		Path:    dir,
		Enabled: true,
	}

	if name, ok := bridge.TableString(tbl, "name"); ok {
		desc.Name = name
	}
	if version, ok := bridge.TableString(tbl, "version"); ok {
		desc.Version = version
	}
	if author, ok := bridge.TableString(tbl, "author"); ok {
		desc.Author = author
	}
	if description, ok := bridge.TableString(tbl, "description"); ok {
		desc.Description = description
	}

	return desc
}
