// Package lua provides the Lua runtime integration for the plugin system.
//
// This package wraps the gopher-lua library to provide:
//   - Sandboxed Lua state management
//   - A tagged Value type for everything crossing the host/guest boundary
//   - Lua <-> Value conversion through a Bridge
//
// # State
//
// The State type manages a Lua runtime with the sandbox already installed:
//
//	state, err := lua.NewState(lua.WithOutput(out))
//	if err != nil {
//	    return err
//	}
//	defer state.Close()
//
//	result, err := state.Eval("init.lua", source)
//
// # Sandbox
//
// Only the base, table, string, math and coroutine libraries are opened.
// The sandbox then clears every global in RemovedGlobals (dofile, loadfile,
// load, loadstring, require, io, os, debug, package, ...) and installs two
// bridge functions:
//
//	log(msg)     -- routed to Output.Log
//	print(...)   -- arguments joined by tabs, routed to Output.Print
//
// There is no call that re-grants a removed capability.
//
// # Limits
//
// No instruction limit, memory cap or execution timeout is enforced. A guest
// function that loops forever blocks its caller.
//
// # Bridge
//
// The Bridge converts in both directions:
//
//	bridge := lua.NewBridge(state.LuaState())
//	lv := bridge.ToLua(lua.FromGo(map[string]any{"name": "test"}))
//	v := bridge.ToValue(lv)
//
// Tables whose keys are exactly 1..n become List values; all other tables
// become Map values. Functions and userdata become Nil.
package lua
