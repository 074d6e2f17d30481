package lua

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// Output receives text produced by the guest bridge functions.
type Output interface {
	// Log receives the single argument of log(msg).
	Log(msg string)
	// Print receives the tab-joined arguments of print(...).
	Print(msg string)
}

// DiscardOutput drops everything written by plugins.
var DiscardOutput Output = discardOutput{}

type discardOutput struct{}

func (discardOutput) Log(string)   {}
func (discardOutput) Print(string) {}

// RemovedGlobals lists every global the sandbox clears before guest code runs.
// Together with the libraries that are never opened (io, os, debug, package)
// this is the capability boundary for plugins.
var RemovedGlobals = []string{
	"dofile",     // execute a file
	"loadfile",   // compile a file
	"load",       // compile a string or reader
	"loadstring", // compile a string
	"require",    // module loading from disk
	"module",     // module definition helper
	"io",
	"os",
	"debug",
	"package",
	"collectgarbage",
	"getfenv",
	"setfenv",
	"newproxy",
}

// Bridge function names available in every session.
const (
	LogFunc   = "log"
	PrintFunc = "print"
)

// Sandbox restricts a Lua state to safe operations.
// Restrictions are applied once and there is no way to lift them afterwards.
type Sandbox struct {
	L *lua.LState

	out       Output
	installed bool
}

// NewSandbox creates a new sandbox for the Lua state.
func NewSandbox(L *lua.LState, out Output) *Sandbox {
	if out == nil {
		out = DiscardOutput
	}
	return &Sandbox{
		L:   L,
		out: out,
	}
}

// Install removes dangerous globals and installs the bridge functions.
// Calling Install more than once has no further effect.
func (s *Sandbox) Install() {
	if s.installed {
		return
	}

	for _, name := range RemovedGlobals {
		s.L.SetGlobal(name, lua.LNil)
	}

	s.L.SetGlobal(LogFunc, s.L.NewFunction(s.luaLog))
	s.L.SetGlobal(PrintFunc, s.L.NewFunction(s.luaPrint))

	s.installed = true
}

// Installed reports whether Install has run.
func (s *Sandbox) Installed() bool {
	return s.installed
}

// luaLog implements log(msg).
func (s *Sandbox) luaLog(L *lua.LState) int {
	msg := L.CheckString(1)
	s.out.Log(msg)
	return 0
}

// luaPrint implements print(...).
func (s *Sandbox) luaPrint(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, n)
	for i := 1; i <= n; i++ {
		parts[i-1] = L.ToStringMeta(L.Get(i)).String()
	}
	s.out.Print(strings.Join(parts, "\t"))
	return 0
}
