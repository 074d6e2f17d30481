// Package lua provides Lua runtime integration for the plugin system.
package lua

import (
	"fmt"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// State wraps gopher-lua with the sandbox applied.
//
// IMPORTANT: gopher-lua's LState is not goroutine-safe. The mutex in this
// struct serializes every entry from Go code; callers that reach into the raw
// LState must hold their own exclusion.
//
// A State has no instruction limit, memory cap or timeout. A guest function
// that never returns blocks the calling goroutine for good.
type State struct {
	L *lua.LState

	mu sync.Mutex

	out     Output
	sandbox *Sandbox

	closed bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithOutput routes the log and print bridge functions to out.
func WithOutput(out Output) StateOption {
	return func(s *State) {
		s.out = out
	}
}

// safeLibraries are the only standard libraries opened in a State.
var safeLibraries = []struct {
	name string
	open lua.LGFunction
}{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
	{lua.CoroutineLibName, lua.OpenCoroutine},
}

// NewState creates a new sandboxed Lua state.
func NewState(opts ...StateOption) (*State, error) {
	state := &State{out: DiscardOutput}
	for _, opt := range opts {
		opt(state)
	}

	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})

	if err := openSafeLibraries(L); err != nil {
		L.Close()
		return nil, err
	}

	state.L = L
	state.sandbox = NewSandbox(L, state.out)
	state.sandbox.Install()

	return state, nil
}

// openSafeLibraries opens base, table, string, math and coroutine.
// io, os, debug and package are never opened.
func openSafeLibraries(L *lua.LState) error {
	for _, lib := range safeLibraries {
		err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.open),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name))
		if err != nil {
			return fmt.Errorf("opening lua library %q: %w", lib.name, err)
		}
	}
	return nil
}

// Eval compiles and runs source as a top-level chunk and returns its first
// result, or LNil when the chunk returns nothing.
func (s *State) Eval(chunkName, source string) (result lua.LValue, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil, ErrStateClosed
	}

	fn, err := s.L.Load(strings.NewReader(source), chunkName)
	if err != nil {
		return lua.LNil, err
	}

	defer func() {
		if r := recover(); r != nil {
			result = lua.LNil
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()

	top := s.L.GetTop()
	s.L.Push(fn)
	if err := s.L.PCall(0, 1, nil); err != nil {
		s.L.SetTop(top)
		return lua.LNil, err
	}
	result = s.L.Get(-1)
	s.L.SetTop(top)
	return result, nil
}

// Call calls a global Lua function with the given arguments.
// Returns an empty slice (not nil) if the function returns no values.
func (s *State) Call(fn string, args ...lua.LValue) ([]lua.LValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStateClosed
	}

	fnVal := s.L.GetGlobal(fn)
	if fnVal == lua.LNil {
		return nil, fmt.Errorf("%w: %s", ErrFunctionNotFound, fn)
	}
	if fnVal.Type() != lua.LTFunction {
		return nil, fmt.Errorf("%w: %s is a %s", ErrNotFunction, fn, fnVal.Type())
	}

	// Record stack top before pushing anything
	stackTop := s.L.GetTop()

	s.L.Push(fnVal)
	for _, arg := range args {
		s.L.Push(arg)
	}

	var callErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				callErr = fmt.Errorf("lua panic: %v", r)
			}
		}()
		callErr = s.L.PCall(len(args), lua.MultRet, nil)
	}()

	if callErr != nil {
		s.L.SetTop(stackTop)
		return nil, callErr
	}

	// Collect return values (only the new values added after the call)
	nRet := s.L.GetTop() - stackTop
	if nRet <= 0 {
		return []lua.LValue{}, nil
	}
	results := make([]lua.LValue, nRet)
	for i := 0; i < nRet; i++ {
		results[i] = s.L.Get(stackTop + i + 1)
	}
	s.L.Pop(nRet)

	return results, nil
}

// HasFunction reports whether the named global is a function.
func (s *State) HasFunction(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	return s.L.GetGlobal(name).Type() == lua.LTFunction
}

// GetGlobal returns a global variable value.
func (s *State) GetGlobal(name string) lua.LValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil
	}

	return s.L.GetGlobal(name)
}

// LuaState returns the underlying gopher-lua state.
//
// WARNING: Direct access to LState bypasses the mutex. The caller is
// responsible for exclusion and must not re-open removed libraries.
func (s *State) LuaState() *lua.LState {
	return s.L
}

// Sandbox returns the installed sandbox.
func (s *State) Sandbox() *Sandbox {
	return s.sandbox
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases all resources associated with the Lua state.
// After Close is called, all other methods will return ErrStateClosed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.L.Close()
	s.closed = true
	return nil
}
