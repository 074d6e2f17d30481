package plugin

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/dshills/assetplug/internal/logging"
	plua "github.com/dshills/assetplug/internal/plugin/lua"
	lua "github.com/yuin/gopher-lua"
)

// Session is one sandboxed interpreter hosting exactly one plugin.
//
// Calls into guest code are serialized by the session lock; Close waits
// for a running call to return. There is no timeout: a guest function that
// never returns blocks its caller and every later call.
type Session struct {
	mu sync.Mutex

	state  *plua.State
	bridge *plua.Bridge

	logger *logging.Logger
	label  string
	dir    string
	loaded bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionLogger routes the guest log and print functions to logger.
func WithSessionLogger(logger *logging.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// NewSession creates a sandboxed interpreter. Capability restrictions are
// applied here, before any plugin code runs.
func NewSession(opts ...SessionOption) (*Session, error) {
	s := &Session{
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	state, err := plua.NewState(plua.WithOutput(sessionOutput{s}))
	if err != nil {
		return nil, fmt.Errorf("%w: creating interpreter: %w", ErrInterpreter, err)
	}

	s.state = state
	s.bridge = plua.NewBridge(state.LuaState())
	return s, nil
}

// Load evaluates dir/init.lua and returns the descriptor read from the table
// it returns. A session loads at most one plugin.
func (s *Session) Load(dir string) (Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return Descriptor{}, fmt.Errorf("%w: session already holds %s", ErrLoad, s.dir)
	}

	entry := filepath.Join(dir, EntryFile)
	source, err := os.ReadFile(entry)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Descriptor{}, fmt.Errorf("%w: %s", ErrNotFound, entry)
		}
		return Descriptor{}, fmt.Errorf("%w: reading %s: %w", ErrIO, entry, err)
	}

	s.label = filepath.Base(dir)

	result, err := s.state.Eval(entry, string(source))
	if err != nil {
		if errors.Is(err, plua.ErrStateClosed) {
			return Descriptor{}, fmt.Errorf("%w: %w", ErrInterpreter, err)
		}
		return Descriptor{}, fmt.Errorf("%w: %s: %w", ErrLoad, entry, err)
	}

	tbl, ok := result.(*lua.LTable)
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s returned %s, want table", ErrLoad, entry, result.Type())
	}

	desc := descriptorFromTable(s.bridge, tbl, dir)
	s.label = desc.Name
	s.dir = dir
	s.loaded = true
	return desc, nil
}

// Call invokes the global function fn with args and returns its first
// result, or nil when it returns nothing.
//
// A missing or non-callable global yields ErrNotFound, which callers treat
// as an unset hook. A failure inside the function yields ErrInterpreter.
func (s *Session) Call(fn string, args ...plua.Value) (plua.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	luaArgs := make([]lua.LValue, len(args))
	for i, arg := range args {
		luaArgs[i] = s.bridge.ToLua(arg)
	}

	results, err := s.state.Call(fn, luaArgs...)
	if err != nil {
		if errors.Is(err, plua.ErrFunctionNotFound) || errors.Is(err, plua.ErrNotFunction) {
			return plua.Nil(), fmt.Errorf("%w: function %s", ErrNotFound, fn)
		}
		return plua.Nil(), fmt.Errorf("%w: %s: %w", ErrInterpreter, fn, err)
	}

	if len(results) == 0 {
		return plua.Nil(), nil
	}
	return s.bridge.ToValue(results[0]), nil
}

// HasFunction reports whether the plugin defines a global function name.
func (s *Session) HasFunction(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.HasFunction(name)
}

// Dir returns the directory the plugin was loaded from.
func (s *Session) Dir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir
}

// Close destroys the interpreter. Further calls fail with ErrInterpreter.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Close()
}

func (s *Session) pluginLabel() string {
	// Called from inside guest code, while Load or Call already hold mu.
	return s.label
}

// sessionOutput forwards the guest bridge functions to the session logger.
type sessionOutput struct {
	s *Session
}

func (o sessionOutput) Log(msg string) {
	o.s.logger.Info(msg, "plugin", o.s.pluginLabel(), "source", "lua")
}

func (o sessionOutput) Print(msg string) {
	o.s.logger.Debug(msg, "plugin", o.s.pluginLabel(), "source", "lua")
}
