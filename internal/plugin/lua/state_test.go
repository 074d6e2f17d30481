package lua

import (
	"errors"
	"testing"

	glua "github.com/yuin/gopher-lua"
)

func TestNewState(t *testing.T) {
	state, err := NewState()
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer state.Close()

	if state.IsClosed() {
		t.Error("NewState() returned closed state")
	}
	if state.LuaState() == nil {
		t.Error("NewState() LuaState() is nil")
	}
	if !state.Sandbox().Installed() {
		t.Error("NewState() did not install the sandbox")
	}
}

func TestStateEvalReturnsFirstResult(t *testing.T) {
	state, err := NewState()
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer state.Close()

	result, err := state.Eval("test", `return { name = "demo" }, 2`)
	if err != nil {
		t.Fatalf("Eval() error = %v", err)
	}

	tbl, ok := result.(*glua.LTable)
	if !ok {
		t.Fatalf("Eval() result is %T, want *LTable", result)
	}
	if got := tbl.RawGetString("name"); got.String() != "demo" {
		t.Errorf("name = %v, want demo", got)
	}
}

func TestStateEvalNoResult(t *testing.T) {
	state, err := NewState()
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer state.Close()

	result, err := state.Eval("test", `x = 1 + 1`)
	if err != nil {
		t.Fatalf("Eval() error = %v", err)
	}
	if result != glua.LNil {
		t.Errorf("Eval() = %v, want nil", result)
	}
	if v := state.GetGlobal("x"); v.String() != "2" {
		t.Errorf("x = %v, want 2", v)
	}
}

func TestStateEvalErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"syntax", `invalid lua code !!!`},
		{"runtime", `error("boom")`},
		{"nil call", `undefined_thing()`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := NewState()
			if err != nil {
				t.Fatalf("NewState() error = %v", err)
			}
			defer state.Close()

			if _, err := state.Eval("test", tt.code); err == nil {
				t.Errorf("Eval(%q) should return error", tt.code)
			}
		})
	}
}

func TestStateCall(t *testing.T) {
	state, err := NewState()
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer state.Close()

	if _, err := state.Eval("test", `
		function add(a, b)
			return a + b
		end
	`); err != nil {
		t.Fatalf("Eval() error = %v", err)
	}

	results, err := state.Call("add", glua.LNumber(2), glua.LNumber(3))
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Call() returned %d results, want 1", len(results))
	}
	if num, ok := results[0].(glua.LNumber); !ok || float64(num) != 5 {
		t.Errorf("add(2, 3) = %v, want 5", results[0])
	}
}

func TestStateCallMultipleReturns(t *testing.T) {
	state, err := NewState()
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer state.Close()

	if _, err := state.Eval("test", `function multi() return 1, "hello", true end`); err != nil {
		t.Fatalf("Eval() error = %v", err)
	}

	results, err := state.Call("multi")
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Call() returned %d results, want 3", len(results))
	}
}

func TestStateCallNoReturn(t *testing.T) {
	state, err := NewState()
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer state.Close()

	if _, err := state.Eval("test", `function noop() end`); err != nil {
		t.Fatalf("Eval() error = %v", err)
	}

	results, err := state.Call("noop")
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("Call() = %v, want empty non-nil slice", results)
	}
}

func TestStateCallUndefinedFunction(t *testing.T) {
	state, err := NewState()
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer state.Close()

	_, err = state.Call("undefined_function")
	if !errors.Is(err, ErrFunctionNotFound) {
		t.Errorf("Call() error = %v, want ErrFunctionNotFound", err)
	}
}

func TestStateCallNonFunction(t *testing.T) {
	state, err := NewState()
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer state.Close()

	if _, err := state.Eval("test", `not_a_func = 42`); err != nil {
		t.Fatalf("Eval() error = %v", err)
	}

	_, err = state.Call("not_a_func")
	if !errors.Is(err, ErrNotFunction) {
		t.Errorf("Call() error = %v, want ErrNotFunction", err)
	}
}

func TestStateCallRuntimeError(t *testing.T) {
	state, err := NewState()
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer state.Close()

	if _, err := state.Eval("test", `function fail() error("intentional") end`); err != nil {
		t.Fatalf("Eval() error = %v", err)
	}

	_, err = state.Call("fail")
	if err == nil {
		t.Fatal("Call() should return error")
	}
	if errors.Is(err, ErrFunctionNotFound) {
		t.Error("runtime error must not be reported as not found")
	}

	// The state stays usable after a failed call.
	if _, err := state.Eval("test", `function ok() return 1 end`); err != nil {
		t.Fatalf("Eval() after failure error = %v", err)
	}
	if _, err := state.Call("ok"); err != nil {
		t.Errorf("Call() after failure error = %v", err)
	}
}

func TestStateHasFunction(t *testing.T) {
	state, err := NewState()
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer state.Close()

	if _, err := state.Eval("test", `function present() end; value = 1`); err != nil {
		t.Fatalf("Eval() error = %v", err)
	}

	if !state.HasFunction("present") {
		t.Error("HasFunction(present) = false")
	}
	if state.HasFunction("value") {
		t.Error("HasFunction(value) = true for a number")
	}
	if state.HasFunction("missing") {
		t.Error("HasFunction(missing) = true")
	}
}

func TestStateClose(t *testing.T) {
	state, err := NewState()
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}

	if err := state.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if !state.IsClosed() {
		t.Error("IsClosed() = false after Close")
	}
	if err := state.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	if _, err := state.Eval("test", `x = 1`); !errors.Is(err, ErrStateClosed) {
		t.Errorf("Eval() after close error = %v, want ErrStateClosed", err)
	}
	if _, err := state.Call("anything"); !errors.Is(err, ErrStateClosed) {
		t.Errorf("Call() after close error = %v, want ErrStateClosed", err)
	}
	if v := state.GetGlobal("x"); v != glua.LNil {
		t.Errorf("GetGlobal() after close = %v, want nil", v)
	}
}

func TestStatesAreIsolated(t *testing.T) {
	a, err := NewState()
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer a.Close()
	b, err := NewState()
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer b.Close()

	if _, err := a.Eval("a", `shared = "from a"; string.shout = function() end`); err != nil {
		t.Fatalf("Eval() error = %v", err)
	}

	if v := b.GetGlobal("shared"); v != glua.LNil {
		t.Errorf("state b sees global from state a: %v", v)
	}
	if _, err := b.Eval("b", `assert(string.shout == nil)`); err != nil {
		t.Errorf("state b sees library change from state a: %v", err)
	}
}
