package lua

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// Bridge converts values between gopher-lua and the boundary Value type.
type Bridge struct {
	L *lua.LState
}

// NewBridge creates a new Bridge for the given Lua state.
func NewBridge(L *lua.LState) *Bridge {
	return &Bridge{L: L}
}

// ToValue converts a Lua value to a Value.
// Functions, userdata and threads become nil; cycles are cut at the repeat.
func (b *Bridge) ToValue(lv lua.LValue) Value {
	return b.toValueWithVisited(lv, make(map[*lua.LTable]bool))
}

func (b *Bridge) toValueWithVisited(lv lua.LValue, visited map[*lua.LTable]bool) Value {
	if lv == nil {
		return Nil()
	}

	switch v := lv.(type) {
	case lua.LBool:
		return Bool(bool(v))
	case lua.LNumber:
		return Number(float64(v))
	case lua.LString:
		return String(string(v))
	case *lua.LTable:
		if visited[v] {
			return Nil()
		}
		visited[v] = true
		defer delete(visited, v)
		return b.tableToValue(v, visited)
	default:
		return Nil()
	}
}

// tableToValue converts a table to a List when its keys are exactly 1..n,
// and to a Map otherwise.
func (b *Bridge) tableToValue(t *lua.LTable, visited map[*lua.LTable]bool) Value {
	isArray := true
	maxN := 0
	count := 0
	t.ForEach(func(k, _ lua.LValue) {
		count++
		if kn, ok := k.(lua.LNumber); ok {
			n := int(kn)
			if float64(n) == float64(kn) && n > 0 {
				if n > maxN {
					maxN = n
				}
				return
			}
		}
		isArray = false
	})

	if isArray && maxN > 0 && count == maxN {
		items := make([]Value, maxN)
		for i := 1; i <= maxN; i++ {
			items[i-1] = b.toValueWithVisited(t.RawGetInt(i), visited)
		}
		return Value{kind: KindList, items: items}
	}

	fields := make(map[string]Value, count)
	t.ForEach(func(k, v lua.LValue) {
		var key string
		switch kv := k.(type) {
		case lua.LString:
			key = string(kv)
		case lua.LNumber:
			key = fmt.Sprintf("%v", float64(kv))
		default:
			key = k.String()
		}
		fields[key] = b.toValueWithVisited(v, visited)
	})
	return Value{kind: KindMap, fields: fields}
}

// ToLua converts a Value to a Lua value owned by the bridge's state.
func (b *Bridge) ToLua(v Value) lua.LValue {
	switch v.kind {
	case KindBool:
		return lua.LBool(v.b)
	case KindNumber:
		return lua.LNumber(v.n)
	case KindString:
		return lua.LString(v.s)
	case KindList:
		t := b.L.CreateTable(len(v.items), 0)
		for i, item := range v.items {
			t.RawSetInt(i+1, b.ToLua(item))
		}
		return t
	case KindMap:
		t := b.L.CreateTable(0, len(v.fields))
		for k, f := range v.fields {
			t.RawSetString(k, b.ToLua(f))
		}
		return t
	default:
		return lua.LNil
	}
}

// TableString gets a string field from a Lua table.
// Numbers are accepted and rendered the way Lua's tostring would.
func (b *Bridge) TableString(t *lua.LTable, key string) (string, bool) {
	switch v := t.RawGetString(key).(type) {
	case lua.LString:
		return string(v), true
	case lua.LNumber:
		return v.String(), true
	default:
		return "", false
	}
}
