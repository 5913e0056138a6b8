package scripting

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/ashkettle/forage/internal/goap"
)

// luaValue converts a store value to its Lua representation. Unsupported
// types map to nil, which checkers treat as unmet.
func luaValue(v any) lua.LValue {
	if n, ok := goap.Number(v); ok {
		return lua.LNumber(n)
	}
	switch t := v.(type) {
	case string:
		return lua.LString(t)
	case bool:
		return lua.LBool(t)
	default:
		return lua.LNil
	}
}

// storeTable marshals a store into a plain Lua table of property -> value.
func storeTable(L *lua.LState, s goap.Store) *lua.LTable {
	tbl := L.NewTable()
	for _, k := range s.Keys() {
		if v, ok := s.Get(k); ok {
			tbl.RawSetString(k, luaValue(v))
		}
	}
	return tbl
}

// conceptTable marshals a hypothetical state pair into a table with agent
// and world subtables.
func conceptTable(L *lua.LState, c *goap.Concept) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("agent", lua.LValue(storeTable(L, c.Agent)))
	tbl.RawSetString("world", lua.LValue(storeTable(L, c.World)))
	return tbl
}
