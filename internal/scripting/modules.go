package scripting

import lua "github.com/yuin/gopher-lua"

// RegisterModules registers the forage.* Lua table into L: small pure
// helpers for writing hook functions.
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: the forage global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		"clamp":    luaClamp,
		"distance": luaDistance,
	})
	L.SetGlobal("forage", mod)
}

// luaClamp is forage.clamp(value, lo, hi).
func luaClamp(L *lua.LState) int {
	v := float64(L.CheckNumber(1))
	lo := float64(L.CheckNumber(2))
	hi := float64(L.CheckNumber(3))
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	L.Push(lua.LNumber(v))
	return 1
}

// luaDistance is forage.distance(value, lo, hi): how far value sits outside
// the interval [lo, hi]; 0 inside.
func luaDistance(L *lua.LState) int {
	v := float64(L.CheckNumber(1))
	lo := float64(L.CheckNumber(2))
	hi := float64(L.CheckNumber(3))
	d := 0.0
	switch {
	case v < lo:
		d = lo - v
	case v > hi:
		d = v - hi
	}
	L.Push(lua.LNumber(d))
	return 1
}
