package scripting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/ashkettle/forage/internal/goap"
)

// globalScenarioID is the reserved key for shared scripts loaded via
// LoadGlobal. Hook dispatch falls back to this VM when no scenario VM is
// found.
const globalScenarioID = "__global__"

// vm is one scenario's sandboxed LState plus its per-call budget bookkeeping.
type vm struct {
	L      *lua.LState
	limit  int
	cancel context.CancelFunc
}

// resetBudget swaps in a fresh instruction-count context so every hook call
// gets the full budget. Must not run while the VM is executing.
func (v *vm) resetBudget() {
	if v.cancel != nil {
		v.cancel()
	}
	ctx, cancel := newCountingContext(v.limit)
	v.L.SetContext(ctx)
	v.cancel = cancel
}

// Manager owns one sandboxed LState per scenario and exposes hook dispatch
// for preconditions, checkers, and comparers.
//
// Each LState is single-threaded: callers serialize hook calls within a
// scenario. Different scenarios may call concurrently once loading completes.
type Manager struct {
	mu     sync.RWMutex
	states map[string]*vm
	logger *zap.Logger
}

// NewManager creates a Manager.
//
// Precondition: logger must be non-nil.
// Postcondition: returns a non-nil Manager with an empty scenario map.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		panic("scripting.NewManager: logger must not be nil")
	}
	return &Manager{
		states: make(map[string]*vm),
		logger: logger,
	}
}

// LoadScenario creates a sandboxed VM for scenarioID, registers the forage.*
// module, then executes every *.lua file in scriptDir in lexicographic
// order.
//
// Precondition: scenarioID must be non-empty; scriptDir must be a readable
// directory.
// Postcondition: the scenario VM is registered; returns error on Lua load
// failure. An existing VM for the same scenario is replaced and closed.
func (m *Manager) LoadScenario(scenarioID, scriptDir string, instLimit int) error {
	if scenarioID == "" {
		return fmt.Errorf("scripting: scenario ID must not be empty")
	}
	return m.loadInto(scenarioID, scriptDir, instLimit)
}

// LoadGlobal creates the "__global__" VM for shared scripts accessible as a
// hook-dispatch fallback from any scenario.
func (m *Manager) LoadGlobal(scriptDir string, instLimit int) error {
	return m.loadInto(globalScenarioID, scriptDir, instLimit)
}

func (m *Manager) loadInto(key, scriptDir string, instLimit int) error {
	if instLimit <= 0 {
		instLimit = DefaultInstructionLimit
	}
	L, cancel := NewSandboxedState(instLimit)
	m.RegisterModules(L)

	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		cancel()
		L.Close()
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", scriptDir, key, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	for _, path := range luaFiles {
		if err := L.DoFile(path); err != nil {
			cancel()
			L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, key, err)
		}
	}

	m.mu.Lock()
	if old, ok := m.states[key]; ok {
		if old.cancel != nil {
			old.cancel()
		}
		old.L.Close()
	}
	m.states[key] = &vm{L: L, limit: instLimit, cancel: cancel}
	m.mu.Unlock()
	return nil
}

// Close shuts down every VM. The Manager must not be used afterward.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, v := range m.states {
		if v.cancel != nil {
			v.cancel()
		}
		v.L.Close()
		delete(m.states, key)
	}
}

// lookup returns the VM for scenarioID, falling back to the global VM.
func (m *Manager) lookup(scenarioID string) *vm {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.states[scenarioID]; ok {
		return v
	}
	return m.states[globalScenarioID]
}

// HasHook reports whether fn is defined as a function in scenarioID's VM or
// the global fallback. The scenario builder uses this to fail fast on
// references to missing hooks.
func (m *Manager) HasHook(scenarioID, fn string) bool {
	v := m.lookup(scenarioID)
	if v == nil {
		return false
	}
	_, ok := v.L.GetGlobal(fn).(*lua.LFunction)
	return ok
}

// CallHook calls the named Lua global function in scenarioID's VM with raw
// Lua arguments. Returns (LNil, nil) if the hook is not defined or no VM
// exists. Lua runtime errors are logged at Warn level and never propagated.
//
// Postcondition: returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(scenarioID, fn string, args ...lua.LValue) (lua.LValue, error) {
	v := m.lookup(scenarioID)
	if v == nil {
		m.logger.Info("scripting: no VM for scenario",
			zap.String("scenario", scenarioID),
			zap.String("hook", fn),
		)
		return lua.LNil, nil
	}
	return m.call(v, scenarioID, fn, args...), nil
}

// call invokes fn on v with a fresh instruction budget. A missing hook or a
// runtime error yields LNil.
func (m *Manager) call(v *vm, scenarioID, fn string, args ...lua.LValue) lua.LValue {
	target := v.L.GetGlobal(fn)
	if target == lua.LNil {
		return lua.LNil
	}
	v.resetBudget()
	if err := v.L.CallByParam(lua.P{
		Fn:      target,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("scenario", scenarioID),
			zap.String("hook", fn),
			zap.Error(err),
		)
		return lua.LNil
	}
	ret := v.L.Get(-1)
	v.L.Pop(1)
	return ret
}

// CallPredicate evaluates fn(agent, world) as an action precondition. The
// stores are marshalled to plain Lua tables. A missing hook, a missing VM,
// or a runtime error all count as precondition-false.
func (m *Manager) CallPredicate(scenarioID, fn string, agent, world goap.Store) (bool, error) {
	v := m.lookup(scenarioID)
	if v == nil {
		return false, nil
	}
	ret := m.call(v, scenarioID, fn, storeTable(v.L, agent), storeTable(v.L, world))
	return lua.LVAsBool(ret), nil
}

// CallChecker evaluates fn(value) as an expectation check. A missing hook or
// a runtime error counts as unmet.
func (m *Manager) CallChecker(scenarioID, fn string, value any) (bool, error) {
	v := m.lookup(scenarioID)
	if v == nil {
		return false, nil
	}
	ret := m.call(v, scenarioID, fn, luaValue(value))
	return lua.LVAsBool(ret), nil
}

// CallComparer evaluates fn(a, b) over two hypothetical states, each passed
// as a table with agent and world subtables. A positive number ranks a
// first, a negative number ranks b first; anything else is indifferent.
func (m *Manager) CallComparer(scenarioID, fn string, a, b *goap.Concept) (goap.Ordering, error) {
	v := m.lookup(scenarioID)
	if v == nil {
		return goap.Equal, nil
	}
	ret := m.call(v, scenarioID, fn, conceptTable(v.L, a), conceptTable(v.L, b))
	n := float64(lua.LVAsNumber(ret))
	switch {
	case n > 0:
		return goap.Greater, nil
	case n < 0:
		return goap.Less, nil
	default:
		return goap.Equal, nil
	}
}
