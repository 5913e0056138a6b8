// Package goap implements a goal-oriented action planner: agents and the
// world are partial key/value stores, actions mutate them through costed
// effects, and a bounded-depth beam search assembles an ordered action
// sequence that drives the state toward a goal's ranked expectations.
package goap

// Target names which of the two top-level stores an Effect or Expectation
// is bound to.
type Target int

const (
	// TargetAgent binds to the agent store.
	TargetAgent Target = iota
	// TargetWorld binds to the world store.
	TargetWorld
)

// String returns "agent" or "world".
func (t Target) String() string {
	if t == TargetWorld {
		return "world"
	}
	return "agent"
}

// Store is a mutable, partial map from property name to value.
//
// Absence and write failures are values, never panics: Get reports presence
// with its second result, Set fails on a missing key, Put fails on a present
// key.
type Store interface {
	// Get returns the value for key and whether it is present.
	Get(key string) (any, bool)
	// Set overwrites an existing key. Returns false if the key is absent.
	Set(key string, value any) bool
	// Put creates a new key. Returns false if the key is already present.
	Put(key string, value any) bool
	// Has reports whether key is present.
	Has(key string) bool
	// Keys returns all present keys in unspecified order.
	Keys() []string
}

// MapStore is the map-backed Store used for real agent/world state and for
// the disposable clones the search simulates against.
//
// Not safe for concurrent use; the planner is single-threaded and every
// simulation branch owns its own clone.
type MapStore struct {
	values map[string]any
}

// NewMapStore returns an empty MapStore.
func NewMapStore() *MapStore {
	return &MapStore{values: make(map[string]any)}
}

// NewMapStoreFrom returns a MapStore seeded with the given properties.
func NewMapStoreFrom(values map[string]any) *MapStore {
	s := NewMapStore()
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

// Get returns the value for key and whether it is present.
func (s *MapStore) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Set overwrites an existing key.
//
// Postcondition: returns false and leaves the store unchanged when key is
// absent.
func (s *MapStore) Set(key string, value any) bool {
	if _, ok := s.values[key]; !ok {
		return false
	}
	s.values[key] = value
	return true
}

// Put creates a new key.
//
// Postcondition: returns false and leaves the store unchanged when key is
// already present.
func (s *MapStore) Put(key string, value any) bool {
	if _, ok := s.values[key]; ok {
		return false
	}
	s.values[key] = value
	return true
}

// Has reports whether key is present.
func (s *MapStore) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Keys returns all present keys in unspecified order.
func (s *MapStore) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	return keys
}

// CloneStore builds a fresh MapStore copied key-for-key from src. The search
// clones the real stores into these disposable pseudo-stores so speculative
// branches never touch committed state.
//
// Precondition: src must not be nil.
func CloneStore(src Store) *MapStore {
	s := NewMapStore()
	for _, k := range src.Keys() {
		if v, ok := src.Get(k); ok {
			s.values[k] = v
		}
	}
	return s
}

// Number coerces a store value to float64. Effects and the bundled checkers
// operate on numeric properties; non-numeric values report false.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// NumberAt reads key from s and coerces it to float64. Returns false when
// the key is absent or non-numeric.
func NumberAt(s Store, key string) (float64, bool) {
	v, ok := s.Get(key)
	if !ok {
		return 0, false
	}
	return Number(v)
}
