package sandbox

import (
	"maps"
	"slices"
	"sync"
)

// GlobalStore is the session-scoped variable bag shared by all frame scripts.
// Values are plain Go values (numbers, strings, bools, nil, maps and slices)
// so they outlive the interpreter instance that produced them.
type GlobalStore struct {
	mu   sync.RWMutex
	vars map[string]any
}

// NewGlobalStore creates an empty store.
func NewGlobalStore() *GlobalStore {
	return &GlobalStore{vars: make(map[string]any)}
}

// Get returns the value stored under name.
func (s *GlobalStore) Get(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vars[name]
	return v, ok
}

// Set stores v under name.
func (s *GlobalStore) Set(name string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[name] = v
}

// Delete removes name and reports whether it was present.
func (s *GlobalStore) Delete(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.vars[name]
	delete(s.vars, name)
	return ok
}

// Has reports whether name is set.
func (s *GlobalStore) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.vars[name]
	return ok
}

// Keys returns the stored names in sorted order.
func (s *GlobalStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.vars))
}

// Len returns the number of stored names.
func (s *GlobalStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vars)
}

// Clear removes every value. The engine calls it on each transition into
// the stopped state.
func (s *GlobalStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.vars)
}

// Snapshot returns a deep copy of the store. Scripts mutate nested maps and
// slices in place, so callers outside the tick must never see the originals.
func (s *GlobalStore) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.vars))
	for k, v := range s.vars {
		out[k] = deepCopy(v)
	}
	return out
}

func deepCopy(v any) any {
	switch v := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(v))
		for k, e := range v {
			m[k] = deepCopy(e)
		}
		return m
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = deepCopy(e)
		}
		return out
	default:
		return v
	}
}
