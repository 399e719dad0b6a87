package reconcile

import "sync"

// State is the believed condition of one light. Step 0 is the off level;
// every resolved state satisfies On == (Step != 0). A state stays unresolved
// from process start until the first sensor or command event fixes it.
type State struct {
	Resolved bool
	On       bool
	Step     int
}

// Store holds the believed state of one light. It is mutated only by the
// engine owning that light; the locked read surface exists for introspection
// from other goroutines.
type Store struct {
	mu    sync.RWMutex
	state State
}

// NewStore returns a store in the unresolved state.
func NewStore() *Store {
	return &Store{}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Set replaces the state, marking it resolved, and returns the new value.
func (s *Store) Set(on bool, step int) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{Resolved: true, On: on, Step: step}
	return s.state
}
