package render

import "sync"

// Container receives rendered fragments in order.
type Container interface {
	Append(f Fragment)
	Clear()
	Len() int
}

// ItemSet is an in-memory Container: append-only until cleared.
type ItemSet struct {
	mu    sync.RWMutex
	items []Fragment
}

// NewItemSet creates an empty item set.
func NewItemSet() *ItemSet {
	return &ItemSet{}
}

// Append adds f at the end.
func (s *ItemSet) Append(f Fragment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, f)
}

// Clear removes every fragment.
func (s *ItemSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
}

// Len returns the number of fragments.
func (s *ItemSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Items returns a copy of the fragments in append order.
func (s *ItemSet) Items() []Fragment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Fragment(nil), s.items...)
}
