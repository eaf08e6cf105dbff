package pagination

import "sync/atomic"

// Gate is a single-permit guard over page requests. The zero value is open.
type Gate struct {
	closed atomic.Bool
}

// TryClose closes the gate and reports whether the caller now holds the permit.
// It returns false when the gate was already closed.
func (g *Gate) TryClose() bool {
	return g.closed.CompareAndSwap(false, true)
}

// Reopen releases the permit.
func (g *Gate) Reopen() {
	g.closed.Store(false)
}

// IsOpen reports whether a request may be issued.
func (g *Gate) IsOpen() bool {
	return !g.closed.Load()
}
