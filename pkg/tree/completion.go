package tree

import (
	"context"
	"sync"
)

// Resolution is the result of a path expansion.
type Resolution struct {
	// Parent is the node whose opening revealed the target
	Parent *Node

	// Target is the node with the last ID of the ancestor chain
	Target *Node
}

// Completion is resolved at most once, when the path target is rendered.
type Completion struct {
	once     sync.Once
	done     chan struct{}
	gone     chan struct{}
	goneOnce sync.Once
	res      Resolution
}

func newCompletion() *Completion {
	return &Completion{
		done: make(chan struct{}),
		gone: make(chan struct{}),
	}
}

// resolve stores r and reports whether this call was the one that resolved.
func (c *Completion) resolve(r Resolution) bool {
	resolved := false
	c.once.Do(func() {
		c.res = r
		close(c.done)
		resolved = true
	})
	return resolved
}

// abandon wakes waiters of a completion that can no longer resolve.
func (c *Completion) abandon() {
	c.goneOnce.Do(func() { close(c.gone) })
}

// Done is closed when the completion resolves.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Result returns the resolution if the completion has fired.
func (c *Completion) Result() (Resolution, bool) {
	select {
	case <-c.done:
		return c.res, true
	default:
		return Resolution{}, false
	}
}

// Wait blocks until the completion resolves, ctx is done, or the loader is
// torn down. A stalled path never resolves, so callers should pass a ctx
// with a deadline.
func (c *Completion) Wait(ctx context.Context) (Resolution, error) {
	select {
	case <-c.done:
		return c.res, nil
	default:
	}

	select {
	case <-c.done:
		return c.res, nil
	case <-c.gone:
		return Resolution{}, ErrTornDown
	case <-ctx.Done():
		return Resolution{}, ctx.Err()
	}
}
