// Package singleflight tracks in-flight fetches by key so that concurrent
// callers for the same key share one execution.
//
// Unlike golang.org/x/sync/singleflight, a Call is a first-class handle: a
// waiter that gives up on a slow call can forget exactly that call without
// disturbing a newer one registered under the same key, and ForgetAll
// advances a generation counter so owners can tell that their result
// belongs to a registry state that has since been reset.
package singleflight

import (
	"fmt"
	"sync"
)

// Group manages a set of in-flight calls.
type Group struct {
	mu  sync.Mutex
	m   map[string]*Call
	gen uint64
}

// Call represents one execution of a function for a key.
type Call struct {
	key  string
	gen  uint64
	done chan struct{}
	val  any
	err  error
}

// New creates a new Group.
func New() *Group {
	return &Group{
		m: make(map[string]*Call),
	}
}

// Join returns the in-flight call for key, or registers a new one that runs
// fn in its own goroutine. owner reports whether this caller created the call.
// The call is removed from the group as soon as fn returns, before waiters
// are released, so a settled call never lingers in the registry.
func (g *Group) Join(key string, fn func(gen uint64) (any, error)) (c *Call, owner bool) {
	g.mu.Lock()
	if c, ok := g.m[key]; ok {
		g.mu.Unlock()
		return c, false
	}

	c = &Call{
		key:  key,
		gen:  g.gen,
		done: make(chan struct{}),
	}
	g.m[key] = c
	g.mu.Unlock()

	go g.run(c, fn)
	return c, true
}

func (g *Group) run(c *Call, fn func(gen uint64) (any, error)) {
	defer func() {
		if r := recover(); r != nil {
			c.val, c.err = nil, fmt.Errorf("%w: %v", ErrPanicked, r)
		}
		g.Forget(c)
		close(c.done)
	}()

	c.val, c.err = fn(c.gen)
}

// Forget removes c from the group if it is still the registered call for
// its key. Waiters already holding c keep waiting on it.
func (g *Group) Forget(c *Call) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.m[c.key] == c {
		delete(g.m, c.key)
		return true
	}
	return false
}

// ForgetAll drops every registered call and advances the generation.
// It returns the new generation.
func (g *Group) ForgetAll() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.m = make(map[string]*Call)
	g.gen++
	return g.gen
}

// Generation returns the current generation.
func (g *Group) Generation() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen
}

// Pending reports whether a call is registered for key.
func (g *Group) Pending(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.m[key]
	return ok
}

// Len returns the number of registered calls.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.m)
}

// Generation returns the group generation the call was created in.
func (c *Call) Generation() uint64 {
	return c.gen
}

// Done is closed once the call has settled.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Result returns the settled value and error. It must only be called after
// Done is closed.
func (c *Call) Result() (any, error) {
	return c.val, c.err
}
