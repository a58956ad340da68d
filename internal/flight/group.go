// Package flight runs asynchronous operations with per-key deduplication.
//
// A [Group] offers two disciplines over the same key space:
//
//   - [Group.Do] is single-flight: while an operation for a key is running,
//     further requests attach to it and share its [Call].
//   - [Group.DoTrailing] is single-flight with one trailing run: requests
//     that arrive while an operation is running collapse into a single
//     follow-up run that starts as soon as the current one finishes.
//
// Keys are typically owner identities (a pointer to the object whose
// resource the operation touches), so that one Group can serve many owners.
//
// A Group should use either Do or DoTrailing for a given key, not both. Use
// separate Groups for separate operations on the same owner.
package flight

import "sync"

// Group deduplicates operations by key. The zero value is ready to use.
type Group[K comparable] struct {
	mu    sync.Mutex
	calls map[K]*entry
}

// entry tracks the running call for a key and, for trailing operations, the
// pending follow-up.
type entry struct {
	running *Call
	pending *Call
	// fn is the operation the pending run will execute. The most recent
	// request wins.
	fn func() error
}

// Do runs fn in a new goroutine unless a run for key is already in flight,
// in which case the caller is attached to it.
//
// shared reports whether the returned [Call] belongs to a run started by an
// earlier request. Once the run finishes the key is idle again and the next
// Do starts a fresh run.
func (g *Group[K]) Do(key K, fn func() error) (c *Call, shared bool) {
	if fn == nil {
		panic("flight: fn is nil")
	}

	g.mu.Lock()

	if e, ok := g.calls[key]; ok {
		g.mu.Unlock()

		return e.running, true
	}

	c = newCall()
	g.lazyInit()
	g.calls[key] = &entry{running: c}
	g.mu.Unlock()

	go func() {
		err := fn()

		g.mu.Lock()
		delete(g.calls, key)
		g.mu.Unlock()

		c.finish(err)
	}()

	return c, false
}

// DoTrailing runs fn for key with at most one run in flight and at most one
// run owed.
//
//   - Idle: fn starts in a new goroutine and its Call is returned.
//   - Running: a pending Call is allocated and returned. No second run starts.
//   - Running with pending: the same pending Call is returned (shared=true).
//
// When a run finishes and a pending Call exists, the pending run starts
// immediately with the most recently supplied fn. fn is expected to act on
// live state at the moment it starts, not on a snapshot taken at request
// time.
//
// The returned Call therefore completes only after a run that started at or
// after this request has finished.
func (g *Group[K]) DoTrailing(key K, fn func() error) (c *Call, shared bool) {
	if fn == nil {
		panic("flight: fn is nil")
	}

	g.mu.Lock()

	if e, ok := g.calls[key]; ok {
		e.fn = fn

		if e.pending != nil {
			g.mu.Unlock()

			return e.pending, true
		}

		e.pending = newCall()
		g.mu.Unlock()

		return e.pending, false
	}

	c = newCall()
	e := &entry{running: c, fn: fn}
	g.lazyInit()
	g.calls[key] = e
	g.mu.Unlock()

	go g.runTrailing(key, e, c, fn)

	return c, false
}

func (g *Group[K]) runTrailing(key K, e *entry, c *Call, fn func() error) {
	for {
		err := fn()

		g.mu.Lock()

		next := e.pending
		if next == nil {
			delete(g.calls, key)
			g.mu.Unlock()

			c.finish(err)

			return
		}

		e.running = next
		e.pending = nil
		fn = e.fn
		g.mu.Unlock()

		c.finish(err)

		c = next
	}
}

// Last returns the Call that completes after every request made so far for
// key has been served: the pending Call if one is owed, otherwise the running
// one. Returns nil when key is idle.
func (g *Group[K]) Last(key K) *Call {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.calls[key]
	if !ok {
		return nil
	}

	if e.pending != nil {
		return e.pending
	}

	return e.running
}

// Busy reports whether a run for key is in flight.
func (g *Group[K]) Busy(key K) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, ok := g.calls[key]

	return ok
}

func (g *Group[K]) lazyInit() {
	if g.calls == nil {
		g.calls = make(map[K]*entry)
	}
}
