package flight

import (
	"context"
	"sync"
)

// Call is the completion signal of one run of an operation.
//
// Every requester that was attached to the same run receives the same *Call
// and observes the same error. A Call completes exactly once.
type Call struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newCall() *Call {
	return &Call{done: make(chan struct{})}
}

// Completed returns a Call that has already finished with err.
func Completed(err error) *Call {
	c := newCall()
	c.finish(err)

	return c
}

// Done returns a channel that is closed when the call completes.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Err blocks until the call completes and returns its error.
func (c *Call) Err() error {
	<-c.done

	return c.err
}

// Wait blocks until the call completes or ctx is done, whichever happens
// first. The context only bounds the wait. The operation itself keeps running
// to completion and its result is still visible through [Call.Err].
func (c *Call) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finished reports whether the call has completed without blocking.
func (c *Call) Finished() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Call) finish(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}
