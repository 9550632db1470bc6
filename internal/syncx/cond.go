// Package syncx provides the blocking primitives shared by every pipeline
// stage: a condition variable whose wait is bounded and cancellable, and an
// initialization barrier built on top of it.
package syncx

import (
	"context"
	"sync"
	"time"
)

// Cond is a condition variable bound to a Locker, like sync.Cond, except that
// Wait accepts a timeout and a context. Waiters are parked on a channel that is
// closed on Signal/Broadcast, so no goroutine ever polls.
//
// State guarded by L must only change while L is held; otherwise a wakeup
// can be lost between the waiter's check and its Wait.
type Cond struct {
	L sync.Locker

	mu sync.Mutex
	ch chan struct{}
}

// NewCond returns a Cond that releases and re-acquires l around each Wait.
func NewCond(l sync.Locker) *Cond {
	return &Cond{L: l}
}

// Wait atomically unlocks c.L and suspends the caller until it is woken by
// Signal or Broadcast, the timeout elapses, or ctx is done. c.L is locked
// again before Wait returns, on every path.
//
// woken is false on timeout and on cancellation; err is non-nil only when ctx
// ended the wait. A timeout <= 0 waits without bound. As with sync.Cond the
// caller must re-check its predicate in a loop.
func (c *Cond) Wait(ctx context.Context, timeout time.Duration) (woken bool, err error) {
	ch := c.channel()

	c.L.Unlock()
	defer c.L.Lock()

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case <-ch:
		return true, nil
	case <-expired:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Signal wakes the goroutines currently waiting on c. Waiters re-check their
// predicate, so waking more than one is harmless.
func (c *Cond) Signal() {
	c.Broadcast()
}

// Broadcast wakes all goroutines waiting on c.
func (c *Cond) Broadcast() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ch != nil {
		close(c.ch)
		c.ch = nil
	}
}

func (c *Cond) channel() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ch == nil {
		c.ch = make(chan struct{})
	}
	return c.ch
}
