package syncx

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Barrier.Wait once the resource behind the barrier
// has been torn down.
var ErrClosed = errors.New("syncx: barrier closed")

// Barrier blocks callers until a shared resource has been initialized.
//
// A Barrier does not own a mutex: it shares the Locker of the component whose
// readiness it tracks, so that component keeps a single lock for all of its
// state. Every method must be called with that Locker held.
type Barrier struct {
	cond   *Cond
	ready  bool
	closed bool
}

// NewBarrier returns a not-ready Barrier guarded by l.
func NewBarrier(l sync.Locker) *Barrier {
	return &Barrier{cond: NewCond(l)}
}

// Wait blocks until MarkReady has been called. There is no timeout: not being
// ready is a startup race, never a steady state. The wait still ends with
// ctx.Err() if ctx is cancelled, or with ErrClosed if Close is called, so a
// stopping goroutine is never stranded.
func (b *Barrier) Wait(ctx context.Context) error {
	for !b.ready {
		if b.closed {
			return ErrClosed
		}
		if _, err := b.cond.Wait(ctx, 0); err != nil {
			return err
		}
	}
	return nil
}

// MarkReady sets the ready flag and wakes all waiters. Calling it twice is a
// no-op.
func (b *Barrier) MarkReady() {
	if b.ready {
		return
	}
	b.ready = true
	b.closed = false
	b.cond.Broadcast()
}

// Close marks the resource as gone until the next MarkReady. Pending and
// future waiters get ErrClosed.
func (b *Barrier) Close() {
	b.ready = false
	b.closed = true
	b.cond.Broadcast()
}

// Reset returns the barrier to its initial, not-ready state so the owning
// component can be initialized again.
func (b *Barrier) Reset() {
	b.ready = false
	b.closed = false
}

// Ready reports whether MarkReady has been called since the last Reset.
func (b *Barrier) Ready() bool {
	return b.ready
}

// Closed reports whether Close has been called since the last MarkReady or
// Reset.
func (b *Barrier) Closed() bool {
	return b.closed
}
