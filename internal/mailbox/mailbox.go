// Package mailbox implements the single-slot handoff used between pipeline
// stages. A producer publishes the latest value; the consumer wakes at most
// once per value and only ever sees the newest one. Intermediate values are
// overwritten when the consumer is slow.
package mailbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Guliveer/vitalis/cpumon/internal/syncx"
)

// ErrCapacityExceeded is returned by Submit when the value does not fit the
// slot. It indicates a sizing error in the caller, not a transient condition.
var ErrCapacityExceeded = errors.New("mailbox: value exceeds slot capacity")

// DefaultTakeTimeout bounds each Take so the consumer regains control often
// enough to report liveness.
const DefaultTakeTimeout = time.Second

// Stats holds the mailbox counters.
type Stats struct {
	Submitted uint64 `json:"submitted"`
	Taken     uint64 `json:"taken"`
	Dropped   uint64 `json:"dropped"`
}

// Mailbox is a single-slot, overwrite-on-write, block-on-empty channel between
// one producer and one consumer.
//
// The slot is owned by the mailbox. Submit copies into it and Take copies out
// of it, both under mu, so neither side ever holds a reference into the slot.
type Mailbox[E any] struct {
	mu        sync.Mutex
	submitted *syncx.Cond
	ready     *syncx.Barrier

	slot     []E
	capacity int
	fresh    bool

	timeout time.Duration
	stats   Stats
}

// New returns an uninitialized mailbox. Producers block in Submit until the
// consumer calls Open.
func New[E any](takeTimeout time.Duration) *Mailbox[E] {
	if takeTimeout <= 0 {
		takeTimeout = DefaultTakeTimeout
	}
	m := &Mailbox[E]{timeout: takeTimeout}
	m.submitted = syncx.NewCond(&m.mu)
	m.ready = syncx.NewBarrier(&m.mu)
	return m
}

// Open allocates a slot of the given capacity and releases producers waiting
// for the consumer. It is called by the consumer during its initialization.
func (m *Mailbox[E]) Open(capacity int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.slot = make([]E, 0, capacity)
	m.capacity = capacity
	m.fresh = false
	m.stats = Stats{}
	m.ready.MarkReady()
}

// Reset frees the slot and returns the mailbox to its uninitialized state so
// the consumer can be started again.
func (m *Mailbox[E]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.slot = nil
	m.capacity = 0
	m.fresh = false
	m.ready.Reset()
}

// Submit publishes values as the latest content of the slot and wakes the
// consumer. It waits for the consumer to Open the mailbox first. Oversized
// values fail immediately with ErrCapacityExceeded.
func (m *Mailbox[E]) Submit(ctx context.Context, values []E) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ready.Wait(ctx); err != nil {
		return err
	}
	if len(values) > m.capacity {
		return ErrCapacityExceeded
	}

	if m.fresh {
		m.stats.Dropped++
	}
	m.slot = append(m.slot[:0], values...)
	m.fresh = true
	m.stats.Submitted++

	m.submitted.Signal()
	return nil
}

// Take waits up to the take timeout for a value newer than the last one taken.
// The value is appended to dst[:0] and returned with ok set. On timeout ok is
// false and err is nil; err is set only if ctx is done.
func (m *Mailbox[E]) Take(ctx context.Context, dst []E) (out []E, ok bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.fresh {
		if _, err := m.submitted.Wait(ctx, m.timeout); err != nil {
			return dst[:0], false, err
		}
	}
	if !m.fresh {
		return dst[:0], false, nil
	}

	out = append(dst[:0], m.slot...)
	m.fresh = false
	m.stats.Taken++
	return out, true, nil
}

// Capacity returns the slot capacity, or 0 while the mailbox is not open.
func (m *Mailbox[E]) Capacity() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capacity
}

// Stats returns a copy of the mailbox counters since the last Open.
func (m *Mailbox[E]) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
