// Package logqueue decouples goroutines that emit diagnostic text from the
// single goroutine that writes it to durable storage.
//
// The queue has a fixed number of slots. Each slot keeps up to InlineBytes of
// a message in a buffer allocated once at Open; the rest of an oversized
// message is kept as a separate overflow string owned by the slot until it is
// written. Producers choose per call whether to wait for a free slot
// (Blocking) or to give up immediately (BestEffort).
package logqueue

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/Guliveer/vitalis/cpumon/internal/syncx"
)

const (
	// DefaultSlots is the default queue capacity.
	DefaultSlots = 5

	// DefaultInlineBytes is the default inline capacity of a slot.
	DefaultInlineBytes = 511

	// DefaultDrainTimeout bounds each consumer wait so the consumer can
	// report liveness while no messages arrive.
	DefaultDrainTimeout = time.Second
)

var (
	// ErrNotReady is returned to BestEffort producers while the consumer
	// has not opened the queue.
	ErrNotReady = errors.New("logqueue: not initialized")

	// ErrFull is returned to BestEffort producers when every slot is taken.
	ErrFull = errors.New("logqueue: queue full")

	// ErrClosed is returned to every producer after the consumer closed the
	// queue.
	ErrClosed = errors.New("logqueue: closed")
)

// Admission selects what Enqueue does when the message cannot be accepted
// right away.
type Admission int

const (
	// Blocking waits for the queue to be opened and for a free slot.
	Blocking Admission = iota

	// BestEffort fails immediately instead of waiting. It is meant for
	// callers that must never block, such as error paths of the watchdog.
	BestEffort
)

// String returns the admission name.
func (a Admission) String() string {
	switch a {
	case Blocking:
		return "blocking"
	case BestEffort:
		return "best-effort"
	default:
		return "unknown"
	}
}

type entry struct {
	inline   []byte
	overflow string
}

// Queue is a bounded multi-producer, single-consumer FIFO of text entries.
// All state is guarded by mu, including the writes performed by the consumer,
// so entries reach the sink in exactly the order they were accepted.
type Queue struct {
	mu        sync.Mutex
	ready     *syncx.Barrier
	submitted *syncx.Cond
	freed     *syncx.Cond

	entries     []entry
	n           int
	slots       int
	inlineBytes int
	line        []byte

	dropped atomic.Uint64
}

// New returns an unopened queue with the given capacity. Non-positive values
// fall back to the defaults.
func New(slots, inlineBytes int) *Queue {
	if slots <= 0 {
		slots = DefaultSlots
	}
	if inlineBytes <= 0 {
		inlineBytes = DefaultInlineBytes
	}
	q := &Queue{slots: slots, inlineBytes: inlineBytes}
	q.ready = syncx.NewBarrier(&q.mu)
	q.submitted = syncx.NewCond(&q.mu)
	q.freed = syncx.NewCond(&q.mu)
	return q
}

// Open allocates the slots and releases producers waiting for the consumer.
func (q *Queue) Open() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.entries = make([]entry, q.slots)
	for i := range q.entries {
		q.entries[i].inline = make([]byte, 0, q.inlineBytes)
	}
	q.n = 0
	q.line = make([]byte, 0, q.inlineBytes+1)
	q.ready.MarkReady()
}

// Reset frees the slots and returns the queue to its unopened state:
// Blocking producers wait for the next Open. Anything still queued is
// discarded; use Close to keep it.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.release()
	q.ready.Reset()
}

// Close writes everything still queued to sink, frees the slots and marks the
// queue closed until the next Open. Producers then fail with ErrClosed
// instead of waiting for a consumer that is gone. Flushing and closing happen
// under a single lock hold, so no entry is accepted in between.
func (q *Queue) Close(sink io.Writer) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n, err := q.flush(sink)
	q.release()
	q.ready.Close()
	return n, err
}

func (q *Queue) release() {
	q.entries = nil
	q.n = 0
	q.line = nil
	// Producers parked on a full queue re-check readiness.
	q.freed.Broadcast()
}

// Enqueue copies text into the next free slot.
//
// With Blocking admission the caller first waits for the queue to be opened
// and then, while the queue is full, for the consumer to free slots; only ctx
// and Close end those waits early. With BestEffort admission the call fails at
// once with ErrNotReady or ErrFull and the message is dropped. Once the queue
// is closed every producer gets ErrClosed.
func (q *Queue) Enqueue(ctx context.Context, text string, mode Admission) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if !q.ready.Ready() {
			if q.ready.Closed() {
				q.dropped.Add(1)
				return ErrClosed
			}
			if mode == BestEffort {
				q.dropped.Add(1)
				return ErrNotReady
			}
			if err := q.ready.Wait(ctx); err != nil {
				if errors.Is(err, syncx.ErrClosed) {
					q.dropped.Add(1)
					return ErrClosed
				}
				return err
			}
			continue
		}
		if q.n < len(q.entries) {
			break
		}
		if mode == BestEffort {
			q.dropped.Add(1)
			return ErrFull
		}
		if _, err := q.freed.Wait(ctx, 0); err != nil {
			return err
		}
	}

	e := &q.entries[q.n]
	if len(text) > q.inlineBytes {
		e.inline = append(e.inline[:0], text[:q.inlineBytes]...)
		e.overflow = strings.Clone(text[q.inlineBytes:])
	} else {
		e.inline = append(e.inline[:0], text...)
		e.overflow = ""
	}
	q.n++

	q.submitted.Signal()
	return nil
}

// Drain is one step of the consumer. If nothing is queued it waits up to
// timeout for a submission, then writes every queued entry to sink followed
// by a newline, empties the queue and wakes blocked producers. It returns the
// number of entries written; zero with a nil error means the wait timed out.
func (q *Queue) Drain(ctx context.Context, timeout time.Duration, sink io.Writer) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.n == 0 {
		if _, err := q.submitted.Wait(ctx, timeout); err != nil {
			return 0, err
		}
	}
	if q.n == 0 {
		return 0, nil
	}
	return q.flush(sink)
}

// Flush writes everything still queued to sink without waiting. The consumer
// calls it on teardown so no accepted entry is lost.
func (q *Queue) Flush(sink io.Writer) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.flush(sink)
}

// flush must be called with q.mu held.
func (q *Queue) flush(sink io.Writer) (int, error) {
	n := q.n
	if n == 0 {
		return 0, nil
	}

	var err error
	for i := 0; i < n; i++ {
		e := &q.entries[i]
		q.line = append(q.line[:0], e.inline...)
		q.line = append(q.line, e.overflow...)
		q.line = append(q.line, '\n')
		if _, werr := sink.Write(q.line); werr != nil {
			err = multierr.Append(err, werr)
		}
		e.overflow = ""
	}
	q.n = 0
	q.freed.Broadcast()
	return n, err
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

// Cap returns the number of slots.
func (q *Queue) Cap() int {
	return q.slots
}

// Ready reports whether the queue is open.
func (q *Queue) Ready() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ready.Ready()
}

// Dropped returns how many messages have been rejected.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}
