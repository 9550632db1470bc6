// Package watchdog implements the liveness registry that supervises the
// pipeline workers. Every worker reports a heartbeat on each loop iteration;
// a background scan cancels the whole worker set as soon as one of them has
// been silent for longer than the threshold, or when a termination signal
// arrives.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Guliveer/vitalis/cpumon/internal/syncx"
)

const (
	// DefaultInterval is the time between two scans.
	DefaultInterval = time.Second

	// DefaultThreshold is how long a worker may stay silent.
	DefaultThreshold = 2 * time.Second

	// DefaultMaxThreads is the size of the watched thread table.
	DefaultMaxThreads = 10

	// MaxNameLen bounds the stored thread name.
	MaxNameLen = 63
)

var (
	// ErrRegistryFull is returned when a new thread reports but the table
	// already holds MaxThreads entries. Callers treat it as fatal.
	ErrRegistryFull = errors.New("watchdog: maximum number of watched threads exceeded")

	// ErrShuttingDown is returned to reporters once the watchdog has
	// stopped supervising.
	ErrShuttingDown = errors.New("watchdog: shutting down")

	// ErrAlreadyRunning is returned by Run while another Run is active.
	ErrAlreadyRunning = errors.New("watchdog: already running")
)

// State is the lifecycle state of the registry.
type State int32

const (
	Uninitialized State = iota
	Active
	ShuttingDown
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Active:
		return "active"
	case ShuttingDown:
		return "shutting_down"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// TimeoutError reports the worker whose silence triggered the shutdown.
type TimeoutError struct {
	Thread  string
	Silence time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("thread %q timed out after %v", e.Thread, e.Silence.Round(time.Millisecond))
}

// SignalError reports the signal that triggered the shutdown.
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("received signal %v", e.Signal)
}

// Identity is how a worker is known to the registry: its name, which is also
// its key, and the function that cancels it.
type Identity struct {
	Name   string
	Cancel context.CancelFunc
}

// Thread is a snapshot of one watched thread.
type Thread struct {
	Name         string        `json:"name"`
	RegisteredAt time.Time     `json:"registered_at"`
	LastSeen     time.Time     `json:"last_seen"`
	Silence      time.Duration `json:"silence_ns"`
	Beats        uint64        `json:"beats"`
}

type watched struct {
	name       string
	cancel     context.CancelFunc
	registered time.Time
	last       time.Time
	beats      uint64
}

// Options configures a Watchdog. Zero values fall back to the defaults.
type Options struct {
	Interval   time.Duration
	Threshold  time.Duration
	MaxThreads int

	// Signals delivers termination requests. It is read only by the scan
	// loop. A nil channel disables signal handling.
	Signals <-chan os.Signal

	// Logger must never block; the pipeline hands in a logger writing to the
	// log queue with best-effort admission.
	Logger *zap.Logger

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Watchdog is the liveness registry.
type Watchdog struct {
	mu      sync.Mutex
	ready   *syncx.Barrier
	state   State
	running bool
	threads []watched

	interval   time.Duration
	threshold  time.Duration
	maxThreads int
	signals    <-chan os.Signal
	logger     *zap.Logger
	now        func() time.Time
}

// New creates a watchdog in the Uninitialized state.
func New(opts Options) *Watchdog {
	w := &Watchdog{
		interval:   opts.Interval,
		threshold:  opts.Threshold,
		maxThreads: opts.MaxThreads,
		signals:    opts.Signals,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if w.interval <= 0 {
		w.interval = DefaultInterval
	}
	if w.threshold <= 0 {
		w.threshold = DefaultThreshold
	}
	if w.maxThreads <= 0 {
		w.maxThreads = DefaultMaxThreads
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	if w.now == nil {
		w.now = time.Now
	}
	w.ready = syncx.NewBarrier(&w.mu)
	return w
}

// ReportAlive records a heartbeat for id. The first report for a name
// registers it. ReportAlive waits until the watchdog is Active; while a
// running watchdog is shutting down it returns ErrShuttingDown. Between two
// runs reporters wait for the next one.
func (w *Watchdog) ReportAlive(ctx context.Context, id Identity) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == ShuttingDown && w.running {
		return ErrShuttingDown
	}
	if err := w.ready.Wait(ctx); err != nil {
		return err
	}
	if w.state != Active {
		return ErrShuttingDown
	}

	name := id.Name
	if len(name) > MaxNameLen {
		name = name[:MaxNameLen]
	}

	now := w.now()
	for i := range w.threads {
		if w.threads[i].name == name {
			w.threads[i].last = now
			w.threads[i].beats++
			return nil
		}
	}

	if len(w.threads) >= w.maxThreads {
		return fmt.Errorf("%w (%d)", ErrRegistryFull, w.maxThreads)
	}
	w.threads = append(w.threads, watched{
		name:       name,
		cancel:     id.Cancel,
		registered: now,
		last:       now,
		beats:      1,
	})
	return nil
}

// Unregister removes name from the table. A worker that returns on its own
// calls it so its silence is not taken for a hang.
func (w *Watchdog) Unregister(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(name) > MaxNameLen {
		name = name[:MaxNameLen]
	}
	for i := range w.threads {
		if w.threads[i].name == name {
			w.threads = append(w.threads[:i], w.threads[i+1:]...)
			return
		}
	}
}

// Run supervises the registered threads until ctx is done, a thread times
// out, or a signal arrives. In the last two cases every registered thread is
// cancelled and a *TimeoutError or *SignalError is returned. The registry is
// emptied when Run returns, so Run may be called again.
func (w *Watchdog) Run(ctx context.Context) error {
	if err := w.init(); err != nil {
		return err
	}
	defer w.deinit()

	w.logger.Debug("Watchdog active",
		zap.Duration("interval", w.interval),
		zap.Duration("threshold", w.threshold))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-w.signals:
			w.logger.Warn("Received signal, stopping all threads",
				zap.String("signal", sig.String()))
			w.cancelAll()
			return &SignalError{Signal: sig}
		case <-ticker.C:
			if err := w.scan(); err != nil {
				return err
			}
		}
	}
}

// scan cancels everything if any thread has been silent past the threshold.
func (w *Watchdog) scan() error {
	w.mu.Lock()
	now := w.now()
	var stale *TimeoutError
	for i := range w.threads {
		if silence := now.Sub(w.threads[i].last); silence > w.threshold {
			stale = &TimeoutError{Thread: w.threads[i].name, Silence: silence}
			break
		}
	}
	w.mu.Unlock()

	if stale == nil {
		return nil
	}

	w.logger.Error("Thread timed out, stopping all threads",
		zap.String("thread", stale.Thread),
		zap.Duration("silence", stale.Silence))
	w.cancelAll()
	return stale
}

// cancelAll moves to ShuttingDown and cancels every registered thread. The
// cancel functions run after the lock is released.
func (w *Watchdog) cancelAll() {
	w.mu.Lock()
	w.state = ShuttingDown
	cancels := make([]context.CancelFunc, 0, len(w.threads))
	for _, t := range w.threads {
		if t.cancel != nil {
			cancels = append(cancels, t.cancel)
		}
	}
	w.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

func (w *Watchdog) init() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return ErrAlreadyRunning
	}
	w.running = true
	w.threads = make([]watched, 0, w.maxThreads)
	w.state = Active
	w.ready.MarkReady()
	return nil
}

func (w *Watchdog) deinit() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.running = false
	w.threads = nil
	// A run stopped by a timeout or a signal stays ShuttingDown.
	if w.state == Active {
		w.state = Uninitialized
	}
	w.ready.Reset()
}

// State returns the current lifecycle state. It is Uninitialized before the
// first Run and after a Run stopped through its context, and ShuttingDown
// from a timeout or signal until the next Run.
func (w *Watchdog) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Threads returns a snapshot of the watched thread table.
func (w *Watchdog) Threads() []Thread {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	out := make([]Thread, len(w.threads))
	for i, t := range w.threads {
		out[i] = Thread{
			Name:         t.name,
			RegisteredAt: t.registered,
			LastSeen:     t.last,
			Silence:      now.Sub(t.last),
			Beats:        t.beats,
		}
	}
	return out
}
