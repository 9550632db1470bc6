// Package pipeline runs the monitor's worker set: Reader, Analyzer, Printer
// and the log queue consumer, optionally supervised by the watchdog.
//
// A Run starts every worker, waits for all of them to return and reports why
// the set stopped. The first fatal worker error or watchdog verdict cancels
// the whole set. Workers that produce log entries are stopped before the log
// consumer, and the watchdog outlives both, so nothing is left waiting on a
// component that is already gone.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Guliveer/vitalis/cpumon/internal/collector"
	"github.com/Guliveer/vitalis/cpumon/internal/config"
	"github.com/Guliveer/vitalis/cpumon/internal/logqueue"
	"github.com/Guliveer/vitalis/cpumon/internal/mailbox"
	"github.com/Guliveer/vitalis/cpumon/internal/models"
	"github.com/Guliveer/vitalis/cpumon/internal/procstat"
	"github.com/Guliveer/vitalis/cpumon/internal/render"
	"github.com/Guliveer/vitalis/cpumon/internal/watchdog"
	"github.com/Guliveer/vitalis/cpumon/internal/worker"
)

// ErrRunning is returned by Run while another Run of the same pipeline is
// active.
var ErrRunning = errors.New("pipeline: already running")

// Options wires a pipeline.
type Options struct {
	Config *config.Config
	Source collector.Source

	// MaxEntries is the capacity of every snapshot buffer.
	MaxEntries int

	Sinks []render.Sink
	Queue *logqueue.Queue

	// Watchdog supervises the workers selected by Config.Watchdog. Nil
	// disables supervision.
	Watchdog *watchdog.Watchdog

	// Logger may write into Queue. ConsoleLogger must not, since the queue
	// consumer logs through it.
	Logger        *zap.Logger
	ConsoleLogger *zap.Logger
}

// Pipeline owns the stage handoffs and runs the worker set.
type Pipeline struct {
	opts     Options
	counters *mailbox.Mailbox[procstat.CounterRecord]
	usage    *mailbox.Mailbox[procstat.Usage]

	mu      sync.Mutex
	running bool
	runID   string
	runs    int
}

// New creates a pipeline. Nothing runs until Run is called.
func New(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ConsoleLogger == nil {
		opts.ConsoleLogger = zap.NewNop()
	}
	take := opts.Config.Mailbox.TakeTimeout.Duration
	return &Pipeline{
		opts:     opts,
		counters: mailbox.New[procstat.CounterRecord](take),
		usage:    mailbox.New[procstat.Usage](take),
	}
}

// Run starts the worker set and blocks until it has stopped. It returns nil
// when ctx is cancelled, a *watchdog.TimeoutError or *watchdog.SignalError
// when the watchdog stopped the set, or the first fatal worker error.
// Run may be called again once it has returned.
func (p *Pipeline) Run(ctx context.Context) error {
	runID, err := p.begin()
	if err != nil {
		return err
	}
	defer p.end()

	cfg := p.opts.Config
	logger := p.opts.Logger.With(zap.String("run", runID))
	started := time.Now()

	// Stopping order: the producing workers, then the log consumer, then the
	// watchdog. Later stages must not be cancelled by the parent directly.
	setCtx, cancelSet := context.WithCancel(ctx)
	logCtx, cancelLog := context.WithCancel(context.WithoutCancel(ctx))
	wdCtx, cancelWatchdog := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelSet()
	defer cancelLog()
	defer cancelWatchdog()

	var (
		causeMu sync.Mutex
		cause   error
	)
	fail := func(err error) {
		causeMu.Lock()
		if cause == nil {
			cause = err
		}
		causeMu.Unlock()
		cancelSet()
	}

	var wdWG sync.WaitGroup
	if p.opts.Watchdog != nil {
		wdWG.Add(1)
		go func() {
			defer wdWG.Done()
			if err := p.opts.Watchdog.Run(wdCtx); err != nil {
				fail(err)
			}
		}()
	}

	// The queue may still be closed by the previous run; producers wait for
	// this run's consumer instead of failing.
	p.opts.Queue.Reset()

	var logWG, setWG sync.WaitGroup
	console := p.opts.ConsoleLogger.With(zap.String("run", runID))
	p.start(logCtx, &logWG, fail, console, worker.NewLogWriter(p.opts.Queue, cfg.Logging.File,
		cfg.Logging.DrainTimeout.Duration, console.Named("logger")))
	p.start(setCtx, &setWG, fail, logger, worker.NewPrinter(p.usage, p.opts.Sinks,
		p.opts.MaxEntries, logger.Named("printer")))
	p.start(setCtx, &setWG, fail, logger, worker.NewAnalyzer(p.counters, p.usage,
		p.opts.MaxEntries, logger.Named("analyzer")))
	p.start(setCtx, &setWG, fail, logger, worker.NewReader(p.opts.Source, p.counters, worker.ReaderConfig{
		MaxEntries:    p.opts.MaxEntries,
		Interval:      cfg.Sampling.Interval.Duration,
		FirstInterval: cfg.Sampling.FirstInterval.Duration,
	}, logger.Named("reader")))

	logger.Info("Pipeline started",
		zap.String("source", p.opts.Source.Name()),
		zap.Int("max_entries", p.opts.MaxEntries),
		zap.Bool("watchdog", p.opts.Watchdog != nil))

	setWG.Wait()
	logger.Info("Pipeline stopped", zap.Duration("ran", time.Since(started)))
	cancelLog()
	logWG.Wait()
	cancelWatchdog()
	wdWG.Wait()

	causeMu.Lock()
	defer causeMu.Unlock()
	return cause
}

// start runs w on its own child of parent. A supervised worker registers the
// cancel function of that child with the watchdog.
func (p *Pipeline) start(parent context.Context, wg *sync.WaitGroup, fail func(error), logger *zap.Logger, w worker.Worker) {
	ctx, cancel := context.WithCancel(parent)

	var hb worker.Heartbeat
	wd := p.opts.Watchdog
	if wd != nil && p.opts.Config.Watchdog.Watches(w.Name()) {
		hb = worker.WatchdogHeartbeat(wd, watchdog.Identity{Name: w.Name(), Cancel: cancel})
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()

		err := worker.Run(ctx, w, hb)
		if wd != nil {
			wd.Unregister(w.Name())
		}
		if err != nil {
			logger.Error("Worker failed", zap.String("worker", w.Name()), zap.Error(err))
			fail(err)
		}
	}()
}

func (p *Pipeline) begin() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return "", ErrRunning
	}
	p.running = true
	p.runID = uuid.NewString()
	p.runs++
	return p.runID, nil
}

func (p *Pipeline) end() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
}

// Stats describes the current or last run.
func (p *Pipeline) Stats() models.PipelineStats {
	p.mu.Lock()
	runID, runs := p.runID, p.runs
	p.mu.Unlock()

	return models.PipelineStats{
		RunID:  runID,
		Runs:   runs,
		Source: p.opts.Source.Name(),
		Mailboxes: map[string]models.MailboxStats{
			"counters": mailboxStats(p.counters.Stats()),
			"usage":    mailboxStats(p.usage.Stats()),
		},
		LogDropped: p.opts.Queue.Dropped(),
	}
}

func mailboxStats(s mailbox.Stats) models.MailboxStats {
	return models.MailboxStats{Submitted: s.Submitted, Taken: s.Taken, Dropped: s.Dropped}
}
