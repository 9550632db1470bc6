// Package worker implements the pipeline stages and the lifecycle they share:
// Init acquires the stage's buffers and publishes its readiness, Step is run
// in a loop with a liveness heartbeat before each iteration, and Deinit runs
// exactly once on every exit path, returning shared state to its initial form
// so the stage can be started again.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/Guliveer/vitalis/cpumon/internal/watchdog"
)

// ErrStopped is returned by a Heartbeat when the supervisor has begun
// stopping every worker. The worker returns without error.
var ErrStopped = errors.New("worker: stopped by supervisor")

// Worker is one pipeline stage.
type Worker interface {
	Name() string

	// Init allocates what the stage owns and opens its inputs. Deinit is
	// called even if Init fails, so Init may leave partial state behind.
	Init(ctx context.Context) error

	// Step performs one iteration. Any error ends the worker.
	Step(ctx context.Context) error

	// Deinit releases everything Init acquired.
	Deinit() error
}

// Heartbeat reports that a worker is alive. A nil Heartbeat disables
// supervision.
type Heartbeat func(ctx context.Context) error

// WatchdogHeartbeat reports to wd under id.
func WatchdogHeartbeat(wd *watchdog.Watchdog, id watchdog.Identity) Heartbeat {
	return func(ctx context.Context) error {
		err := wd.ReportAlive(ctx, id)
		if errors.Is(err, watchdog.ErrShuttingDown) {
			return ErrStopped
		}
		return err
	}
}

// Run drives w until ctx is done or a step fails. Cancellation is a normal
// stop and yields nil; anything else is returned wrapped with the worker's
// name, together with any Deinit failure.
func Run(ctx context.Context, w Worker, hb Heartbeat) (err error) {
	defer func() {
		if derr := w.Deinit(); derr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: deinit: %w", w.Name(), derr))
		}
	}()

	if err := w.Init(ctx); err != nil {
		return stopErr(ctx, w, "init", err)
	}

	for ctx.Err() == nil {
		if hb != nil {
			if err := hb(ctx); err != nil {
				return stopErr(ctx, w, "heartbeat", err)
			}
		}
		if err := w.Step(ctx); err != nil {
			return stopErr(ctx, w, "", err)
		}
	}
	return nil
}

func stopErr(ctx context.Context, w Worker, stage string, err error) error {
	if errors.Is(err, ErrStopped) {
		return nil
	}
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return nil
	}
	if stage == "" {
		return fmt.Errorf("%s: %w", w.Name(), err)
	}
	return fmt.Errorf("%s: %s: %w", w.Name(), stage, err)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
