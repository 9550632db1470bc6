package worker

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Guliveer/vitalis/cpumon/internal/logqueue"
)

// LogWriter is the consumer of the log queue. It persists every entry to the
// log file, opened in append mode, in submission order.
//
// Its own diagnostics must not go through the queue it drains; logger is
// expected to be console-only.
type LogWriter struct {
	queue   *logqueue.Queue
	path    string
	timeout time.Duration
	logger  *zap.Logger

	file *os.File
}

// NewLogWriter creates the consumer for q writing to path.
func NewLogWriter(q *logqueue.Queue, path string, drainTimeout time.Duration, logger *zap.Logger) *LogWriter {
	if drainTimeout <= 0 {
		drainTimeout = logqueue.DefaultDrainTimeout
	}
	return &LogWriter{queue: q, path: path, timeout: drainTimeout, logger: logger}
}

func (l *LogWriter) Name() string { return "logger" }

func (l *LogWriter) Init(ctx context.Context) error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	l.file = f
	l.queue.Open()
	return nil
}

func (l *LogWriter) Step(ctx context.Context) error {
	if _, err := l.queue.Drain(ctx, l.timeout, l.file); err != nil {
		if ctx.Err() != nil {
			return err
		}
		// A failed write loses those entries but must not stop producers.
		l.logger.Error("Failed to write log entries", zap.Error(err))
	}
	return nil
}

// Deinit writes whatever is still queued before closing the file. The queue
// stays closed until the next Init, so producers stop waiting for it.
func (l *LogWriter) Deinit() error {
	if l.file == nil {
		_, err := l.queue.Close(io.Discard)
		return err
	}

	var err error
	if _, ferr := l.queue.Close(l.file); ferr != nil {
		err = multierr.Append(err, fmt.Errorf("flushing log queue: %w", ferr))
	}
	err = multierr.Append(err, l.file.Close())
	l.file = nil
	return err
}
