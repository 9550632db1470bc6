package logqueue

import (
	"context"
	"strings"

	"go.uber.org/zap/zapcore"
)

type writer struct {
	ctx  context.Context
	q    *Queue
	mode Admission
}

// Writer adapts the queue to a zapcore.WriteSyncer so a zap core can log into
// it. Each Write becomes one queue entry with its trailing newline removed;
// the consumer adds it back when persisting.
//
// Blocking writers stop waiting when ctx is done. A failed write is reported
// by zap on its ErrorOutput, never through the queue itself.
func (q *Queue) Writer(ctx context.Context, mode Admission) zapcore.WriteSyncer {
	return &writer{ctx: ctx, q: q, mode: mode}
}

func (w *writer) Write(p []byte) (int, error) {
	msg := strings.TrimSuffix(string(p), "\n")
	if err := w.q.Enqueue(w.ctx, msg, w.mode); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Sync is a no-op: durability is the consumer's job.
func (w *writer) Sync() error {
	return nil
}
