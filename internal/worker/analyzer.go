package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Guliveer/vitalis/cpumon/internal/mailbox"
	"github.com/Guliveer/vitalis/cpumon/internal/procstat"
)

// Analyzer turns consecutive counter snapshots into usage vectors.
//
// It keeps two snapshot buffers indexed by a toggling cursor. Each new
// snapshot is stored at the cursor, which then flips, so the other buffer
// always holds the previous snapshot.
type Analyzer struct {
	in         *mailbox.Mailbox[procstat.CounterRecord]
	out        *mailbox.Mailbox[procstat.Usage]
	maxEntries int
	logger     *zap.Logger

	snapshots [2][]procstat.CounterRecord
	cursor    int
	percents  []float64
	usage     []procstat.Usage
}

// NewAnalyzer creates an Analyzer reading from in and publishing to out.
func NewAnalyzer(in *mailbox.Mailbox[procstat.CounterRecord], out *mailbox.Mailbox[procstat.Usage], maxEntries int, logger *zap.Logger) *Analyzer {
	return &Analyzer{in: in, out: out, maxEntries: maxEntries, logger: logger}
}

func (a *Analyzer) Name() string { return "analyzer" }

func (a *Analyzer) Init(ctx context.Context) error {
	for i := range a.snapshots {
		a.snapshots[i] = make([]procstat.CounterRecord, 0, a.maxEntries)
	}
	a.cursor = 0
	a.percents = make([]float64, 0, a.maxEntries)
	a.usage = make([]procstat.Usage, 0, a.maxEntries)
	a.in.Open(a.maxEntries)
	return nil
}

func (a *Analyzer) Step(ctx context.Context) error {
	curr, ok, err := a.in.Take(ctx, a.snapshots[a.cursor])
	if err != nil || !ok {
		return err
	}
	a.snapshots[a.cursor] = curr
	a.cursor ^= 1
	prev := a.snapshots[a.cursor]

	if len(prev) == 0 || len(prev) != len(curr) {
		return nil
	}

	percents, err := procstat.ComputeUsage(prev, curr, a.percents)
	switch {
	case errors.Is(err, procstat.ErrZeroDelta), errors.Is(err, procstat.ErrShapeMismatch):
		a.logger.Debug("Skipping cycle", zap.Error(err))
		return nil
	case err != nil:
		return err
	}
	a.percents = percents

	a.usage = a.usage[:0]
	for i, p := range percents {
		a.usage = append(a.usage, procstat.Usage{Name: curr[i].Name, Percent: p})
	}
	if err := a.out.Submit(ctx, a.usage); err != nil {
		return fmt.Errorf("submitting usage: %w", err)
	}
	return nil
}

func (a *Analyzer) Deinit() error {
	a.in.Reset()
	a.snapshots = [2][]procstat.CounterRecord{}
	a.cursor = 0
	a.percents = nil
	a.usage = nil
	return nil
}
