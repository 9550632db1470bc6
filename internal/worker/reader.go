package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Guliveer/vitalis/cpumon/internal/collector"
	"github.com/Guliveer/vitalis/cpumon/internal/mailbox"
	"github.com/Guliveer/vitalis/cpumon/internal/procstat"
)

// FirstInterval is the default length of the first inter-sample sleep. It is
// shorter than the regular interval so the first frame appears quickly.
const FirstInterval = 100 * time.Millisecond

// ReaderConfig configures the Reader.
type ReaderConfig struct {
	MaxEntries    int
	Interval      time.Duration
	FirstInterval time.Duration
}

// Reader samples the counter source and publishes every snapshot to the
// Analyzer's mailbox.
type Reader struct {
	src    collector.Source
	out    *mailbox.Mailbox[procstat.CounterRecord]
	cfg    ReaderConfig
	logger *zap.Logger

	records []procstat.CounterRecord
	slept   bool
}

// NewReader creates a Reader over src publishing to out.
func NewReader(src collector.Source, out *mailbox.Mailbox[procstat.CounterRecord], cfg ReaderConfig, logger *zap.Logger) *Reader {
	if cfg.FirstInterval <= 0 {
		cfg.FirstInterval = FirstInterval
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &Reader{src: src, out: out, cfg: cfg, logger: logger}
}

func (r *Reader) Name() string { return "reader" }

func (r *Reader) Init(ctx context.Context) error {
	r.records = make([]procstat.CounterRecord, 0, r.cfg.MaxEntries)
	r.slept = false
	if err := r.src.Open(ctx); err != nil {
		return fmt.Errorf("opening source %s: %w", r.src.Name(), err)
	}
	r.logger.Debug("Reader initialized",
		zap.String("source", r.src.Name()),
		zap.Int("max_entries", r.cfg.MaxEntries))
	return nil
}

func (r *Reader) Step(ctx context.Context) error {
	records, err := r.src.Read(ctx, r.records)
	if err != nil {
		return fmt.Errorf("reading counters: %w", err)
	}
	r.records = records

	if err := r.out.Submit(ctx, records); err != nil {
		return fmt.Errorf("submitting snapshot: %w", err)
	}

	d := r.cfg.Interval
	if !r.slept {
		r.slept = true
		d = r.cfg.FirstInterval
	}
	return sleep(ctx, d)
}

func (r *Reader) Deinit() error {
	r.records = nil
	r.slept = false
	return r.src.Close()
}
