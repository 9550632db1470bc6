package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Guliveer/vitalis/cpumon/internal/mailbox"
	"github.com/Guliveer/vitalis/cpumon/internal/procstat"
	"github.com/Guliveer/vitalis/cpumon/internal/render"
)

// Printer hands every new usage vector to the render sinks. The sinks are
// owned by the caller and outlive the worker.
type Printer struct {
	in         *mailbox.Mailbox[procstat.Usage]
	sinks      []render.Sink
	maxEntries int
	logger     *zap.Logger

	frame []procstat.Usage
}

// NewPrinter creates a Printer reading from in.
func NewPrinter(in *mailbox.Mailbox[procstat.Usage], sinks []render.Sink, maxEntries int, logger *zap.Logger) *Printer {
	return &Printer{in: in, sinks: sinks, maxEntries: maxEntries, logger: logger}
}

func (p *Printer) Name() string { return "printer" }

func (p *Printer) Init(ctx context.Context) error {
	p.frame = make([]procstat.Usage, 0, p.maxEntries)
	p.in.Open(p.maxEntries)
	return nil
}

func (p *Printer) Step(ctx context.Context) error {
	frame, ok, err := p.in.Take(ctx, p.frame)
	if err != nil || !ok {
		return err
	}
	p.frame = frame

	for _, s := range p.sinks {
		if err := s.Render(frame); err != nil {
			return fmt.Errorf("rendering frame: %w", err)
		}
	}
	return nil
}

func (p *Printer) Deinit() error {
	p.in.Reset()
	p.frame = nil
	return nil
}
