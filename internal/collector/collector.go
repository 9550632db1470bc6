// Package collector defines the counter Source interface and provides the
// implementations that produce CPU counter snapshots for the Reader stage.
package collector

import (
	"context"
	"errors"

	"github.com/Guliveer/vitalis/cpumon/internal/procstat"
)

// ErrNotOpen is returned by Read on a source that has not been opened.
var ErrNotOpen = errors.New("collector: source not open")

// Source is the interface that all counter sources must implement.
// A source yields one snapshot of CPU counter records per Read call.
type Source interface {
	// Name returns the unique identifier for this source.
	Name() string

	// Open acquires the resources the source reads from. Failing to open a
	// source is fatal to the Reader.
	Open(ctx context.Context) error

	// Read stores the current counter records in dst, up to its capacity,
	// and returns dst resliced to the records read. It fails with
	// procstat.ErrCapacityExceeded if more records exist than fit.
	Read(ctx context.Context, dst []procstat.CounterRecord) ([]procstat.CounterRecord, error)

	// Close releases what Open acquired. It is safe to call on a source that
	// was never opened.
	Close() error

	// IsAvailable checks if this source can run on the current platform.
	// Sources that return false will not be registered.
	IsAvailable() bool
}
