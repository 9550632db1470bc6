// CPU times source gathering aggregate and per-core CPU times.
// Uses gopsutil for cross-platform CPU metrics.
package collector

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/Guliveer/vitalis/cpumon/internal/procstat"
)

// userHZ converts gopsutil's seconds back into kernel clock ticks.
const userHZ = 100

// CPUTimesSource collects counters through gopsutil's cpu.Times, for hosts
// without a readable /proc/stat.
type CPUTimesSource struct {
	open bool
}

// NewCPUTimesSource creates a new gopsutil-backed source.
func NewCPUTimesSource() *CPUTimesSource {
	return &CPUTimesSource{}
}

// Name returns the source identifier.
func (s *CPUTimesSource) Name() string { return "gopsutil" }

// Open performs no I/O; gopsutil opens what it needs per call.
func (s *CPUTimesSource) Open(ctx context.Context) error {
	s.open = true
	return nil
}

// Read gathers the aggregate entry followed by one entry per core.
func (s *CPUTimesSource) Read(ctx context.Context, dst []procstat.CounterRecord) ([]procstat.CounterRecord, error) {
	dst = dst[:0]
	if !s.open {
		return dst, ErrNotOpen
	}

	total, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return dst, fmt.Errorf("reading total cpu times: %w", err)
	}
	cores, err := cpu.TimesWithContext(ctx, true)
	if err != nil {
		return dst, fmt.Errorf("reading per-cpu times: %w", err)
	}
	if len(total) == 0 {
		return dst, fmt.Errorf("reading total cpu times: no data")
	}

	if 1+len(cores) > cap(dst) {
		return dst, procstat.ErrCapacityExceeded
	}

	dst = append(dst, toRecord("cpu", total[0]))
	for _, c := range cores {
		dst = append(dst, toRecord(c.CPU, c))
	}
	return dst, nil
}

// Close marks the source closed.
func (s *CPUTimesSource) Close() error {
	s.open = false
	return nil
}

// IsAvailable returns true; CPU times are available on all platforms.
func (s *CPUTimesSource) IsAvailable() bool { return true }

func toRecord(name string, t cpu.TimesStat) procstat.CounterRecord {
	if len(name) > procstat.MaxNameLen {
		name = name[:procstat.MaxNameLen]
	}
	return procstat.CounterRecord{
		Name:      name,
		User:      ticks(t.User),
		Nice:      ticks(t.Nice),
		System:    ticks(t.System),
		Idle:      ticks(t.Idle),
		IOWait:    ticks(t.Iowait),
		IRQ:       ticks(t.Irq),
		SoftIRQ:   ticks(t.Softirq),
		Steal:     ticks(t.Steal),
		Guest:     ticks(t.Guest),
		GuestNice: ticks(t.GuestNice),
	}
}

func ticks(seconds float64) uint64 {
	if seconds <= 0 {
		return 0
	}
	return uint64(math.Round(seconds * userHZ))
}

// HostEntries returns the number of counter records a snapshot of this host
// can hold: one per configured logical CPU plus the aggregate entry.
func HostEntries(ctx context.Context) int {
	n, err := cpu.CountsWithContext(ctx, true)
	if err != nil || n <= 0 {
		n = runtime.NumCPU()
	}
	return n + 1
}
