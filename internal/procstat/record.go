// Package procstat models kernel CPU time counters and turns two snapshots of
// them into per-CPU usage percentages.
//
// A snapshot is an ordered slice of CounterRecord. Entry 0 is the aggregate
// of all CPUs, entries 1..N are the individual cores in kernel order.
package procstat

import "errors"

// MaxNameLen is the longest CPU name accepted from a counter source.
const MaxNameLen = 15

var (
	// ErrCapacityExceeded means the counter source holds more records than
	// the caller's buffer can take.
	ErrCapacityExceeded = errors.New("procstat: record buffer capacity exceeded")

	// ErrMalformed means a cpu line does not have the expected shape.
	ErrMalformed = errors.New("procstat: malformed cpu line")

	// ErrShapeMismatch means two snapshots do not have the same entries in
	// the same order and cannot be compared.
	ErrShapeMismatch = errors.New("procstat: snapshots differ in shape")

	// ErrZeroDelta means no time elapsed for at least one entry between two
	// snapshots, so usage is undefined.
	ErrZeroDelta = errors.New("procstat: zero total time delta")
)

// CounterRecord holds the cumulative time, in clock ticks, one CPU has spent
// in each state since boot.
type CounterRecord struct {
	Name      string `json:"name"`
	User      uint64 `json:"user"`
	Nice      uint64 `json:"nice"`
	System    uint64 `json:"system"`
	Idle      uint64 `json:"idle"`
	IOWait    uint64 `json:"iowait"`
	IRQ       uint64 `json:"irq"`
	SoftIRQ   uint64 `json:"softirq"`
	Steal     uint64 `json:"steal"`
	Guest     uint64 `json:"guest"`
	GuestNice uint64 `json:"guest_nice"`
}

// IdleTime is the time spent idle or waiting for I/O.
func (r CounterRecord) IdleTime() uint64 {
	return r.Idle + r.IOWait
}

// ActiveTime is the time spent doing work. Guest time is already accounted
// in User and Nice by the kernel and is left out.
func (r CounterRecord) ActiveTime() uint64 {
	return r.User + r.Nice + r.System + r.IRQ + r.SoftIRQ + r.Steal
}

// TotalTime is IdleTime plus ActiveTime.
func (r CounterRecord) TotalTime() uint64 {
	return r.IdleTime() + r.ActiveTime()
}

// Usage is one element of a usage vector: the busy percentage of one CPU
// over the interval between two snapshots.
type Usage struct {
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
}
