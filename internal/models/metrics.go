// Package models defines the data structures served by the status API.
// These structures are serialized to JSON.
package models

import "time"

// UsageFrame is the latest per-core usage vector.
type UsageFrame struct {
	Timestamp time.Time   `json:"timestamp"`
	Overall   float64     `json:"overall"`
	Cores     []CoreUsage `json:"cores"`
}

// CoreUsage is the busy percentage of one CPU over the last sample interval.
type CoreUsage struct {
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
}

// WatchedThread is one row of the watchdog table.
type WatchedThread struct {
	Name          string    `json:"name"`
	RegisteredAt  time.Time `json:"registered_at"`
	LastSeen      time.Time `json:"last_seen"`
	SilenceMillis int64     `json:"silence_ms"`
	Beats         uint64    `json:"beats"`
}

// ThreadTable is the watchdog table with its state.
type ThreadTable struct {
	State   string          `json:"state"`
	Threads []WatchedThread `json:"threads"`
}

// HostInfo describes the machine being monitored.
type HostInfo struct {
	Hostname      string    `json:"hostname"`
	Platform      string    `json:"platform"`
	KernelVersion string    `json:"kernel_version"`
	UptimeSeconds uint64    `json:"uptime_seconds"`
	BootTime      time.Time `json:"boot_time"`
}

// MailboxStats holds the counters of one stage handoff.
type MailboxStats struct {
	Submitted uint64 `json:"submitted"`
	Taken     uint64 `json:"taken"`
	Dropped   uint64 `json:"dropped"`
}

// PipelineStats describes the current pipeline run.
type PipelineStats struct {
	RunID      string                  `json:"run_id"`
	Runs       int                     `json:"runs"`
	Source     string                  `json:"source"`
	Mailboxes  map[string]MailboxStats `json:"mailboxes"`
	LogDropped uint64                  `json:"log_dropped"`
}

// Health is the payload of the health endpoint.
type Health struct {
	Status        string        `json:"status"`
	Version       string        `json:"version"`
	Watchdog      string        `json:"watchdog"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	Frames        uint64        `json:"frames"`
	Host          HostInfo      `json:"host"`
	Pipeline      PipelineStats `json:"pipeline"`
}
