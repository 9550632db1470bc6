// /proc/stat counter source: the kernel's own per-CPU time accounting.
package collector

import (
	"context"
	"fmt"
	"os"

	"github.com/Guliveer/vitalis/cpumon/internal/procstat"
)

// DefaultProcStatPath is where Linux exposes CPU time counters.
const DefaultProcStatPath = "/proc/stat"

// ProcStatSource reads counters from a /proc/stat formatted file. The file is
// opened once and rewound after every successful read.
type ProcStatSource struct {
	path string
	f    *os.File
}

// NewProcStatSource creates a source reading the file at path.
func NewProcStatSource(path string) *ProcStatSource {
	if path == "" {
		path = DefaultProcStatPath
	}
	return &ProcStatSource{path: path}
}

// Name returns the source identifier.
func (s *ProcStatSource) Name() string { return "procstat" }

// Open opens the counter file.
func (s *ProcStatSource) Open(ctx context.Context) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", s.path, err)
	}
	s.f = f
	return nil
}

// Read parses the file into dst.
func (s *ProcStatSource) Read(ctx context.Context, dst []procstat.CounterRecord) ([]procstat.CounterRecord, error) {
	if s.f == nil {
		return dst[:0], ErrNotOpen
	}
	return procstat.Parse(s.f, dst)
}

// Close closes the counter file.
func (s *ProcStatSource) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// IsAvailable returns true when the counter file exists.
func (s *ProcStatSource) IsAvailable() bool {
	_, err := os.Stat(s.path)
	return err == nil
}
