package render

import (
	"sync/atomic"
	"time"

	"github.com/Guliveer/vitalis/cpumon/internal/procstat"
)

// Frame is a rendered usage vector with the time it was produced.
type Frame struct {
	At    time.Time
	Usage []procstat.Usage
}

// Store keeps the most recent frame for readers on other goroutines.
type Store struct {
	latest atomic.Pointer[Frame]
	frames atomic.Uint64
	now    func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// Render copies frame and publishes it as the latest one.
func (s *Store) Render(frame []procstat.Usage) error {
	f := &Frame{At: s.now(), Usage: make([]procstat.Usage, len(frame))}
	copy(f.Usage, frame)
	s.latest.Store(f)
	s.frames.Add(1)
	return nil
}

// Latest returns the last frame, or false if none was rendered yet. The
// returned frame must not be modified.
func (s *Store) Latest() (*Frame, bool) {
	f := s.latest.Load()
	return f, f != nil
}

// Frames returns how many frames were rendered.
func (s *Store) Frames() uint64 {
	return s.frames.Load()
}

// Close does nothing; the last frame stays readable.
func (s *Store) Close() error {
	return nil
}
