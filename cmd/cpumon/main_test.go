package main

import (
	"context"
	"errors"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Guliveer/vitalis/cpumon/internal/collector"
	"github.com/Guliveer/vitalis/cpumon/internal/config"
	"github.com/Guliveer/vitalis/cpumon/internal/logqueue"
	"github.com/Guliveer/vitalis/cpumon/internal/watchdog"
)

func TestPrepare_ReturnsBeforeQueueOpens(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig()
	cfg.Sampling.Source = collector.Auto
	cfg.Sampling.ProcStatPath = filepath.Join(t.TempDir(), "missing")

	q := logqueue.New(2, 64)
	l := initLoggers(ctx, cfg, q)

	type result struct {
		prep startup
		err  error
	}
	done := make(chan result, 1)
	go func() {
		prep, err := prepare(ctx, cfg, l.console)
		done <- result{prep, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("prepare: %v", r.err)
		}
		if r.prep.source == nil || r.prep.source.Name() != "gopsutil" {
			t.Errorf("source = %v, want the CPU times fallback", r.prep.source)
		}
		if r.prep.maxEntries < 2 {
			t.Errorf("maxEntries = %d, want aggregate plus at least one core", r.prep.maxEntries)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("prepare blocked on the unopened log queue")
	}

	if n := q.Len(); n != 0 {
		t.Errorf("queue holds %d entries before the pipeline ran", n)
	}
}

func TestPrepare_UnknownSource(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Sampling.Source = "nope"

	if _, err := prepare(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Error("prepare with an unknown source succeeded")
	}
}

func TestInitLoggers_MainWaitsForQueue(t *testing.T) {
	ctx := context.Background()
	q := logqueue.New(2, 64)
	l := initLoggers(ctx, config.DefaultConfig(), q)

	done := make(chan struct{})
	go func() {
		l.main.Info("queued line")
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("main logger returned before the queue was opened")
	case <-time.After(30 * time.Millisecond):
	}

	q.Open()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("main logger not released by Open")
	}
	if n := q.Len(); n != 1 {
		t.Errorf("Len = %d, want 1", n)
	}

	l.watchdog.Info("best effort line")
	if n := q.Len(); n != 2 {
		t.Errorf("Len = %d, want 2", n)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"clean stop", nil, 0},
		{"signal", &watchdog.SignalError{Signal: syscall.SIGTERM}, 0},
		{"hung worker", &watchdog.TimeoutError{Thread: "reader", Silence: 3 * time.Second}, 1},
		{"fatal", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(zap.NewNop(), tt.err); got != tt.want {
				t.Errorf("exitCode = %d, want %d", got, tt.want)
			}
		})
	}
}
