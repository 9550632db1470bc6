package watchdog

import (
	"context"
	"errors"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"
)

func waitActive(t *testing.T, w *Watchdog) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for w.State() != Active {
		if time.Now().After(deadline) {
			t.Fatal("watchdog never became active")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWatchdog_TimeoutCancelsEveryThread(t *testing.T) {
	w := New(Options{Interval: 10 * time.Millisecond, Threshold: 80 * time.Millisecond})

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()
	errc := make(chan error, 1)
	go func() { errc <- w.Run(runCtx) }()
	waitActive(t, w)

	hungCtx, hungCancel := context.WithCancel(context.Background())
	aliveCtx, aliveCancel := context.WithCancel(context.Background())
	defer hungCancel()
	defer aliveCancel()

	if err := w.ReportAlive(context.Background(), Identity{Name: "hung", Cancel: hungCancel}); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		id := Identity{Name: "alive", Cancel: aliveCancel}
		for aliveCtx.Err() == nil {
			if err := w.ReportAlive(aliveCtx, id); err != nil {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	select {
	case err := <-errc:
		var te *TimeoutError
		if !errors.As(err, &te) {
			t.Fatalf("Run error = %v, want *TimeoutError", err)
		}
		if te.Thread != "hung" {
			t.Errorf("timed out thread = %q, want hung", te.Thread)
		}
		if te.Silence <= 80*time.Millisecond {
			t.Errorf("silence = %v, want > threshold", te.Silence)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog did not detect the hung thread")
	}

	if hungCtx.Err() == nil || aliveCtx.Err() == nil {
		t.Error("not every registered thread was cancelled")
	}
	wg.Wait()
}

func TestWatchdog_ScanWithFakeClock(t *testing.T) {
	now := time.Unix(1000, 0)
	w := New(Options{Now: func() time.Time { return now }})
	if err := w.init(); err != nil {
		t.Fatal(err)
	}
	defer w.deinit()

	cancelled := map[string]bool{}
	id := func(name string) Identity {
		return Identity{Name: name, Cancel: func() { cancelled[name] = true }}
	}

	ctx := context.Background()
	if err := w.ReportAlive(ctx, id("reader")); err != nil {
		t.Fatal(err)
	}
	now = now.Add(1500 * time.Millisecond)
	if err := w.ReportAlive(ctx, id("printer")); err != nil {
		t.Fatal(err)
	}

	now = now.Add(400 * time.Millisecond) // reader silent 1.9s
	if err := w.scan(); err != nil {
		t.Fatalf("scan at 1.9s = %v, want nil", err)
	}

	now = now.Add(200 * time.Millisecond) // reader silent 2.1s
	err := w.scan()
	var te *TimeoutError
	if !errors.As(err, &te) || te.Thread != "reader" {
		t.Fatalf("scan at 2.1s = %v, want reader timeout", err)
	}
	if !cancelled["reader"] || !cancelled["printer"] {
		t.Errorf("cancelled = %v, want both", cancelled)
	}
	if s := w.State(); s != ShuttingDown {
		t.Errorf("State = %v, want shutting_down", s)
	}
	if err := w.ReportAlive(ctx, id("printer")); !errors.Is(err, ErrShuttingDown) {
		t.Errorf("ReportAlive after shutdown = %v, want ErrShuttingDown", err)
	}
}

func TestWatchdog_SignalCancelsEveryThread(t *testing.T) {
	sigc := make(chan os.Signal, 1)
	w := New(Options{Interval: 10 * time.Millisecond, Signals: sigc})

	errc := make(chan error, 1)
	go func() { errc <- w.Run(context.Background()) }()
	waitActive(t, w)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.ReportAlive(ctx, Identity{Name: "logger", Cancel: cancel}); err != nil {
		t.Fatal(err)
	}

	sigc <- syscall.SIGTERM

	select {
	case err := <-errc:
		var se *SignalError
		if !errors.As(err, &se) || se.Signal != syscall.SIGTERM {
			t.Fatalf("Run error = %v, want SIGTERM SignalError", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("signal not handled")
	}
	if ctx.Err() == nil {
		t.Error("registered thread not cancelled on signal")
	}
	if s := w.State(); s != ShuttingDown {
		t.Errorf("State after signal = %v, want shutting_down", s)
	}
}

func TestWatchdog_RegistryFull(t *testing.T) {
	w := New(Options{MaxThreads: 2})
	if err := w.init(); err != nil {
		t.Fatal(err)
	}
	defer w.deinit()

	ctx := context.Background()
	for _, name := range []string{"a", "b", "a", "b"} {
		if err := w.ReportAlive(ctx, Identity{Name: name}); err != nil {
			t.Fatalf("ReportAlive(%s) = %v", name, err)
		}
	}
	if err := w.ReportAlive(ctx, Identity{Name: "c"}); !errors.Is(err, ErrRegistryFull) {
		t.Errorf("ReportAlive(c) = %v, want ErrRegistryFull", err)
	}

	threads := w.Threads()
	if len(threads) != 2 || threads[0].Beats != 2 {
		t.Errorf("Threads = %+v, want 2 entries with 2 beats each", threads)
	}
}

func TestWatchdog_ReportAliveWaitsForRun(t *testing.T) {
	w := New(Options{Interval: 10 * time.Millisecond})

	errc := make(chan error, 1)
	go func() { errc <- w.ReportAlive(context.Background(), Identity{Name: "early"}) }()

	select {
	case err := <-errc:
		t.Fatalf("ReportAlive returned %v before Run", err)
	case <-time.After(30 * time.Millisecond):
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case err := <-errc:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ReportAlive not released by Run")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run after cancel = %v, want nil", err)
	}
}

func TestWatchdog_Restart(t *testing.T) {
	w := New(Options{Interval: 10 * time.Millisecond})

	for cycle := 0; cycle < 3; cycle++ {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()
		waitActive(t, w)

		if err := w.ReportAlive(ctx, Identity{Name: "reader", Cancel: cancel}); err != nil {
			t.Fatalf("cycle %d: %v", cycle, err)
		}
		if n := len(w.Threads()); n != 1 {
			t.Fatalf("cycle %d: %d threads, want 1", cycle, n)
		}

		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("cycle %d: Run = %v", cycle, err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("cycle %d: Run did not stop", cycle)
		}
		if n := len(w.Threads()); n != 0 {
			t.Errorf("cycle %d: %d threads left after Run", cycle, n)
		}
		if s := w.State(); s != Uninitialized {
			t.Errorf("cycle %d: State after clean stop = %v, want uninitialized", cycle, s)
		}
	}
}

func TestWatchdog_RunTwice(t *testing.T) {
	w := New(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Run(ctx)
	waitActive(t, w)

	if err := w.Run(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run = %v, want ErrAlreadyRunning", err)
	}
}

func TestWatchdog_LongNameTruncated(t *testing.T) {
	w := New(Options{})
	if err := w.init(); err != nil {
		t.Fatal(err)
	}
	defer w.deinit()

	long := string(make([]byte, 100))
	if err := w.ReportAlive(context.Background(), Identity{Name: long}); err != nil {
		t.Fatal(err)
	}
	if got := len(w.Threads()[0].Name); got != MaxNameLen {
		t.Errorf("stored name length = %d, want %d", got, MaxNameLen)
	}
}

func TestWatchdog_UnregisteredThreadIsNotScanned(t *testing.T) {
	now := time.Unix(1000, 0)
	w := New(Options{Now: func() time.Time { return now }})
	if err := w.init(); err != nil {
		t.Fatal(err)
	}
	defer w.deinit()

	ctx := context.Background()
	for _, name := range []string{"reader", "logger"} {
		if err := w.ReportAlive(ctx, Identity{Name: name}); err != nil {
			t.Fatal(err)
		}
	}
	w.Unregister("reader")
	w.Unregister("unknown")

	now = now.Add(time.Second)
	if err := w.ReportAlive(ctx, Identity{Name: "logger"}); err != nil {
		t.Fatal(err)
	}
	now = now.Add(1500 * time.Millisecond)
	if err := w.scan(); err != nil {
		t.Errorf("scan = %v, want nil once reader is unregistered", err)
	}
	if n := len(w.Threads()); n != 1 {
		t.Errorf("Threads = %d entries, want 1", n)
	}
}
