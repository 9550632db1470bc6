package mailbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMailbox_OverwriteKeepsLatest(t *testing.T) {
	m := New[int](50 * time.Millisecond)
	m.Open(4)

	ctx := context.Background()
	if err := m.Submit(ctx, []int{1, 1}); err != nil {
		t.Fatal(err)
	}
	if err := m.Submit(ctx, []int{2, 2, 2}); err != nil {
		t.Fatal(err)
	}

	got, ok, err := m.Take(ctx, nil)
	if err != nil || !ok {
		t.Fatalf("Take = (%v, %v, %v), want a value", got, ok, err)
	}
	if len(got) != 3 || got[0] != 2 {
		t.Errorf("Take = %v, want [2 2 2]", got)
	}

	// v1 must never surface, not even on a later take.
	got, ok, err = m.Take(ctx, got)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Errorf("second Take = %v, want nothing available", got)
	}

	st := m.Stats()
	if st.Submitted != 2 || st.Taken != 1 || st.Dropped != 1 {
		t.Errorf("Stats = %+v, want submitted=2 taken=1 dropped=1", st)
	}
}

func TestMailbox_TakeTimesOutWithoutError(t *testing.T) {
	m := New[int](30 * time.Millisecond)
	m.Open(1)

	start := time.Now()
	_, ok, err := m.Take(context.Background(), nil)
	if err != nil {
		t.Fatalf("Take error = %v, want nil", err)
	}
	if ok {
		t.Error("Take ok = true on empty mailbox")
	}
	if time.Since(start) < 30*time.Millisecond {
		t.Error("Take returned before timeout")
	}
}

func TestMailbox_CapacityExceeded(t *testing.T) {
	m := New[int](time.Second)
	m.Open(2)

	err := m.Submit(context.Background(), []int{1, 2, 3})
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("Submit error = %v, want ErrCapacityExceeded", err)
	}
	if st := m.Stats(); st.Submitted != 0 {
		t.Errorf("Submitted = %d after rejected submit, want 0", st.Submitted)
	}
}

func TestMailbox_SubmitWaitsForOpen(t *testing.T) {
	m := New[int](time.Second)

	errc := make(chan error, 1)
	go func() {
		errc <- m.Submit(context.Background(), []int{7})
	}()

	select {
	case err := <-errc:
		t.Fatalf("Submit returned %v before Open", err)
	case <-time.After(30 * time.Millisecond):
	}

	m.Open(1)
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Submit error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Submit still blocked after Open")
	}

	got, ok, _ := m.Take(context.Background(), nil)
	if !ok || got[0] != 7 {
		t.Errorf("Take = %v, %v, want [7], true", got, ok)
	}
}

func TestMailbox_SubmitCancelledBeforeOpen(t *testing.T) {
	m := New[int](time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := m.Submit(ctx, []int{1}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Submit error = %v, want DeadlineExceeded", err)
	}
}

func TestMailbox_TakeCancelled(t *testing.T) {
	m := New[int](10 * time.Second)
	m.Open(1)
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		_, _, err := m.Take(ctx, nil)
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Take error = %v, want Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Take not released by cancellation")
	}
}

func TestMailbox_ConsumerNeverSeesTornValue(t *testing.T) {
	m := New[int](20 * time.Millisecond)
	m.Open(64)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := make([]int, 64)
		for v := 1; v <= 2000; v++ {
			for i := range buf {
				buf[i] = v
			}
			if err := m.Submit(ctx, buf); err != nil {
				t.Errorf("Submit: %v", err)
				return
			}
		}
	}()

	var last int
	var dst []int
	deadline := time.After(5 * time.Second)
	for last < 2000 {
		select {
		case <-deadline:
			t.Fatalf("consumer stalled at %d", last)
		default:
		}
		var ok bool
		var err error
		dst, ok, err = m.Take(ctx, dst)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			continue
		}
		for _, v := range dst {
			if v != dst[0] {
				t.Fatalf("torn value %v", dst)
			}
		}
		if dst[0] <= last {
			t.Fatalf("value went backwards: %d after %d", dst[0], last)
		}
		last = dst[0]
	}
	wg.Wait()
}

func TestMailbox_ResetReturnsToUninitialized(t *testing.T) {
	m := New[int](time.Second)
	m.Open(3)
	m.Reset()

	if c := m.Capacity(); c != 0 {
		t.Errorf("Capacity after Reset = %d, want 0", c)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.Submit(ctx, []int{1}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Submit after Reset = %v, want to block until Open", err)
	}
}
