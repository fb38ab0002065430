package bulkhead

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/mbright-io/guardrail/telemetry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNew_Defaults(t *testing.T) {
	b := New("pool", Config{})
	defer b.Close()

	if b.config.MaxConcurrent != 10 {
		t.Errorf("MaxConcurrent = %d, want 10", b.config.MaxConcurrent)
	}
	if b.config.MaxWaiting != 50 {
		t.Errorf("MaxWaiting = %d, want 50", b.config.MaxWaiting)
	}
	if b.config.CheckoutTimeout != 5*time.Second {
		t.Errorf("CheckoutTimeout = %v, want 5s", b.config.CheckoutTimeout)
	}

	snap := b.Snapshot()
	if snap.Free != 10 || snap.Busy != 0 {
		t.Errorf("free/busy = %d/%d, want 10/0", snap.Free, snap.Busy)
	}
}

func TestCheckout_Immediate(t *testing.T) {
	b := New("pool", Config{MaxConcurrent: 2})
	defer b.Close()
	ctx := context.Background()

	s1, err := b.Checkout(ctx)
	if err != nil {
		t.Fatalf("Checkout() error = %v", err)
	}
	if s1.ID() == "" || s1.Holder() == "" {
		t.Error("checked-out slot missing identity")
	}

	s2, err := b.Checkout(ctx)
	if err != nil {
		t.Fatalf("Checkout() error = %v", err)
	}
	if s1.ID() == s2.ID() {
		t.Error("two checkouts returned the same slot")
	}

	snap := b.Snapshot()
	if snap.Busy != 2 || snap.Free != 0 {
		t.Errorf("busy/free = %d/%d, want 2/0", snap.Busy, snap.Free)
	}

	b.Checkin(s1)
	b.Checkin(s2)
}

func TestCheckout_CapacityInvariant(t *testing.T) {
	b := New("pool", Config{MaxConcurrent: 2, MaxWaiting: 1})
	defer b.Close()
	ctx := context.Background()

	s1, _ := b.Checkout(ctx)
	s2, _ := b.Checkout(ctx)

	// Third checkout queues.
	queued := make(chan error, 1)
	go func() {
		s, err := b.CheckoutWait(ctx, time.Second)
		if err == nil {
			b.Checkin(s)
		}
		queued <- err
	}()

	waitFor(t, func() bool { return b.Snapshot().Waiting == 1 })

	// Fourth checkout: pool and queue both full.
	_, err := b.Checkout(ctx)
	if !errors.Is(err, ErrFull) {
		t.Fatalf("fourth checkout = %v, want ErrFull", err)
	}

	snap := b.Snapshot()
	if snap.Busy+snap.Free != 2 {
		t.Errorf("busy+free = %d, want MaxConcurrent", snap.Busy+snap.Free)
	}

	b.Checkin(s1)
	if err := <-queued; err != nil {
		t.Errorf("queued checkout = %v, want success after checkin", err)
	}
	b.Checkin(s2)
}

func TestCheckout_Timeout(t *testing.T) {
	b := New("pool", Config{MaxConcurrent: 1, MaxWaiting: 5})
	defer b.Close()
	ctx := context.Background()

	s, _ := b.Checkout(ctx)
	defer b.Checkin(s)

	start := time.Now()
	_, err := b.CheckoutWait(ctx, 30*time.Millisecond)
	if !errors.Is(err, ErrCheckoutTimeout) {
		t.Fatalf("CheckoutWait() = %v, want ErrCheckoutTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Errorf("timed out after %v, want ~30ms", elapsed)
	}

	// The timed-out waiter left the queue.
	if b.Snapshot().Waiting != 0 {
		t.Errorf("Waiting = %d, want 0 after timeout", b.Snapshot().Waiting)
	}
}

func TestCheckout_ContextCancel(t *testing.T) {
	b := New("pool", Config{MaxConcurrent: 1, MaxWaiting: 5})
	defer b.Close()

	s, _ := b.Checkout(context.Background())
	defer b.Checkin(s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := b.CheckoutWait(ctx, time.Minute)
		done <- err
	}()

	waitFor(t, func() bool { return b.Snapshot().Waiting == 1 })
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled checkout = %v, want context.Canceled", err)
	}
	if b.Snapshot().Waiting != 0 {
		t.Error("cancelled waiter still queued")
	}
}

func TestCheckin_FIFOHandoff(t *testing.T) {
	b := New("pool", Config{MaxConcurrent: 1, MaxWaiting: 5})
	defer b.Close()
	ctx := context.Background()

	held, _ := b.Checkout(ctx)

	order := make(chan int, 2)

	enqueue := func(id int) {
		go func() {
			s, err := b.CheckoutWait(ctx, time.Second)
			if err != nil {
				t.Errorf("waiter %d: %v", id, err)
				order <- -id
				return
			}
			order <- id
			b.Checkin(s)
		}()
	}

	// W1 queues strictly before W2.
	enqueue(1)
	waitFor(t, func() bool { return b.Snapshot().Waiting == 1 })
	enqueue(2)
	waitFor(t, func() bool { return b.Snapshot().Waiting == 2 })

	b.Checkin(held)

	if first := <-order; first != 1 {
		t.Errorf("first slot went to waiter %d, want 1", first)
	}
	if second := <-order; second != 2 {
		t.Errorf("second slot went to waiter %d, want 2", second)
	}
}

func TestCheckin_DirectTransferSkipsFreeList(t *testing.T) {
	b := New("pool", Config{MaxConcurrent: 1, MaxWaiting: 1})
	defer b.Close()
	ctx := context.Background()

	held, _ := b.Checkout(ctx)

	got := make(chan *Slot, 1)
	go func() {
		s, err := b.CheckoutWait(ctx, time.Second)
		if err != nil {
			t.Errorf("waiter: %v", err)
		}
		got <- s
	}()
	waitFor(t, func() bool { return b.Snapshot().Waiting == 1 })

	b.Checkin(held)
	s := <-got

	// The slot moved straight from holder to waiter.
	snap := b.Snapshot()
	if snap.Free != 0 || snap.Busy != 1 {
		t.Errorf("free/busy = %d/%d, want 0/1 after direct transfer", snap.Free, snap.Busy)
	}
	b.Checkin(s)
}

func TestCheckin_DoubleIsNoop(t *testing.T) {
	b := New("pool", Config{MaxConcurrent: 2})
	defer b.Close()

	s, _ := b.Checkout(context.Background())
	b.Checkin(s)
	b.Checkin(s)
	b.Checkin(nil)

	snap := b.Snapshot()
	if snap.Free != 2 || snap.Busy != 0 {
		t.Errorf("free/busy = %d/%d, want 2/0", snap.Free, snap.Busy)
	}
}

func TestDo_ReleasesOnPanic(t *testing.T) {
	b := New("pool", Config{MaxConcurrent: 1})
	defer b.Close()
	ctx := context.Background()

	func() {
		defer func() {
			if recover() == nil {
				t.Error("panic did not propagate through Do")
			}
		}()
		_ = b.Do(ctx, func(ctx context.Context) error {
			panic("holder crashed")
		})
	}()

	// The slot must be back.
	s, err := b.CheckoutWait(ctx, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("slot leaked after panic: %v", err)
	}
	b.Checkin(s)
}

func TestDo_PassesThroughResult(t *testing.T) {
	b := New("pool", Config{MaxConcurrent: 1})
	defer b.Close()

	want := errors.New("op failed")
	if err := b.Do(context.Background(), func(ctx context.Context) error { return want }); err != want {
		t.Errorf("Do() = %v, want %v", err, want)
	}
	if err := b.Do(context.Background(), func(ctx context.Context) error { return nil }); err != nil {
		t.Errorf("Do() = %v, want nil", err)
	}
}

func TestMetrics_ExactCounters(t *testing.T) {
	b := New("pool", Config{MaxConcurrent: 1, MaxWaiting: 1})
	defer b.Close()
	ctx := context.Background()

	s, _ := b.Checkout(ctx) // success 1

	// One queued-then-timeout.
	_, err := b.CheckoutWait(ctx, 20*time.Millisecond)
	if !errors.Is(err, ErrCheckoutTimeout) {
		t.Fatalf("want timeout, got %v", err)
	}

	// Fill the queue, then force a rejection.
	blocked := make(chan struct{})
	go func() {
		got, err := b.CheckoutWait(ctx, 200*time.Millisecond)
		if err == nil {
			b.Checkin(got)
		}
		close(blocked)
	}()
	waitFor(t, func() bool { return b.Snapshot().Waiting == 1 })
	if _, err := b.Checkout(ctx); !errors.Is(err, ErrFull) {
		t.Fatalf("want ErrFull, got %v", err)
	}

	b.Checkin(s) // hands off to the queued waiter
	<-blocked

	m := b.Metrics()
	if m.TotalCheckouts != 4 {
		t.Errorf("TotalCheckouts = %d, want 4", m.TotalCheckouts)
	}
	if m.SuccessfulCheckouts != 2 {
		t.Errorf("SuccessfulCheckouts = %d, want 2", m.SuccessfulCheckouts)
	}
	if m.RejectedCheckouts != 1 {
		t.Errorf("RejectedCheckouts = %d, want 1", m.RejectedCheckouts)
	}
	if m.Timeouts != 1 {
		t.Errorf("Timeouts = %d, want 1", m.Timeouts)
	}
	if m.PeakUsage != 1 {
		t.Errorf("PeakUsage = %d, want 1", m.PeakUsage)
	}
	if m.PeakQueueSize != 1 {
		t.Errorf("PeakQueueSize = %d, want 1", m.PeakQueueSize)
	}
}

func TestMetrics_Reset(t *testing.T) {
	b := New("pool", Config{MaxConcurrent: 2})
	defer b.Close()

	s, _ := b.Checkout(context.Background())
	b.ResetMetrics()

	m := b.Metrics()
	if m.TotalCheckouts != 0 || m.SuccessfulCheckouts != 0 {
		t.Errorf("counters not zeroed: %+v", m)
	}
	if m.CurrentUsage != 1 || m.PeakUsage != 1 {
		t.Errorf("peaks not re-anchored at current usage: %+v", m)
	}
	b.Checkin(s)
}

func TestCheckout_EmitsEvents(t *testing.T) {
	var mu sync.Mutex
	var kinds []telemetry.EventKind

	b := New("pool", Config{
		MaxConcurrent: 1,
		MaxWaiting:    1,
		Emitter: telemetry.EmitterFunc(func(ctx context.Context, ev telemetry.Event) {
			mu.Lock()
			kinds = append(kinds, ev.Kind)
			mu.Unlock()
		}),
	})
	defer b.Close()
	ctx := context.Background()

	s, _ := b.Checkout(ctx)
	_, _ = b.CheckoutWait(ctx, 10*time.Millisecond) // timeout event

	blocked := make(chan struct{})
	go func() {
		got, err := b.CheckoutWait(ctx, 200*time.Millisecond)
		if err == nil {
			b.Checkin(got)
		}
		close(blocked)
	}()
	waitFor(t, func() bool { return b.Snapshot().Waiting == 1 })
	_, _ = b.Checkout(ctx) // rejected event
	b.Checkin(s)
	<-blocked

	mu.Lock()
	defer mu.Unlock()
	if len(kinds) != 2 {
		t.Fatalf("emitted %v, want timeout + rejected", kinds)
	}
	if kinds[0] != telemetry.EventCheckoutTimeout || kinds[1] != telemetry.EventCheckoutRejected {
		t.Errorf("event kinds = %v", kinds)
	}
}

func TestClose_FailsWaitersAndCheckouts(t *testing.T) {
	b := New("pool", Config{MaxConcurrent: 1, MaxWaiting: 5})
	ctx := context.Background()

	s, _ := b.Checkout(ctx)

	done := make(chan error, 1)
	go func() {
		_, err := b.CheckoutWait(ctx, time.Minute)
		done <- err
	}()
	waitFor(t, func() bool { return b.Snapshot().Waiting == 1 })

	b.Close()

	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Errorf("waiter after Close = %v, want ErrClosed", err)
	}
	if _, err := b.Checkout(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Checkout after Close = %v, want ErrClosed", err)
	}

	// Checked-out slots can still come home.
	b.Checkin(s)
	b.Close() // idempotent
}

func TestConcurrentChurn(t *testing.T) {
	b := New("pool", Config{MaxConcurrent: 4, MaxWaiting: 50, CheckoutTimeout: time.Second})
	defer b.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_ = b.Do(ctx, func(ctx context.Context) error {
					return nil
				})
			}
		}()
	}
	wg.Wait()

	snap := b.Snapshot()
	if snap.Busy != 0 || snap.Free != 4 {
		t.Errorf("after churn busy/free = %d/%d, want 0/4", snap.Busy, snap.Free)
	}
	if snap.Busy+snap.Free != 4 {
		t.Error("capacity invariant violated")
	}
	if got := b.Metrics().SuccessfulCheckouts; got != 500 {
		t.Errorf("SuccessfulCheckouts = %d, want 500", got)
	}
}

// waitFor polls cond until it holds or the deadline lapses.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
