package bulkhead

import (
	"context"
	"sync"
	"time"

	"github.com/mbright-io/guardrail/telemetry"
)

// Config configures a Bulkhead.
type Config struct {
	// MaxConcurrent is the number of slots in the pool. Default: 10
	MaxConcurrent int

	// MaxWaiting is the waiting queue capacity. A checkout arriving with
	// the pool exhausted and the queue at this depth fails fast with
	// ErrFull. Default: 50
	MaxWaiting int

	// CheckoutTimeout is how long a queued checkout waits for a slot
	// before failing with ErrCheckoutTimeout. Default: 5 seconds
	CheckoutTimeout time.Duration

	// LeaseTTL enables crash recovery: a slot whose lease expires without
	// a checkin or heartbeat is reclaimed by the janitor. 0 disables.
	LeaseTTL time.Duration

	// SweepInterval is how often the janitor scans for expired leases.
	// Default: LeaseTTL / 2
	SweepInterval time.Duration

	// Emitter receives rejection, timeout, and reclaim events. Default: discard.
	Emitter telemetry.Emitter
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 10
	}
	if c.MaxWaiting <= 0 {
		c.MaxWaiting = 50
	}
	if c.CheckoutTimeout <= 0 {
		c.CheckoutTimeout = 5 * time.Second
	}
	if c.LeaseTTL > 0 && c.SweepInterval <= 0 {
		c.SweepInterval = c.LeaseTTL / 2
	}
	if c.Emitter == nil {
		c.Emitter = telemetry.Nop()
	}
	return c
}

// Metrics are a bulkhead's lifetime counters. Peaks are monotonic maxima
// since pool creation or the last ResetMetrics.
type Metrics struct {
	TotalCheckouts      int64
	SuccessfulCheckouts int64
	RejectedCheckouts   int64
	Timeouts            int64
	CurrentUsage        int
	PeakUsage           int
	QueueSize           int
	PeakQueueSize       int
}

type waiter struct {
	// ch delivers the granted slot; closed instead when the pool shuts down.
	ch chan *Slot
}

// Bulkhead is a fixed pool of slots for one named dependency.
type Bulkhead struct {
	name   string
	config Config

	mu      sync.Mutex
	free    []*Slot
	busy    map[string]*Slot // slot id -> slot
	waiters []*waiter
	metrics Metrics
	closed  bool

	stopJanitor chan struct{}
	janitorDone chan struct{}
}

// New creates a bulkhead with MaxConcurrent pre-allocated slots.
func New(name string, config Config) *Bulkhead {
	config = config.withDefaults()

	b := &Bulkhead{
		name:   name,
		config: config,
		busy:   make(map[string]*Slot, config.MaxConcurrent),
	}
	b.free = make([]*Slot, 0, config.MaxConcurrent)
	for i := 0; i < config.MaxConcurrent; i++ {
		b.free = append(b.free, newSlot(b))
	}

	if config.LeaseTTL > 0 {
		b.stopJanitor = make(chan struct{})
		b.janitorDone = make(chan struct{})
		go b.janitor()
	}
	return b
}

// Name returns the dependency name.
func (b *Bulkhead) Name() string {
	return b.name
}

// Checkout acquires a slot, waiting up to the configured CheckoutTimeout.
func (b *Bulkhead) Checkout(ctx context.Context) (*Slot, error) {
	return b.CheckoutWait(ctx, b.config.CheckoutTimeout)
}

// CheckoutWait acquires a slot, waiting up to the given timeout.
//
// A free slot is handed over immediately. Otherwise the caller queues FIFO
// unless the queue is at MaxWaiting, which fails fast with ErrFull. A
// queued caller whose deadline elapses first fails with ErrCheckoutTimeout.
func (b *Bulkhead) CheckoutWait(ctx context.Context, timeout time.Duration) (*Slot, error) {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}

	b.metrics.TotalCheckouts++

	if len(b.free) > 0 {
		s := b.free[len(b.free)-1]
		b.free = b.free[:len(b.free)-1]
		b.grantLocked(s)
		b.mu.Unlock()
		return s, nil
	}

	if len(b.waiters) >= b.config.MaxWaiting {
		b.metrics.RejectedCheckouts++
		b.mu.Unlock()
		b.emit(ctx, telemetry.EventCheckoutRejected, map[string]any{
			"max_concurrent": b.config.MaxConcurrent,
			"max_waiting":    b.config.MaxWaiting,
		})
		return nil, ErrFull
	}

	w := &waiter{ch: make(chan *Slot, 1)}
	b.waiters = append(b.waiters, w)
	b.metrics.QueueSize = len(b.waiters)
	if b.metrics.QueueSize > b.metrics.PeakQueueSize {
		b.metrics.PeakQueueSize = b.metrics.QueueSize
	}
	b.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s, ok := <-w.ch:
		if !ok {
			return nil, ErrClosed
		}
		return s, nil

	case <-timer.C:
		if b.abandon(w) {
			b.mu.Lock()
			b.metrics.Timeouts++
			b.mu.Unlock()
			b.emit(ctx, telemetry.EventCheckoutTimeout, map[string]any{
				"waited": timeout.String(),
			})
			return nil, ErrCheckoutTimeout
		}
		// A slot was granted concurrently with the deadline; take it.
		s, ok := <-w.ch
		if !ok {
			return nil, ErrClosed
		}
		return s, nil

	case <-ctx.Done():
		if b.abandon(w) {
			return nil, ctx.Err()
		}
		// Granted concurrently with cancellation: return the slot so it
		// is not leaked, then surface the cancellation.
		if s, ok := <-w.ch; ok {
			b.Checkin(s)
		}
		return nil, ctx.Err()
	}
}

// Checkin returns a slot to the pool.
//
// If waiters are queued, the slot is handed directly to the head of the
// queue and never touches the free list. Checking in a slot that is not
// checked out is a no-op.
func (b *Bulkhead) Checkin(s *Slot) {
	if s == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkinLocked(s)
}

// Do checks out a slot, runs op, and checks the slot back in on every exit
// path. A panic in op releases the slot and then propagates.
func (b *Bulkhead) Do(ctx context.Context, op func(context.Context) error) error {
	s, err := b.Checkout(ctx)
	if err != nil {
		return err
	}
	defer b.Checkin(s)

	return op(ctx)
}

// Metrics returns a copy of the current counters.
func (b *Bulkhead) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.metrics
}

// ResetMetrics zeroes all counters and re-anchors the peaks at the current
// usage and queue depth.
func (b *Bulkhead) ResetMetrics() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.metrics = Metrics{
		CurrentUsage:  len(b.busy),
		PeakUsage:     len(b.busy),
		QueueSize:     len(b.waiters),
		PeakQueueSize: len(b.waiters),
	}
}

// Snapshot describes a bulkhead at a point in time.
type Snapshot struct {
	Name          string
	MaxConcurrent int
	MaxWaiting    int
	Free          int
	Busy          int
	Waiting       int
	Utilization   float64
}

// Snapshot returns the pool's current occupancy.
func (b *Bulkhead) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		Name:          b.name,
		MaxConcurrent: b.config.MaxConcurrent,
		MaxWaiting:    b.config.MaxWaiting,
		Free:          len(b.free),
		Busy:          len(b.busy),
		Waiting:       len(b.waiters),
		Utilization:   float64(len(b.busy)) / float64(b.config.MaxConcurrent),
	}
}

// Limits are the runtime-tunable bulkhead parameters. The pool size itself
// is fixed at creation; only admission tuning is hot-reloadable.
type Limits struct {
	MaxWaiting      int
	CheckoutTimeout time.Duration
}

// SetLimits applies new limits, used by configuration hot reload.
// Zero fields are left unchanged. Already-queued waiters keep the deadline
// they started with.
func (b *Bulkhead) SetLimits(l Limits) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if l.MaxWaiting > 0 {
		b.config.MaxWaiting = l.MaxWaiting
	}
	if l.CheckoutTimeout > 0 {
		b.config.CheckoutTimeout = l.CheckoutTimeout
	}
}

// Close shuts the pool: pending waiters fail with ErrClosed, future
// checkouts fail with ErrClosed, and the janitor stops. Slots already
// checked out may still be checked in.
func (b *Bulkhead) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true

	waiters := b.waiters
	b.waiters = nil
	b.metrics.QueueSize = 0
	b.mu.Unlock()

	for _, w := range waiters {
		close(w.ch)
	}

	if b.stopJanitor != nil {
		close(b.stopJanitor)
		<-b.janitorDone
	}
}

// grantLocked binds a free slot to a new holder. Caller holds b.mu.
func (b *Bulkhead) grantLocked(s *Slot) {
	s.bindLocked(time.Now())
	b.busy[s.id] = s

	b.metrics.SuccessfulCheckouts++
	b.metrics.CurrentUsage = len(b.busy)
	if b.metrics.CurrentUsage > b.metrics.PeakUsage {
		b.metrics.PeakUsage = b.metrics.CurrentUsage
	}
}

func (b *Bulkhead) checkinLocked(s *Slot) {
	current, held := b.busy[s.id]
	if !held || current != s {
		// Double checkin or a foreign slot.
		return
	}
	delete(b.busy, s.id)
	s.releaseLocked()

	if len(b.waiters) > 0 {
		w := b.waiters[0]
		b.waiters = b.waiters[1:]
		b.metrics.QueueSize = len(b.waiters)

		b.grantLocked(s)
		w.ch <- s
		return
	}

	b.free = append(b.free, s)
	b.metrics.CurrentUsage = len(b.busy)
}

// abandon removes w from the waiting queue. It reports false when the
// waiter is no longer queued, meaning a slot grant is already in flight.
func (b *Bulkhead) abandon(w *waiter) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, queued := range b.waiters {
		if queued == w {
			b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
			b.metrics.QueueSize = len(b.waiters)
			return true
		}
	}
	return false
}

func (b *Bulkhead) emit(ctx context.Context, kind telemetry.EventKind, attrs map[string]any) {
	b.config.Emitter.Emit(ctx, telemetry.Stamp(telemetry.Event{
		Kind:  kind,
		Name:  b.name,
		Attrs: attrs,
	}))
}
