package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mbright-io/guardrail/telemetry"
)

// Config configures the health monitor.
type Config struct {
	// Interval is how often the monitor re-runs every check.
	// Default: 30 seconds
	Interval time.Duration

	// CheckTimeout bounds one full check cycle. Default: 10 seconds
	CheckTimeout time.Duration

	// Emitter receives health.status_change events. Default: discard.
	Emitter telemetry.Emitter
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.CheckTimeout <= 0 {
		c.CheckTimeout = 10 * time.Second
	}
	if c.Emitter == nil {
		c.Emitter = telemetry.Nop()
	}
	return c
}

// Monitor periodically runs registered checkers and caches the results, so
// that reading health is always cheap: probes and dashboards read the last
// known results instead of triggering checks of their own.
//
// A component that has been registered but not yet checked reports
// StatusUnknown.
type Monitor struct {
	config Config

	mu       sync.RWMutex
	checkers map[string]Checker
	order    []string // registration order, for stable detail listings
	results  map[string]Result
	running  bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a monitor. Call Start to begin periodic checking;
// CheckNow works without it.
func NewMonitor(config Config) *Monitor {
	return &Monitor{
		config:   config.withDefaults(),
		checkers: make(map[string]Checker),
		results:  make(map[string]Result),
	}
}

// Register adds a checker under its own name. Re-registering a name
// replaces the checker but keeps its cached result until the next cycle.
func (m *Monitor) Register(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := c.Name()
	if _, exists := m.checkers[name]; !exists {
		m.order = append(m.order, name)
		m.results[name] = Result{Status: StatusUnknown, Timestamp: time.Now()}
	}
	m.checkers[name] = c
}

// Deregister removes a checker and its cached result.
func (m *Monitor) Deregister(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.checkers, name)
	delete(m.results, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Start launches the periodic check loop. The first cycle runs immediately.
// The loop stops when ctx is cancelled or Stop is called.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.running = true
	m.mu.Unlock()

	go m.loop(ctx)
	return nil
}

// Stop halts the periodic loop and waits for it to exit. Cached results
// remain readable.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	m.CheckNow(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}

// CheckNow runs every registered checker once, in parallel, updates the
// cache, and returns the fresh results. Status changes are emitted as
// health.status_change events.
func (m *Monitor) CheckNow(ctx context.Context) map[string]Result {
	ctx, cancel := context.WithTimeout(ctx, m.config.CheckTimeout)
	defer cancel()

	m.mu.RLock()
	checkers := make(map[string]Checker, len(m.checkers))
	for name, c := range m.checkers {
		checkers[name] = c
	}
	m.mu.RUnlock()

	var (
		resMu   sync.Mutex
		results = make(map[string]Result, len(checkers))
	)
	g, ctx := errgroup.WithContext(ctx)
	for name, c := range checkers {
		g.Go(func() error {
			r := runCheck(ctx, c)
			resMu.Lock()
			results[name] = r
			resMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	m.store(ctx, results)
	return results
}

// store merges fresh results into the cache and emits an event per status
// change, plus one for the overall rollup when it moves.
func (m *Monitor) store(ctx context.Context, fresh map[string]Result) {
	type change struct {
		name     string
		from, to Status
		message  string
	}
	var changes []change

	m.mu.Lock()
	before := Rollup(m.results)
	for name, r := range fresh {
		if _, still := m.checkers[name]; !still {
			// Deregistered mid-cycle.
			continue
		}
		if prev := m.results[name]; prev.Status != r.Status {
			changes = append(changes, change{name, prev.Status, r.Status, r.Message})
		}
		m.results[name] = r
	}
	after := Rollup(m.results)
	m.mu.Unlock()

	for _, ch := range changes {
		m.config.Emitter.Emit(ctx, telemetry.Stamp(telemetry.Event{
			Kind: telemetry.EventHealthChange,
			Name: ch.name,
			Attrs: map[string]any{
				"from":    ch.from.String(),
				"to":      ch.to.String(),
				"message": ch.message,
			},
		}))
	}
	if before != after {
		m.config.Emitter.Emit(ctx, telemetry.Stamp(telemetry.Event{
			Kind: telemetry.EventHealthChange,
			Name: "overall",
			Attrs: map[string]any{
				"from": before.String(),
				"to":   after.String(),
			},
		}))
	}
}

// runCheck shields the monitor from a panicking checker: a crash inside a
// check is itself an unhealthy signal, not a reason to kill the loop.
func runCheck(ctx context.Context, c Checker) (result Result) {
	start := time.Now()
	defer func() {
		if v := recover(); v != nil {
			result = Unhealthy("check panicked", fmt.Errorf("panic: %v", v))
			result.Duration = time.Since(start)
		}
	}()

	result = c.Check(ctx)
	result.Duration = time.Since(start)
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now()
	}
	return result
}

// Health returns the overall status and a copy of the cached per-component
// results. It never runs checks.
func (m *Monitor) Health() (Status, map[string]Result) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make(map[string]Result, len(m.results))
	for name, r := range m.results {
		results[name] = r
	}
	return Rollup(results), results
}

// Names returns the registered checker names in registration order.
func (m *Monitor) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, len(m.order))
	copy(names, m.order)
	return names
}
