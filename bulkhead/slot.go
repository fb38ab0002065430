package bulkhead

import (
	"time"

	"github.com/google/uuid"
)

// Slot is one unit of a bulkhead's concurrency capacity.
//
// A slot is owned by at most one holder at a time. Its identity is stable
// for the pool's lifetime; the holder identity changes on every checkout.
type Slot struct {
	id string

	pool *Bulkhead

	// Guarded by pool.mu.
	holder     string
	checkedOut time.Time
	leaseExp   time.Time
}

func newSlot(pool *Bulkhead) *Slot {
	return &Slot{id: uuid.NewString(), pool: pool}
}

// ID returns the slot's stable identity.
func (s *Slot) ID() string {
	return s.id
}

// Holder returns the current holder identity, or "" when free.
func (s *Slot) Holder() string {
	s.pool.mu.Lock()
	defer s.pool.mu.Unlock()
	return s.holder
}

// Heartbeat extends the slot's lease by the pool's LeaseTTL. Long-running
// holders call this periodically so the janitor does not reclaim the slot
// out from under them. A no-op when leases are disabled or the slot is not
// checked out.
func (s *Slot) Heartbeat() {
	s.pool.mu.Lock()
	defer s.pool.mu.Unlock()

	if s.pool.config.LeaseTTL <= 0 {
		return
	}
	if _, held := s.pool.busy[s.id]; !held {
		return
	}
	s.leaseExp = time.Now().Add(s.pool.config.LeaseTTL)
}

// bindLocked assigns a fresh holder identity and lease. Caller holds pool.mu.
func (s *Slot) bindLocked(now time.Time) {
	s.holder = uuid.NewString()
	s.checkedOut = now
	if s.pool.config.LeaseTTL > 0 {
		s.leaseExp = now.Add(s.pool.config.LeaseTTL)
	}
}

// releaseLocked clears holder state. Caller holds pool.mu.
func (s *Slot) releaseLocked() {
	s.holder = ""
	s.checkedOut = time.Time{}
	s.leaseExp = time.Time{}
}
