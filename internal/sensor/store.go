package sensor

import (
	"sync"
	"time"

	"etasensor/internal/reconcile"
)

// Snapshot is the last good projection plus bookkeeping about failures
// since.
type Snapshot struct {
	Projection reconcile.Projection
	UpdatedAt  time.Time // zero until the first successful cycle

	LastError   string
	LastErrorAt time.Time
	Failures    int // consecutive failed cycles
}

// Store holds a sensor's snapshot in a thread-safe manner. The projection
// is only ever replaced wholesale.
type Store struct {
	mu      sync.RWMutex
	snap    Snapshot
	version uint64
}

// NewStore creates a store holding the empty projection.
func NewStore(initial reconcile.Projection) *Store {
	return &Store{snap: Snapshot{Projection: initial}}
}

// Replace installs a new projection and clears the failure count.
func (s *Store) Replace(p reconcile.Projection, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = Snapshot{Projection: p, UpdatedAt: at}
	s.version++
}

// Fail records a failed cycle. The projection is left as it was.
func (s *Store) Fail(err error, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.LastError = err.Error()
	s.snap.LastErrorAt = at
	s.snap.Failures++
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snap
	snap.Projection.Upcoming = make([]reconcile.Departure, len(s.snap.Projection.Upcoming))
	copy(snap.Projection.Upcoming, s.snap.Projection.Upcoming)
	return snap
}

// Version increases each time the projection is replaced.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}
