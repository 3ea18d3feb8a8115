// Package syncengine implements optimistic record synchronization: per-field
// edit tracking, deterministic record merging and the write orchestration
// that keeps local state, the remote store and the cache tiers consistent.
package syncengine

import (
	"sync"
	"time"
)

// DefaultRecencyWindow is how long a successfully written field keeps
// preference over incoming server values.
const DefaultRecencyWindow = 3 * time.Second

// Clock supplies the current time. Injectable for deterministic tests.
type Clock func() time.Time

// EditSession tracks per-field edit state for one record: the pending-save
// set gating inbound syncs while a write is in flight, and the time-boxed
// recently-updated set protecting fresh local edits from stale server
// echoes. Safe for concurrent use.
type EditSession struct {
	mu      sync.Mutex
	pending map[string]struct{}
	recent  map[string]time.Time
	window  time.Duration
	clock   Clock
}

// NewEditSession creates an EditSession with the given recency window.
// A zero window uses DefaultRecencyWindow; a nil clock uses time.Now.
func NewEditSession(window time.Duration, clock Clock) *EditSession {
	if window <= 0 {
		window = DefaultRecencyWindow
	}
	if clock == nil {
		clock = time.Now
	}
	return &EditSession{
		pending: make(map[string]struct{}),
		recent:  make(map[string]time.Time),
		window:  window,
		clock:   clock,
	}
}

// Begin marks a field as having a write in flight. Idempotent.
func (s *EditSession) Begin(field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[field] = struct{}{}
}

// End releases a field's pending mark. Callers must invoke End in a defer
// so release happens regardless of write success, failure or cancellation.
func (s *EditSession) End(field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, field)
}

// IsPending reports whether a write for the field is in flight.
func (s *EditSession) IsPending(field string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[field]
	return ok
}

// MarkRecent records a successful write for the field. Re-marking before
// the window expires resets it; the most recent edit wins the longer
// protection.
func (s *EditSession) MarkRecent(field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent[field] = s.clock().Add(s.window)
}

// IsRecent reports whether the field was written within the recency window.
// Expiry is purely time-based; expired entries are pruned on access.
func (s *EditSession) IsRecent(field string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline, ok := s.recent[field]
	if !ok {
		return false
	}
	if s.clock().After(deadline) {
		delete(s.recent, field)
		return false
	}
	return true
}

// PendingFields returns a snapshot of fields with writes in flight.
func (s *EditSession) PendingFields() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.pending))
	for f := range s.pending {
		out = append(out, f)
	}
	return out
}
