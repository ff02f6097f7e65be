package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/AllienNova/scaiflutter/internal/telephony"
)

var (
	ErrNotFound = errors.New("session not found")
	// ErrClosed is returned when a caller tries to reuse a closed call ID.
	// Closed sessions are never silently resurrected; a new call needs a
	// fresh ID.
	ErrClosed = errors.New("session already closed")
)

// Registry owns the call ID -> Session mapping. The registry mutex guards
// only map membership (create, lookup, evict); every other mutation takes
// the per-session mutex, so work on different calls proceeds in parallel.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	retention time.Duration
	onUpdate  func(Snapshot)
	now       func() time.Time
}

// NewRegistry creates a registry. Closed sessions are evicted once they have
// been closed for at least retention.
func NewRegistry(retention time.Duration) *Registry {
	if retention <= 0 {
		retention = 10 * time.Minute
	}
	return &Registry{
		sessions:  make(map[string]*Session),
		retention: retention,
		now:       time.Now,
	}
}

// SetUpdateHook registers a callback fired with a snapshot after every
// successful open, merge and close. Delivery is at-least-once; the hook runs
// outside all registry and session locks.
func (r *Registry) SetUpdateHook(hook func(Snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onUpdate = hook
}

// OpenOrGet returns the session for callID, creating an open one if absent.
// Creation is idempotent: concurrent first-touches for the same ID yield
// exactly one session, and only the first caller's direction and number are
// kept. Reopening a closed ID fails with ErrClosed.
func (r *Registry) OpenOrGet(callID string, direction telephony.Direction, phoneNumber string) (*Session, bool, error) {
	if direction == "" {
		direction = telephony.DirectionUnknown
	}

	r.mu.Lock()
	if s, ok := r.sessions[callID]; ok {
		r.mu.Unlock()
		s.mu.Lock()
		closed := s.state == StateClosed
		s.mu.Unlock()
		if closed {
			return nil, false, ErrClosed
		}
		return s, false, nil
	}

	now := r.now().UTC()
	s := &Session{
		callID:        callID,
		phoneNumber:   phoneNumber,
		direction:     direction,
		state:         StateOpen,
		startedAt:     now,
		seqs:          make(map[uint64]struct{}),
		patterns:      make(map[string]PatternMatch),
		version:       1,
		lastUpdatedAt: now,
	}
	r.sessions[callID] = s
	hook := r.onUpdate
	r.mu.Unlock()

	if hook != nil {
		hook(s.Snapshot())
	}
	return s, true, nil
}

// Get returns a snapshot of the session for callID.
func (r *Registry) Get(callID string) (Snapshot, error) {
	r.mu.Lock()
	s, ok := r.sessions[callID]
	r.mu.Unlock()
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return s.Snapshot(), nil
}

// Close transitions the session to Closed, stamps its end time and freezes
// the assessment. The bool reports whether this call performed the
// transition; closing an already closed session is a tolerated repeat that
// returns the frozen snapshot with false, mirroring how repeated device
// "ended" broadcasts are tolerated.
func (r *Registry) Close(callID string) (Snapshot, bool, error) {
	r.mu.Lock()
	s, ok := r.sessions[callID]
	hook := r.onUpdate
	r.mu.Unlock()
	if !ok {
		return Snapshot{}, false, ErrNotFound
	}

	s.mu.Lock()
	if s.state == StateClosed {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, false, nil
	}
	now := r.now().UTC()
	s.state = StateClosed
	s.endedAt = now
	s.lastUpdatedAt = now
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if hook != nil {
		hook(snap)
	}
	return snap, true, nil
}

// Merge folds a scored chunk into its session. A missing session is the
// caller's concern (implicit creation policy lives above the registry).
func (r *Registry) Merge(res ChunkResult) (Assessment, MergeOutcome, error) {
	r.mu.Lock()
	s, ok := r.sessions[res.CallID]
	hook := r.onUpdate
	r.mu.Unlock()
	if !ok {
		return Assessment{}, "", ErrNotFound
	}

	assessment, outcome, snap := s.merge(res, r.now)
	if hook != nil && outcome != OutcomeLate {
		hook(snap)
	}
	return assessment, outcome, nil
}

// EvictExpired removes closed sessions past the retention window and returns
// how many were evicted.
func (r *Registry) EvictExpired(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, s := range r.sessions {
		s.mu.Lock()
		expired := s.state == StateClosed && now.Sub(s.endedAt) >= r.retention
		s.mu.Unlock()
		if expired {
			delete(r.sessions, id)
			evicted++
		}
	}
	return evicted
}

// StartJanitor periodically evicts expired sessions until ctx is done.
func (r *Registry) StartJanitor(ctx context.Context, interval time.Duration, onEvict func(count int)) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.EvictExpired(r.now().UTC()); n > 0 && onEvict != nil {
					onEvict(n)
				}
			}
		}
	}()
}

// OpenCount reports the number of open sessions.
func (r *Registry) OpenCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, s := range r.sessions {
		s.mu.Lock()
		if s.state == StateOpen {
			count++
		}
		s.mu.Unlock()
	}
	return count
}
