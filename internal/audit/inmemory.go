package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a bounded in-process audit trail for local/dev use. When
// the cap is reached the oldest records are discarded so audit growth stays
// bounded.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []Record
	max     int
}

func NewInMemoryStore(maxRecords int) *InMemoryStore {
	if maxRecords <= 0 {
		maxRecords = 4096
	}
	return &InMemoryStore{max: maxRecords}
}

func (s *InMemoryStore) Append(_ context.Context, record Record) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	if over := len(s.records) - s.max; over > 0 {
		s.records = append(s.records[:0:0], s.records[over:]...)
	}
	return nil
}

func (s *InMemoryStore) RecentByCall(_ context.Context, callID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		if s.records[i].CallID == callID {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}

func (s *InMemoryStore) History(_ context.Context, q HistoryQuery) ([]Record, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		r := s.records[i]
		if r.Kind != KindFinalized {
			continue
		}
		if q.ScamOnly && !isScamLevel(r.RiskLevel) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
