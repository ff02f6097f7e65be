package session

import (
	"sort"
	"sync"
	"time"

	"github.com/AllienNova/scaiflutter/internal/telephony"
)

// State is the lifecycle state of a session. Open -> Closed is the only
// transition and Closed is terminal.
type State string

const (
	StateOpen   State = "open"
	StateClosed State = "closed"
)

// RiskLevel buckets the running assessment by its worst chunk.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// LevelForScore maps a 0..100 risk score to an escalation level. The level
// follows the worst chunk seen so a single severe chunk escalates the whole
// session regardless of how many benign chunks preceded it.
func LevelForScore(score float64) RiskLevel {
	switch {
	case score >= 80:
		return RiskCritical
	case score >= 60:
		return RiskHigh
	case score >= 40:
		return RiskMedium
	default:
		return RiskLow
	}
}

// PatternMatch is a named scam pattern detected in a chunk. Patterns are
// value types deduplicated by name; the first occurrence's description and
// confidence win on merge.
type PatternMatch struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// ChunkResult is a scored audio chunk ready to merge into a session.
// Seq is caller-supplied and may arrive duplicated or out of order.
type ChunkResult struct {
	CallID     string
	Seq        uint64
	RiskScore  float64
	Confidence float64
	Patterns   []PatternMatch
	ObservedAt time.Time
}

// Assessment is the running risk summary for a session. It is recomputed on
// every merge from constant per-session state and frozen once the session
// closes.
type Assessment struct {
	MeanRisk   float64        `json:"mean_risk"`
	MaxRisk    float64        `json:"max_risk"`
	ChunkCount int            `json:"chunk_count"`
	Patterns   []PatternMatch `json:"patterns"`
	Level      RiskLevel      `json:"level"`
}

// Session is the per-call aggregation context. All mutation happens under the
// session mutex; operations on different calls never contend.
type Session struct {
	mu sync.Mutex

	callID      string
	phoneNumber string
	direction   telephony.Direction
	state       State
	startedAt   time.Time
	endedAt     time.Time

	highestSeq uint64
	seqs       map[uint64]struct{}

	meanRisk   float64
	maxRisk    float64
	chunkCount int
	patterns   map[string]PatternMatch

	version       uint64
	lastUpdatedAt time.Time
}

// Snapshot is an immutable copy of a session, safe to hand to callers and
// subscribers. Version is monotonic per session; consumers receiving updates
// out of order keep the highest version they have seen.
type Snapshot struct {
	CallID        string              `json:"call_id"`
	PhoneNumber   string              `json:"phone_number,omitempty"`
	Direction     telephony.Direction `json:"direction"`
	State         State               `json:"state"`
	StartedAt     time.Time           `json:"started_at"`
	EndedAt       *time.Time          `json:"ended_at,omitempty"`
	HighestSeq    uint64              `json:"highest_seq"`
	Assessment    Assessment          `json:"assessment"`
	Version       uint64              `json:"version"`
	LastUpdatedAt time.Time           `json:"last_updated_at"`
}

// Snapshot returns a copy of the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		CallID:        s.callID,
		PhoneNumber:   s.phoneNumber,
		Direction:     s.direction,
		State:         s.state,
		StartedAt:     s.startedAt,
		HighestSeq:    s.highestSeq,
		Assessment:    s.assessmentLocked(),
		Version:       s.version,
		LastUpdatedAt: s.lastUpdatedAt,
	}
	if !s.endedAt.IsZero() {
		ended := s.endedAt
		snap.EndedAt = &ended
	}
	return snap
}

// assessmentLocked materializes the Assessment with patterns in stable order.
func (s *Session) assessmentLocked() Assessment {
	patterns := make([]PatternMatch, 0, len(s.patterns))
	for _, p := range s.patterns {
		patterns = append(patterns, p)
	}
	sort.Slice(patterns, func(i, j int) bool { return patterns[i].Name < patterns[j].Name })

	return Assessment{
		MeanRisk:   s.meanRisk,
		MaxRisk:    s.maxRisk,
		ChunkCount: s.chunkCount,
		Patterns:   patterns,
		Level:      LevelForScore(s.maxRisk),
	}
}
