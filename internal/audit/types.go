package audit

import (
	"context"
	"time"
)

// RecordKind classifies audit trail entries.
type RecordKind string

const (
	// KindLateArrival records a chunk scored after its session closed. The
	// finalized assessment is never touched; the late result lands here.
	KindLateArrival RecordKind = "late_arrival"
	// KindDuplicate records a retried sequence number. A few are normal for
	// at-least-once uploads; a flood of them points at a misbehaving client.
	KindDuplicate RecordKind = "duplicate"
	// KindScoringFailure records a chunk whose scoring call failed or timed
	// out: a null-result placeholder rather than a silent drop.
	KindScoringFailure RecordKind = "scoring_failure"
	// KindFinalized records a session's frozen summary at close time.
	KindFinalized RecordKind = "finalized"
)

// Record is one audit trail entry. Phone numbers are masked before a record
// is appended; full numbers never reach the store.
type Record struct {
	ID          string     `json:"id"`
	CallID      string     `json:"call_id"`
	Kind        RecordKind `json:"kind"`
	Seq         uint64     `json:"seq,omitempty"`
	RiskScore   float64    `json:"risk_score"`
	RiskLevel   string     `json:"risk_level,omitempty"`
	MeanRisk    float64    `json:"mean_risk,omitempty"`
	ChunkCount  int        `json:"chunk_count,omitempty"`
	PhoneNumber string     `json:"phone_number,omitempty"`
	Detail      string     `json:"detail,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// HistoryQuery filters finalized session summaries, mirroring the analysis
// history endpoint (most recent first, optional scam-only filter).
type HistoryQuery struct {
	Limit    int
	ScamOnly bool
}

// Store is the audit trail persistence capability.
type Store interface {
	Append(ctx context.Context, record Record) error
	RecentByCall(ctx context.Context, callID string, limit int) ([]Record, error)
	History(ctx context.Context, q HistoryQuery) ([]Record, error)
	Close() error
}

// scamLevels are the risk levels the history endpoint treats as scam verdicts.
func isScamLevel(level string) bool {
	return level == "high" || level == "critical"
}
