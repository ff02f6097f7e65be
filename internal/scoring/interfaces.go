package scoring

import (
	"context"
	"errors"

	"github.com/AllienNova/scaiflutter/internal/session"
)

var (
	// ErrInvalidChunk marks a malformed or empty upload; the caller's fault,
	// never retried.
	ErrInvalidChunk = errors.New("invalid chunk")
	// ErrUnavailable marks a transient scoring failure (unreachable backend,
	// timeout); callers may retry.
	ErrUnavailable = errors.New("scoring unavailable")
)

// Chunk is a raw audio segment handed to the scorer.
type Chunk struct {
	CallID      string
	Seq         uint64
	TotalChunks uint64
	PhoneNumber string
	Audio       []byte
}

// Result is the raw output of a scoring backend.
type Result struct {
	RiskScore  float64 // 0..100
	Confidence float64 // 0..1
	ScamType   string
	Patterns   []session.PatternMatch
}

// Scorer is the injected risk-scoring capability. Implementations may block
// or fail; callers bound them with a context deadline and must never invoke
// them while holding a session lock.
type Scorer interface {
	Score(ctx context.Context, chunk Chunk) (Result, error)
}

// ScamTypeLegitimate is the backend's verdict for a benign chunk.
const ScamTypeLegitimate = "LEGITIMATE"

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
