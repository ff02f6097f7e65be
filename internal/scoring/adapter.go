package scoring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AllienNova/scaiflutter/internal/audio"
	"github.com/AllienNova/scaiflutter/internal/session"
)

// Adapter validates uploads, bounds the scoring call with a timeout and
// normalizes backend output into a ChunkResult ready to merge. It is the only
// path between raw uploads and the aggregation engine; scoring always happens
// here, before any session lock is taken.
type Adapter struct {
	scorer  Scorer
	timeout time.Duration
	now     func() time.Time
}

func NewAdapter(scorer Scorer, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Adapter{
		scorer:  scorer,
		timeout: timeout,
		now:     time.Now,
	}
}

// Score validates and scores one chunk. A timed-out backend call surfaces as
// ErrUnavailable so the caller can retry or record a placeholder; it is never
// silently dropped.
func (a *Adapter) Score(ctx context.Context, chunk Chunk) (session.ChunkResult, error) {
	if strings.TrimSpace(chunk.CallID) == "" {
		return session.ChunkResult{}, fmt.Errorf("%w: missing call id", ErrInvalidChunk)
	}
	if len(chunk.Audio) == 0 {
		return session.ChunkResult{}, fmt.Errorf("%w: empty audio payload", ErrInvalidChunk)
	}
	// Payloads claiming WAV must parse; raw PCM uploads are passed through.
	if audio.IsWAV(chunk.Audio) {
		if _, err := audio.ProbeWAV(chunk.Audio); err != nil {
			return session.ChunkResult{}, fmt.Errorf("%w: %v", ErrInvalidChunk, err)
		}
	}

	scoreCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	result, err := a.scorer.Score(scoreCtx, chunk)
	if err != nil {
		if errors.Is(err, ErrInvalidChunk) || errors.Is(err, ErrUnavailable) {
			return session.ChunkResult{}, err
		}
		if errors.Is(err, context.DeadlineExceeded) || scoreCtx.Err() != nil {
			return session.ChunkResult{}, fmt.Errorf("%w: scoring timed out after %s", ErrUnavailable, a.timeout)
		}
		return session.ChunkResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return session.ChunkResult{
		CallID:     chunk.CallID,
		Seq:        chunk.Seq,
		RiskScore:  clampScore(result.RiskScore),
		Confidence: clampConfidence(result.Confidence),
		Patterns:   result.Patterns,
		ObservedAt: a.now().UTC(),
	}, nil
}
