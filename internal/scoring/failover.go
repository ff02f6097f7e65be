package scoring

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// FailoverScorer prefers the primary backend and switches to the fallback
// when primary calls fail transiently. Once the fallback succeeds it stays
// active until it fails; then primary is retried. Invalid-chunk errors are
// the caller's fault and never trigger failover.
type FailoverScorer struct {
	primary        Scorer
	fallback       Scorer
	fallbackActive atomic.Bool
}

func NewFailoverScorer(primary, fallback Scorer) *FailoverScorer {
	return &FailoverScorer{primary: primary, fallback: fallback}
}

func (f *FailoverScorer) Score(ctx context.Context, chunk Chunk) (Result, error) {
	if f.fallbackActive.Load() {
		result, fbErr := f.fallback.Score(ctx, chunk)
		if fbErr == nil {
			return result, nil
		}
		if errors.Is(fbErr, ErrInvalidChunk) {
			return Result{}, fbErr
		}
		// Fallback failed after being active; try primary again.
		result, prErr := f.primary.Score(ctx, chunk)
		if prErr == nil {
			f.fallbackActive.Store(false)
			return result, nil
		}
		return Result{}, fmt.Errorf("fallback failed: %v; primary failed: %w", fbErr, prErr)
	}

	result, prErr := f.primary.Score(ctx, chunk)
	if prErr == nil {
		return result, nil
	}
	if errors.Is(prErr, ErrInvalidChunk) {
		return Result{}, prErr
	}

	result, fbErr := f.fallback.Score(ctx, chunk)
	if fbErr != nil {
		return Result{}, fmt.Errorf("primary failed: %v; fallback failed: %w", prErr, fbErr)
	}
	f.fallbackActive.Store(true)
	return result, nil
}
