package session

import "time"

// MergeOutcome classifies what a merge did to the session.
type MergeOutcome string

const (
	// OutcomeMerged means the chunk carried a new sequence number and the
	// running assessment was updated.
	OutcomeMerged MergeOutcome = "merged"
	// OutcomeDuplicate means the sequence number was already merged; only the
	// pattern set was unioned, scores and counts were left untouched.
	OutcomeDuplicate MergeOutcome = "duplicate"
	// OutcomeLate means the session was already closed; the frozen assessment
	// is returned unchanged. Late arrivals are a warning, not an error.
	OutcomeLate MergeOutcome = "late"
)

// merge folds one scored chunk into the session under the session lock.
//
// The aggregation is order-independent and monotonic: mean is a running mean
// over distinct sequences, max only grows, and the escalation level derives
// from max. That is what makes duplicated and out-of-order delivery safe
// without any reordering buffer.
func (s *Session) merge(res ChunkResult, now func() time.Time) (Assessment, MergeOutcome, Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return s.assessmentLocked(), OutcomeLate, s.snapshotLocked()
	}

	ts := now().UTC()
	if _, seen := s.seqs[res.Seq]; seen {
		s.unionPatternsLocked(res.Patterns)
		s.lastUpdatedAt = ts
		s.version++
		return s.assessmentLocked(), OutcomeDuplicate, s.snapshotLocked()
	}

	s.seqs[res.Seq] = struct{}{}
	if res.Seq > s.highestSeq {
		s.highestSeq = res.Seq
	}
	s.chunkCount++
	s.meanRisk += (res.RiskScore - s.meanRisk) / float64(s.chunkCount)
	if res.RiskScore > s.maxRisk {
		s.maxRisk = res.RiskScore
	}
	s.unionPatternsLocked(res.Patterns)
	s.lastUpdatedAt = ts
	s.version++

	return s.assessmentLocked(), OutcomeMerged, s.snapshotLocked()
}

// unionPatternsLocked merges patterns by name; first occurrence wins, so
// retried chunks with diverging descriptions stay idempotent.
func (s *Session) unionPatternsLocked(patterns []PatternMatch) {
	for _, p := range patterns {
		if p.Name == "" {
			continue
		}
		if _, ok := s.patterns[p.Name]; !ok {
			s.patterns[p.Name] = p
		}
	}
}
