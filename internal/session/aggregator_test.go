package session

import (
	"math"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/AllienNova/scaiflutter/internal/telephony"
)

func mustOpen(t *testing.T, r *Registry, callID string) *Session {
	t.Helper()
	s, _, err := r.OpenOrGet(callID, telephony.DirectionIncoming, "+15551234")
	if err != nil {
		t.Fatalf("OpenOrGet() error = %v", err)
	}
	return s
}

func chunk(callID string, seq uint64, score float64, patterns ...PatternMatch) ChunkResult {
	return ChunkResult{
		CallID:     callID,
		Seq:        seq,
		RiskScore:  score,
		Confidence: 0.9,
		Patterns:   patterns,
		ObservedAt: time.Now().UTC(),
	}
}

func TestMergeRunningAssessment(t *testing.T) {
	r := NewRegistry(time.Minute)
	mustOpen(t, r, "call-1")

	if _, outcome, err := r.Merge(chunk("call-1", 1, 30)); err != nil || outcome != OutcomeMerged {
		t.Fatalf("first merge outcome = %v err = %v", outcome, err)
	}
	a, outcome, err := r.Merge(chunk("call-1", 2, 85))
	if err != nil || outcome != OutcomeMerged {
		t.Fatalf("second merge outcome = %v err = %v", outcome, err)
	}
	if a.ChunkCount != 2 {
		t.Fatalf("ChunkCount = %d, want 2", a.ChunkCount)
	}
	if a.MaxRisk != 85 {
		t.Fatalf("MaxRisk = %v, want 85", a.MaxRisk)
	}
	if math.Abs(a.MeanRisk-57.5) > 1e-9 {
		t.Fatalf("MeanRisk = %v, want 57.5", a.MeanRisk)
	}
	if a.Level != RiskCritical {
		t.Fatalf("Level = %q, want critical", a.Level)
	}
}

func TestMergeIdempotentOnDuplicateSeq(t *testing.T) {
	r := NewRegistry(time.Minute)
	mustOpen(t, r, "call-1")

	p1 := PatternMatch{Name: "urgency", Description: "pressure tactics", Confidence: 0.8}
	p2 := PatternMatch{Name: "gift_cards", Description: "payment in gift cards", Confidence: 0.7}

	first, _, err := r.Merge(chunk("call-1", 1, 55, p1))
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	// Same sequence retried with a different score and extra pattern: scores
	// and count must not move, patterns must union.
	second, outcome, err := r.Merge(chunk("call-1", 1, 99, p1, p2))
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if outcome != OutcomeDuplicate {
		t.Fatalf("outcome = %q, want duplicate", outcome)
	}
	if second.ChunkCount != 1 || second.MaxRisk != first.MaxRisk || second.MeanRisk != first.MeanRisk {
		t.Fatalf("duplicate mutated scores: %+v vs %+v", second, first)
	}
	if len(second.Patterns) != 2 {
		t.Fatalf("patterns = %+v, want union of 2", second.Patterns)
	}
}

func TestMergeDuplicatePatternFirstOccurrenceWins(t *testing.T) {
	r := NewRegistry(time.Minute)
	mustOpen(t, r, "call-1")

	r.Merge(chunk("call-1", 1, 50, PatternMatch{Name: "urgency", Description: "original", Confidence: 0.8}))
	a, _, _ := r.Merge(chunk("call-1", 2, 50, PatternMatch{Name: "urgency", Description: "rewritten", Confidence: 0.1}))

	if len(a.Patterns) != 1 {
		t.Fatalf("patterns = %+v, want 1", a.Patterns)
	}
	if a.Patterns[0].Description != "original" || a.Patterns[0].Confidence != 0.8 {
		t.Fatalf("first occurrence should win, got %+v", a.Patterns[0])
	}
}

func TestMergeOrderIndependent(t *testing.T) {
	scores := []float64{12, 93, 47, 65, 3, 70, 55, 81}

	final := func(perm []int) Assessment {
		r := NewRegistry(time.Minute)
		mustOpen(t, r, "call-1")
		var a Assessment
		for _, i := range perm {
			a, _, _ = r.Merge(chunk("call-1", uint64(i+1), scores[i]))
		}
		return a
	}

	base := final([]int{0, 1, 2, 3, 4, 5, 6, 7})
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 20; trial++ {
		perm := rng.Perm(len(scores))
		got := final(perm)
		if got.MaxRisk != base.MaxRisk || got.Level != base.Level || got.ChunkCount != base.ChunkCount {
			t.Fatalf("permutation %v diverged: %+v vs %+v", perm, got, base)
		}
		if math.Abs(got.MeanRisk-base.MeanRisk) > 1e-6 {
			t.Fatalf("permutation %v mean = %v, want %v", perm, got.MeanRisk, base.MeanRisk)
		}
	}
}

func TestMergeMonotonicEscalation(t *testing.T) {
	r := NewRegistry(time.Minute)
	mustOpen(t, r, "call-1")

	r.Merge(chunk("call-1", 1, 95))
	a, _, _ := r.Merge(chunk("call-1", 2, 5))
	if a.Level != RiskCritical {
		t.Fatalf("Level = %q after benign chunk, want critical", a.Level)
	}
	if a.MaxRisk != 95 {
		t.Fatalf("MaxRisk = %v, want 95", a.MaxRisk)
	}
}

func TestMergeAfterCloseIsLateAndFrozen(t *testing.T) {
	r := NewRegistry(time.Minute)
	mustOpen(t, r, "call-1")

	r.Merge(chunk("call-1", 1, 30))
	r.Merge(chunk("call-1", 2, 85))
	closed, _, err := r.Close("call-1")
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	a, outcome, err := r.Merge(chunk("call-1", 3, 10, PatternMatch{Name: "late_pattern"}))
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if outcome != OutcomeLate {
		t.Fatalf("outcome = %q, want late", outcome)
	}
	if !reflect.DeepEqual(a, closed.Assessment) {
		t.Fatalf("assessment changed after close: %+v vs %+v", a, closed.Assessment)
	}

	snap, err := r.Get("call-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !reflect.DeepEqual(snap.Assessment, closed.Assessment) {
		t.Fatalf("stored assessment changed after close")
	}
	if snap.Version != closed.Version {
		t.Fatalf("version bumped by late arrival: %d vs %d", snap.Version, closed.Version)
	}
}

func TestLevelForScoreThresholds(t *testing.T) {
	cases := []struct {
		score float64
		want  RiskLevel
	}{
		{0, RiskLow},
		{39.9, RiskLow},
		{40, RiskMedium},
		{59.9, RiskMedium},
		{60, RiskHigh},
		{79.9, RiskHigh},
		{80, RiskCritical},
		{100, RiskCritical},
	}
	for _, tc := range cases {
		if got := LevelForScore(tc.score); got != tc.want {
			t.Fatalf("LevelForScore(%v) = %q, want %q", tc.score, got, tc.want)
		}
	}
}
