package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/AllienNova/scaiflutter/internal/audit"
	"github.com/AllienNova/scaiflutter/internal/observability"
	"github.com/AllienNova/scaiflutter/internal/policy"
	"github.com/AllienNova/scaiflutter/internal/scoring"
	"github.com/AllienNova/scaiflutter/internal/session"
	"github.com/AllienNova/scaiflutter/internal/telephony"
)

// Service is the live-analysis facade exposed to the transport layer. It owns
// the ingest pipeline ordering: score first (no locks held), then look up or
// implicitly create the session, then merge under the per-session lock.
type Service struct {
	registry *session.Registry
	adapter  *scoring.Adapter
	trail    audit.Store
	metrics  *observability.Metrics
	now      func() time.Time
}

// ChunkUpload is a raw audio segment as received from the upload transport.
type ChunkUpload struct {
	CallID      string
	Seq         uint64
	TotalChunks uint64
	PhoneNumber string
	Audio       []byte
}

func NewService(registry *session.Registry, adapter *scoring.Adapter, trail audit.Store, metrics *observability.Metrics) *Service {
	return &Service{
		registry: registry,
		adapter:  adapter,
		trail:    trail,
		metrics:  metrics,
		now:      time.Now,
	}
}

// StartSession explicitly opens a session for a call. Reusing a closed call
// id fails with session.ErrClosed.
func (s *Service) StartSession(_ context.Context, callID string, phoneNumber string, direction telephony.Direction) (session.Snapshot, error) {
	sess, created, err := s.registry.OpenOrGet(callID, direction, phoneNumber)
	if err != nil {
		return session.Snapshot{}, err
	}
	if created {
		s.metrics.SessionEvents.WithLabelValues("created").Inc()
		s.metrics.OpenSessions.Set(float64(s.registry.OpenCount()))
	}
	return sess.Snapshot(), nil
}

// GetSession returns the current snapshot for a call.
func (s *Service) GetSession(callID string) (session.Snapshot, error) {
	return s.registry.Get(callID)
}

// OpenCount reports how many sessions are currently open.
func (s *Service) OpenCount() int {
	return s.registry.OpenCount()
}

// StopSession closes the session and archives its frozen summary. In-flight
// scoring for the call is allowed to finish; those results land as late
// arrivals. Repeated stops return the frozen snapshot without archiving a
// second summary, so the device's "ended" broadcast and an explicit stop can
// both fire for the same call.
func (s *Service) StopSession(ctx context.Context, callID string) (session.Snapshot, error) {
	snap, transitioned, err := s.registry.Close(callID)
	if err != nil {
		return session.Snapshot{}, err
	}
	if !transitioned {
		return snap, nil
	}
	s.metrics.SessionEvents.WithLabelValues("closed").Inc()
	s.metrics.OpenSessions.Set(float64(s.registry.OpenCount()))

	record := audit.Record{
		CallID:      callID,
		Kind:        audit.KindFinalized,
		RiskScore:   snap.Assessment.MaxRisk,
		RiskLevel:   string(snap.Assessment.Level),
		MeanRisk:    snap.Assessment.MeanRisk,
		ChunkCount:  snap.Assessment.ChunkCount,
		PhoneNumber: policy.MaskPhone(snap.PhoneNumber),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.trail.Append(ctx, record); err != nil {
		log.Printf("analysis: archive summary for call %s failed: %v", callID, err)
	}
	return snap, nil
}

// IngestChunk scores and merges one uploaded chunk, returning the running
// assessment and what the merge did. Chunks for unseen calls implicitly open
// a session with unknown direction so audio racing ahead of the lifecycle
// signal is never lost.
func (s *Service) IngestChunk(ctx context.Context, up ChunkUpload) (session.Assessment, session.MergeOutcome, error) {
	chunkStart := s.now()

	scoreStart := s.now()
	result, err := s.adapter.Score(ctx, scoring.Chunk{
		CallID:      up.CallID,
		Seq:         up.Seq,
		TotalChunks: up.TotalChunks,
		PhoneNumber: up.PhoneNumber,
		Audio:       up.Audio,
	})
	s.metrics.ObserveScoringLatency(s.now().Sub(scoreStart))
	if err != nil {
		return session.Assessment{}, "", s.recordScoringFailure(ctx, up, err)
	}

	assessment, outcome, err := s.merge(result, up.PhoneNumber)
	if err != nil {
		return session.Assessment{}, "", err
	}

	s.metrics.ChunkOutcomes.WithLabelValues(string(outcome)).Inc()
	s.metrics.ObserveStage(observability.StageChunk, s.now().Sub(chunkStart))

	switch outcome {
	case session.OutcomeLate:
		s.auditOutcome(ctx, up, result, audit.KindLateArrival)
	case session.OutcomeDuplicate:
		s.auditOutcome(ctx, up, result, audit.KindDuplicate)
	}
	return assessment, outcome, nil
}

func (s *Service) merge(result session.ChunkResult, phoneNumber string) (session.Assessment, session.MergeOutcome, error) {
	mergeStart := s.now()
	defer func() {
		s.metrics.ObserveStage(observability.StageMerge, s.now().Sub(mergeStart))
	}()

	assessment, outcome, err := s.registry.Merge(result)
	if err == nil {
		return assessment, outcome, nil
	}
	if !errors.Is(err, session.ErrNotFound) {
		return session.Assessment{}, "", err
	}

	// Chunk arrived before any lifecycle event: open implicitly.
	_, created, err := s.registry.OpenOrGet(result.CallID, telephony.DirectionUnknown, phoneNumber)
	if err != nil {
		return session.Assessment{}, "", err
	}
	if created {
		s.metrics.SessionEvents.WithLabelValues("created_implicit").Inc()
		s.metrics.OpenSessions.Set(float64(s.registry.OpenCount()))
	}
	return s.registry.Merge(result)
}

// recordScoringFailure writes a null-result placeholder so a failed or timed
// out scoring call is never silently dropped.
func (s *Service) recordScoringFailure(ctx context.Context, up ChunkUpload, cause error) error {
	code := "backend_error"
	switch {
	case errors.Is(cause, scoring.ErrInvalidChunk):
		code = "invalid_chunk"
	case errors.Is(cause, scoring.ErrUnavailable):
		code = "unavailable"
	}
	s.metrics.ScoringErrors.WithLabelValues(code).Inc()
	s.metrics.ChunkOutcomes.WithLabelValues(code).Inc()

	record := audit.Record{
		CallID:      up.CallID,
		Kind:        audit.KindScoringFailure,
		Seq:         up.Seq,
		PhoneNumber: policy.MaskPhone(up.PhoneNumber),
		Detail:      cause.Error(),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.trail.Append(ctx, record); err != nil {
		log.Printf("analysis: audit scoring failure for call %s failed: %v", up.CallID, err)
	}
	return fmt.Errorf("score chunk %d for call %s: %w", up.Seq, up.CallID, cause)
}

func (s *Service) auditOutcome(ctx context.Context, up ChunkUpload, result session.ChunkResult, kind audit.RecordKind) {
	record := audit.Record{
		CallID:      up.CallID,
		Kind:        kind,
		Seq:         up.Seq,
		RiskScore:   result.RiskScore,
		RiskLevel:   string(session.LevelForScore(result.RiskScore)),
		PhoneNumber: policy.MaskPhone(up.PhoneNumber),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.trail.Append(ctx, record); err != nil {
		log.Printf("analysis: audit %s for call %s failed: %v", kind, up.CallID, err)
	}
}
