package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/AllienNova/scaiflutter/internal/analysis"
	"github.com/AllienNova/scaiflutter/internal/scoring"
	"github.com/AllienNova/scaiflutter/internal/session"
	"github.com/AllienNova/scaiflutter/internal/telephony"
)

type startCallRequest struct {
	PhoneNumber string `json:"phone_number"`
	Direction   string `json:"direction"`
}

func (s *Server) handleStartCall(w http.ResponseWriter, r *http.Request) {
	callID := strings.TrimSpace(chi.URLParam(r, "id"))
	if callID == "" {
		respondError(w, http.StatusBadRequest, "invalid_call_id", "missing call id")
		return
	}

	var req startCallRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	direction := telephony.DirectionUnknown
	switch strings.ToLower(strings.TrimSpace(req.Direction)) {
	case "", "unknown":
	case "incoming":
		direction = telephony.DirectionIncoming
	case "outgoing":
		direction = telephony.DirectionOutgoing
	default:
		respondError(w, http.StatusBadRequest, "invalid_direction", "direction must be incoming, outgoing or unknown")
		return
	}

	snap, err := s.service.StartSession(r.Context(), callID, strings.TrimSpace(req.PhoneNumber), direction)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleStopCall(w http.ResponseWriter, r *http.Request) {
	callID := strings.TrimSpace(chi.URLParam(r, "id"))
	if callID == "" {
		respondError(w, http.StatusBadRequest, "invalid_call_id", "missing call id")
		return
	}

	snap, err := s.service.StopSession(r.Context(), callID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	callID := strings.TrimSpace(chi.URLParam(r, "id"))
	if callID == "" {
		respondError(w, http.StatusBadRequest, "invalid_call_id", "missing call id")
		return
	}

	snap, err := s.service.GetSession(callID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

type chunkResponse struct {
	Outcome    session.MergeOutcome `json:"outcome"`
	Assessment session.Assessment   `json:"assessment"`
}

// handleUploadChunk accepts one multipart audio segment under the "audio"
// field plus seq/total_chunks/phone_number form values.
func (s *Server) handleUploadChunk(w http.ResponseWriter, r *http.Request) {
	callID := strings.TrimSpace(chi.URLParam(r, "id"))
	if callID == "" {
		respondError(w, http.StatusBadRequest, "invalid_call_id", "missing call id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxChunkBytes)
	file, _, err := r.FormFile("audio")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_chunk", "multipart field audio is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "chunk_too_large", err.Error())
		return
	}

	seq, err := strconv.ParseUint(strings.TrimSpace(r.FormValue("seq")), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_chunk", "form value seq must be a non-negative integer")
		return
	}
	var total uint64
	if v := strings.TrimSpace(r.FormValue("total_chunks")); v != "" {
		total, err = strconv.ParseUint(v, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_chunk", "form value total_chunks must be a non-negative integer")
			return
		}
	}

	assessment, outcome, err := s.service.IngestChunk(r.Context(), analysis.ChunkUpload{
		CallID:      callID,
		Seq:         seq,
		TotalChunks: total,
		PhoneNumber: strings.TrimSpace(r.FormValue("phone_number")),
		Audio:       audio,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, chunkResponse{Outcome: outcome, Assessment: assessment})
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scoring.ErrInvalidChunk):
		respondError(w, http.StatusBadRequest, "invalid_chunk", err.Error())
	case errors.Is(err, scoring.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "scoring_unavailable", err.Error())
	case errors.Is(err, session.ErrClosed):
		respondError(w, http.StatusConflict, "session_closed", err.Error())
	case errors.Is(err, session.ErrNotFound):
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
