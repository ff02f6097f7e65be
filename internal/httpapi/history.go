package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/AllienNova/scaiflutter/internal/audit"
)

// handleHistory returns finalized call summaries, newest first. Query
// parameters: limit (default 50) and scam_only (high and critical only).
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := audit.HistoryQuery{}

	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		q.Limit = n
	}
	if v := strings.TrimSpace(r.URL.Query().Get("scam_only")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_scam_only", "scam_only must be a boolean")
			return
		}
		q.ScamOnly = b
	}

	records, err := s.trail.History(r.Context(), q)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":   len(records),
		"records": records,
	})
}

// handleCallAudit returns the recent audit records for one call, including
// late arrivals and scoring failures.
func (s *Server) handleCallAudit(w http.ResponseWriter, r *http.Request) {
	callID := strings.TrimSpace(chi.URLParam(r, "id"))
	if callID == "" {
		respondError(w, http.StatusBadRequest, "invalid_call_id", "missing call id")
		return
	}

	limit := 0
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := s.trail.RecentByCall(r.Context(), callID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "audit_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"call_id": callID,
		"count":   len(records),
		"records": records,
	})
}
