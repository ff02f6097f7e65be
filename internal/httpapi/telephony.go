package httpapi

import (
	"io"
	"net/http"

	"github.com/AllienNova/scaiflutter/internal/protocol"
	"github.com/AllienNova/scaiflutter/internal/telephony"
)

type telephonyResponse struct {
	Accepted bool                 `json:"accepted"`
	Event    *telephony.CallEvent `json:"event,omitempty"`
}

// handleTelephonyState ingests a raw device phone state. Transitions that do
// not produce a lifecycle event (for example repeated OFFHOOK reports) are
// accepted with no event.
func (s *Server) handleTelephonyState(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sig, err := protocol.ParseTelephonySignal(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_signal", err.Error())
		return
	}
	state, err := telephony.ParseRawState(sig.State)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_state", err.Error())
		return
	}

	ev, ok := s.classifier.Observe(sig.CallID, state, sig.PhoneNumber)
	if !ok {
		respondJSON(w, http.StatusAccepted, telephonyResponse{Accepted: true})
		return
	}
	respondJSON(w, http.StatusAccepted, telephonyResponse{Accepted: true, Event: &ev})
}
