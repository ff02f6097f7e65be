package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/AllienNova/scaiflutter/internal/analysis"
	"github.com/AllienNova/scaiflutter/internal/audit"
	"github.com/AllienNova/scaiflutter/internal/config"
	"github.com/AllienNova/scaiflutter/internal/notify"
	"github.com/AllienNova/scaiflutter/internal/observability"
	"github.com/AllienNova/scaiflutter/internal/telephony"
)

type Server struct {
	cfg        config.Config
	service    *analysis.Service
	classifier *telephony.Classifier
	trail      audit.Store
	hub        *notify.Hub
	metrics    *observability.Metrics
	upgrader   websocket.Upgrader
}

func New(cfg config.Config, service *analysis.Service, classifier *telephony.Classifier, trail audit.Store, hub *notify.Hub, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:        cfg,
		service:    service,
		classifier: classifier,
		trail:      trail,
		hub:        hub,
		metrics:    metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from the
				// same origin, so other websites cannot watch live call risk
				// if the service is ever exposed beyond localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Post("/v1/telephony/state", s.handleTelephonyState)

	r.Post("/v1/calls/{id}/start", s.handleStartCall)
	r.Post("/v1/calls/{id}/stop", s.handleStopCall)
	r.Post("/v1/calls/{id}/chunks", s.handleUploadChunk)
	r.Get("/v1/calls/history", s.handleHistory)
	r.Get("/v1/calls/ws", s.handleUpdatesWS)
	r.Get("/v1/calls/{id}", s.handleGetCall)
	r.Get("/v1/calls/{id}/audit", s.handleCallAudit)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"open_sessions": s.service.OpenCount(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ready",
		"open_sessions": s.service.OpenCount(),
	})
}

func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		respondJSON(w, http.StatusOK, map[string]any{
			"generated_at": "",
			"window_size":  0,
			"stages":       []any{},
		})
		return
	}
	respondJSON(w, http.StatusOK, s.metrics.SnapshotStages())
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
