package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/AllienNova/scaiflutter/internal/protocol"
)

// handleUpdatesWS streams session updates to a websocket subscriber. An
// optional call_id query parameter narrows the stream to one call. Delivery
// is at-least-once; clients reconcile on the snapshot version.
func (s *Server) handleUpdatesWS(w http.ResponseWriter, r *http.Request) {
	callID := strings.TrimSpace(r.URL.Query().Get("call_id"))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()
	defer s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-updates:
				if !ok {
					return
				}
				if callID != "" && snap.CallID != callID {
					continue
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(protocol.NewSessionUpdate(snap)); err != nil {
					cancel()
					return
				}
				s.metrics.WSMessages.WithLabelValues("outbound", string(protocol.TypeSessionUpdate)).Inc()
			}
		}
	}()

	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	// The stream is push-only. Inbound frames are drained solely to notice
	// disconnects and keep pong handling alive.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		s.metrics.WSMessages.WithLabelValues("inbound", "client_frame").Inc()
	}

	cancel()
	<-writerDone
}
