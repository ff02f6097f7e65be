package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/AllienNova/scaiflutter/internal/session"
)

// MessageType identifies payload variants on the live update stream.
type MessageType string

const (
	TypeSessionUpdate MessageType = "session_update"
	TypeErrorEvent    MessageType = "error_event"
)

// SessionUpdate is pushed to websocket subscribers after every successful
// open, merge and close. Delivery is at-least-once; consumers reconcile on
// Session.Version.
type SessionUpdate struct {
	Type    MessageType      `json:"type"`
	Session session.Snapshot `json:"session"`
}

func NewSessionUpdate(snap session.Snapshot) SessionUpdate {
	return SessionUpdate{Type: TypeSessionUpdate, Session: snap}
}

// ErrorEvent reports a failure on the update stream. CallID and Timestamp
// allow correlation with the audit trail.
type ErrorEvent struct {
	Type      MessageType `json:"type"`
	CallID    string      `json:"call_id,omitempty"`
	Code      string      `json:"code"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail,omitempty"`
}

// TelephonySignal is the raw device state posted by the handset app.
type TelephonySignal struct {
	CallID      string `json:"call_id"`
	State       string `json:"state"`
	PhoneNumber string `json:"phone_number,omitempty"`
	TSMs        int64  `json:"ts_ms,omitempty"`
}

// ParseTelephonySignal decodes and validates a raw signal payload.
func ParseTelephonySignal(raw []byte) (TelephonySignal, error) {
	var sig TelephonySignal
	if err := json.Unmarshal(raw, &sig); err != nil {
		return TelephonySignal{}, fmt.Errorf("invalid signal payload: %w", err)
	}
	sig.CallID = strings.TrimSpace(sig.CallID)
	sig.State = strings.TrimSpace(sig.State)
	if sig.CallID == "" {
		return TelephonySignal{}, errors.New("invalid telephony signal: missing call_id")
	}
	if sig.State == "" {
		return TelephonySignal{}, errors.New("invalid telephony signal: missing state")
	}
	return sig, nil
}
