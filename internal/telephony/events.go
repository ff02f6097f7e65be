package telephony

import (
	"fmt"
	"strings"
	"time"
)

// RawState is a device-level phone state as reported by the handset.
type RawState string

const (
	RawIdle    RawState = "IDLE"
	RawRinging RawState = "RINGING"
	RawOffHook RawState = "OFFHOOK"
)

// ParseRawState normalizes a wire-level state string.
func ParseRawState(v string) (RawState, error) {
	switch RawState(strings.ToUpper(strings.TrimSpace(v))) {
	case RawIdle:
		return RawIdle, nil
	case RawRinging:
		return RawRinging, nil
	case RawOffHook:
		return RawOffHook, nil
	default:
		return "", fmt.Errorf("unknown raw state %q", v)
	}
}

// EventKind identifies call lifecycle event variants.
type EventKind string

const (
	EventIncoming EventKind = "incoming"
	EventStarted  EventKind = "started"
	EventEnded    EventKind = "ended"
)

// Direction records how a call was initiated.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
	DirectionUnknown  Direction = "unknown"
)

// CallEvent is a semantic lifecycle event derived from raw phone states.
// Events are immutable and consumed once by the lifecycle coordinator.
type CallEvent struct {
	CallID      string    `json:"call_id"`
	Kind        EventKind `json:"kind"`
	Direction   Direction `json:"direction"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	ObservedAt  time.Time `json:"observed_at"`
}
