package telephony

import (
	"log"
	"sync"
	"time"
)

// Classifier converts raw phone state transitions into lifecycle events.
//
// It tracks only the previously observed raw state plus a was-incoming flag,
// and emits at most one CallEvent per observed transition:
//
//	OffHook -> Idle        ended (direction from the was-incoming flag)
//	*       -> Ringing     incoming
//	Ringing -> OffHook     started (answered)
//	Idle    -> OffHook     started (outgoing)
//
// Repeated states and any other transition emit nothing, so the classifier is
// idempotent to duplicated device broadcasts. Emitted events are published on
// a channel consumed by the lifecycle coordinator; the classifier never
// touches the session registry itself.
type Classifier struct {
	mu          sync.Mutex
	last        RawState
	wasIncoming bool

	events chan CallEvent
	now    func() time.Time
}

func NewClassifier(buffer int) *Classifier {
	if buffer <= 0 {
		buffer = 64
	}
	return &Classifier{
		last:   RawIdle,
		events: make(chan CallEvent, buffer),
		now:    time.Now,
	}
}

// Events exposes the lifecycle event stream.
func (c *Classifier) Events() <-chan CallEvent {
	return c.events
}

// Observe processes one raw signal and returns the emitted event, if any.
func (c *Classifier) Observe(callID string, state RawState, phoneNumber string) (CallEvent, bool) {
	c.mu.Lock()
	prev := c.last
	c.last = state

	var (
		ev      CallEvent
		emitted bool
	)
	switch state {
	case RawIdle:
		if prev == RawOffHook {
			dir := DirectionOutgoing
			if c.wasIncoming {
				dir = DirectionIncoming
			}
			ev = c.event(callID, EventEnded, dir, phoneNumber)
			emitted = true
		}
		c.wasIncoming = false
	case RawRinging:
		c.wasIncoming = true
		ev = c.event(callID, EventIncoming, DirectionIncoming, phoneNumber)
		emitted = true
	case RawOffHook:
		switch prev {
		case RawRinging:
			ev = c.event(callID, EventStarted, DirectionIncoming, phoneNumber)
			emitted = true
		case RawIdle:
			c.wasIncoming = false
			ev = c.event(callID, EventStarted, DirectionOutgoing, phoneNumber)
			emitted = true
		}
	}
	c.mu.Unlock()

	if emitted {
		c.publish(ev)
	}
	return ev, emitted
}

func (c *Classifier) event(callID string, kind EventKind, dir Direction, phoneNumber string) CallEvent {
	return CallEvent{
		CallID:      callID,
		Kind:        kind,
		Direction:   dir,
		PhoneNumber: phoneNumber,
		ObservedAt:  c.now().UTC(),
	}
}

func (c *Classifier) publish(ev CallEvent) {
	select {
	case c.events <- ev:
	default:
		// The coordinator has fallen far behind; dropping is preferable to
		// blocking the telephony ingest path.
		log.Printf("telephony: event buffer full, dropping %s for call %s", ev.Kind, ev.CallID)
	}
}
