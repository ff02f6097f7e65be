package lifecycle

import (
	"context"
	"errors"
	"log"

	"github.com/AllienNova/scaiflutter/internal/session"
	"github.com/AllienNova/scaiflutter/internal/telephony"
)

// Sessions is the slice of the analysis service the coordinator drives. Both
// telephony events and explicit API calls go through the same start/stop
// operations, so a call ended by a device broadcast archives the same
// finalized summary as one stopped over HTTP.
type Sessions interface {
	StartSession(ctx context.Context, callID string, phoneNumber string, direction telephony.Direction) (session.Snapshot, error)
	StopSession(ctx context.Context, callID string) (session.Snapshot, error)
}

// Coordinator binds classifier events to session operations: start on
// Incoming/Started, stop on Ended. It is the only writer driven by the
// telephony stream; chunk ingestion runs concurrently through the analysis
// service and serializes with it on the per-session lock.
type Coordinator struct {
	sessions Sessions
	events   <-chan telephony.CallEvent
	onEvent  func(kind telephony.EventKind)
}

func New(sessions Sessions, events <-chan telephony.CallEvent) *Coordinator {
	return &Coordinator{sessions: sessions, events: events}
}

// SetEventHook registers a callback invoked for every handled event, used
// for metrics.
func (c *Coordinator) SetEventHook(hook func(kind telephony.EventKind)) {
	c.onEvent = hook
}

// Run consumes lifecycle events until ctx is done or the event channel is
// closed.
func (c *Coordinator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.events:
			if !ok {
				return
			}
			c.Handle(ctx, ev)
		}
	}
}

// Handle applies a single lifecycle event.
func (c *Coordinator) Handle(ctx context.Context, ev telephony.CallEvent) {
	switch ev.Kind {
	case telephony.EventIncoming, telephony.EventStarted:
		_, err := c.sessions.StartSession(ctx, ev.CallID, ev.PhoneNumber, ev.Direction)
		switch {
		case errors.Is(err, session.ErrClosed):
			// A closed call id must not be resurrected; the device is
			// re-broadcasting state for a finished call.
			log.Printf("lifecycle: ignoring %s for closed call %s", ev.Kind, ev.CallID)
		case err != nil:
			log.Printf("lifecycle: open call %s failed: %v", ev.CallID, err)
		}
	case telephony.EventEnded:
		_, err := c.sessions.StopSession(ctx, ev.CallID)
		if errors.Is(err, session.ErrNotFound) {
			// Spurious device broadcast for a call that never opened; not an
			// error.
			return
		}
		if err != nil {
			log.Printf("lifecycle: close call %s failed: %v", ev.CallID, err)
			return
		}
		log.Printf("lifecycle: closed session for call %s", ev.CallID)
	}

	if c.onEvent != nil {
		c.onEvent(ev.Kind)
	}
}
