package notify

import (
	"sync"

	"github.com/AllienNova/scaiflutter/internal/session"
)

// Hub fans session snapshots out to subscribers. Delivery is at-least-once
// and best-effort per subscriber: a slow consumer's queue fills and newer
// updates for it are dropped rather than blocking the publisher, so
// subscribers must reconcile on the snapshot Version, not on arrival order.
type Hub struct {
	mu      sync.Mutex
	subs    map[int]chan session.Snapshot
	nextID  int
	buffer  int
	dropped uint64
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		subs:   make(map[int]chan session.Snapshot),
		buffer: buffer,
	}
}

// Subscribe registers a consumer. The returned cancel func must be called to
// release the subscription; afterwards the channel is closed.
func (h *Hub) Subscribe() (<-chan session.Snapshot, func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	ch := make(chan session.Snapshot, h.buffer)
	h.subs[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers a snapshot to every subscriber without blocking.
func (h *Hub) Publish(snap session.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- snap:
		default:
			h.dropped++
		}
	}
}

// SubscriberCount reports the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped reports how many updates were discarded on saturated queues.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}
