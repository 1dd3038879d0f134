package failover

import (
	"sync"
	"time"
)

// EventType classifies orchestrator notifications.
type EventType string

const (
	// EventSwitched is emitted when the reported active provider changed.
	EventSwitched EventType = "switched"

	// EventUnhealthy is emitted when a provider crosses the error threshold.
	EventUnhealthy EventType = "unhealthy"

	// EventRecovered is emitted when an unhealthy provider succeeds again.
	EventRecovered EventType = "recovered"
)

// Event is a single orchestrator state transition notification.
type Event struct {
	Type EventType `json:"type"`
	Time time.Time `json:"time"`

	// Provider is set on unhealthy and recovered events.
	Provider string `json:"provider,omitempty"`

	// From and To are set on switched events.
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	// Reason explains a switch ("selection" or "failover").
	Reason string `json:"reason,omitempty"`

	// Err carries the triggering error text on unhealthy events.
	Err string `json:"error,omitempty"`
}

// Hub fans orchestrator events out to subscribers and keeps a bounded history
// ring. Delivery is best-effort: a subscriber whose channel buffer is full
// misses the event rather than blocking the originating state transition.
//
// Hub is safe for concurrent use.
type Hub struct {
	mu      sync.Mutex
	history []Event
	max     int
	nextID  int
	subs    map[int]chan Event
}

// newHub creates a Hub whose history holds at most max events.
func newHub(max int) *Hub {
	return &Hub{
		max:  max,
		subs: make(map[int]chan Event),
	}
}

// publish appends ev to the history (evicting the oldest entry when full) and
// offers it to every subscriber without blocking.
func (h *Hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.history = append(h.history, ev)
	if len(h.history) > h.max {
		h.history = h.history[len(h.history)-h.max:]
	}

	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber; drop rather than stall the transition.
		}
	}
}

// Subscribe registers a listener with the given channel buffer and returns the
// event channel plus a cancel function. Cancelling closes the channel and
// unregisters the listener; it is safe to call more than once.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// History returns a copy of the retained events, oldest first.
func (h *Hub) History() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Event, len(h.history))
	copy(out, h.history)
	return out
}
