package fleet

import (
	"log/slog"
	"sync"
	"time"
)

// Event streams a subscriber can attach to.
const (
	StreamWorld     = "world_events"
	StreamFaction   = "faction_updates"
	StreamTerritory = "territory_updates"
	StreamQuest     = "quest_updates"
)

// eventRingSize bounds the retained world-event history.
const eventRingSize = 50

// Event is one emitted world occurrence. Every event carries its stream, a
// type tag, and an emission timestamp.
type Event struct {
	Stream string    `json:"stream"`
	Type   string    `json:"type"`
	Detail string    `json:"detail"`
	At     time.Time `json:"at"`
}

// Hub fans events out to stream subscribers. Delivery is best-effort: a
// subscriber that cannot keep up loses events (dropped with a warning), but
// the events one subscriber does receive arrive in emission order.
type Hub struct {
	logger *slog.Logger

	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan Event
}

// NewHub builds an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		subs:   make(map[string]map[int]chan Event),
	}
}

// Subscribe attaches a buffered channel to one stream. The returned cancel
// func detaches and closes the channel; calling it twice is safe.
func (h *Hub) Subscribe(stream string, buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.subs[stream] == nil {
		h.subs[stream] = make(map[int]chan Event)
	}
	h.subs[stream][id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[stream], id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers e to every subscriber of its stream without blocking.
func (h *Hub) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs[e.Stream] {
		select {
		case ch <- e:
		default:
			h.logger.Warn("event dropped: subscriber buffer full",
				slog.String("stream", e.Stream),
				slog.String("type", e.Type),
				slog.Int("subscriber", id))
		}
	}
}

// SubscriberCount reports how many subscribers one stream has.
func (h *Hub) SubscriberCount(stream string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[stream])
}

// eventRing retains the newest events in emission order, bounded to size.
// Not safe for concurrent use; the coordinator holds its own lock.
type eventRing struct {
	size   int
	events []Event
}

func newEventRing(size int) *eventRing {
	return &eventRing{size: size}
}

// add appends an event, evicting the oldest when the ring is full. Eviction
// copies to a fresh backing array so the dropped head can be collected.
func (r *eventRing) add(e Event) {
	r.events = append(r.events, e)
	if len(r.events) > r.size {
		trimmed := make([]Event, r.size)
		copy(trimmed, r.events[len(r.events)-r.size:])
		r.events = trimmed
	}
}

// last returns up to limit newest events, oldest first. limit <= 0 returns
// everything retained.
func (r *eventRing) last(limit int) []Event {
	n := len(r.events)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Event, limit)
	copy(out, r.events[n-limit:])
	return out
}
