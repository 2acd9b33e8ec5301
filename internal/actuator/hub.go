package actuator

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/facade"
)

// Hub holds the latest applied action. The trainer is the single writer;
// websocket clients and HTTP handlers read it concurrently.
type Hub struct {
	mu        sync.RWMutex
	latest    facade.Action
	updatedAt time.Time
	has       bool
	subs      map[uuid.UUID]chan Adjustments
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]chan Adjustments)}
}

// Publish stores a as the latest action and offers it to every subscriber.
// Slow subscribers miss intermediate actions.
func (h *Hub) Publish(a facade.Action) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = a
	h.updatedAt = time.Now().UTC()
	h.has = true

	adj := FromAction(a)
	for _, ch := range h.subs {
		select {
		case ch <- adj:
		default:
		}
	}
}

// Latest returns the latest action and whether one was ever published.
func (h *Hub) Latest() (facade.Action, time.Time, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest, h.updatedAt, h.has
}

// Subscribe registers a channel that receives published actions.
func (h *Hub) Subscribe(id uuid.UUID) <-chan Adjustments {
	ch := make(chan Adjustments, 1)
	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber.
func (h *Hub) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// Subscribers returns the number of registered subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
