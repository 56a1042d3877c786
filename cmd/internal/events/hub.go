package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Hub fans events out to every registered client. Broadcast never blocks:
// a client whose queue is full loses the event and the drop counter ticks.
type Hub struct {
	log *slog.Logger

	mu      sync.RWMutex
	clients map[string]*Client

	dropped atomic.Uint64
}

// NewHub constructs a Hub instance.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[string]*Client),
	}
}

// Register adds a client to the broadcast set.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	n := len(h.clients)
	h.mu.Unlock()

	h.log.Debug("events.client.register", "client_id", c.ID, "clients", n)
}

// Unregister removes a client. Safe to call for clients never registered.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	delete(h.clients, id)
	n := len(h.clients)
	h.mu.Unlock()

	h.log.Debug("events.client.unregister", "client_id", id, "clients", n)
}

// Broadcast delivers env to every client that has queue space right now.
func (h *Hub) Broadcast(env Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		select {
		case <-c.Done():
		case c.Send <- env:
		default:
			h.dropped.Add(1)
			h.log.Debug("events.broadcast.drop", "client_id", c.ID, "type", env.Type)
		}
	}
}

// Clients reports the number of registered subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped reports the total number of events lost to backpressure.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}
