// Package websocket relays committed domain events to connected dashboard
// clients. The hub is the process's event sink; delivery is fire-and-forget
// and never blocks a business operation.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/tillgrange/choreboard/internal/domain"
)

// Hub maintains the set of active WebSocket clients and fans events out to
// them. It implements domain.Sink.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its event channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.events)
	}
	h.mu.Unlock()
}

// Publish broadcasts a domain event to all connected clients. A client whose
// buffer is full misses the event rather than stalling the publisher.
func (h *Hub) Publish(e domain.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		h.logger.Error("marshal event", "type", string(e.Type), "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.events <- data:
		default:
			// Client buffer full: drop the event rather than block.
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
