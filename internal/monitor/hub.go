// Package monitor implements an optional local HTTP server exposing /stats,
// Prometheus /metrics, and a websocket that relays progress events published
// through Server.Broadcast to any connected client. The index and analyze
// commands do not publish to it; they report progress on their own output.
package monitor

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/coder/websocket"

	"github.com/waveprint/mixid/internal/logger"
)

// Hub fans indexing/analysis progress events out to connected websocket
// clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]struct{}
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]struct{})}
}

// Register adds a connected client.
func (h *Hub) Register(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// Unregister removes a client, e.g. on disconnect.
func (h *Hub) Unregister(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// Broadcast JSON-encodes event and writes it to every connected client,
// dropping (and unregistering) clients that fail to receive it.
func (h *Hub) Broadcast(ctx context.Context, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Log.Warn("monitor: failed to marshal progress event")
		return
	}

	h.mu.RLock()
	targets := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.Write(ctx, websocket.MessageText, payload); err != nil {
			h.Unregister(c)
		}
	}
}

// Close closes every connected client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.Close(websocket.StatusNormalClosure, "monitor shutting down")
	}
	h.clients = make(map[*websocket.Conn]struct{})
}
