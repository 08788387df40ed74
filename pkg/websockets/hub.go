package websockets

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Hub is an in-process Publisher that fans messages out to locally connected clients.
type Hub struct {
	mu    sync.Mutex
	conns map[string]Conn
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]Conn)}
}

// Make sure we conform to the interfaces
var (
	_ Publisher         = (*Hub)(nil)
	_ ConnectionManager = (*Hub)(nil)
)

// AddConnection registers a client connection under connectionID.
func (h *Hub) AddConnection(_ context.Context, connectionID string, conn Conn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[connectionID]; ok {
		return fmt.Errorf("connection %s already registered", connectionID)
	}
	h.conns[connectionID] = conn
	return nil
}

// RemoveConnection forgets a client connection. Removing an unknown id is not an error.
func (h *Hub) RemoveConnection(_ context.Context, connectionID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, connectionID)
	return nil
}

// Len returns the number of registered connections.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Publish sends a message to all connected clients. Connections that fail to accept
// the write are closed and dropped.
func (h *Hub) Publish(ctx context.Context, message Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, conn := range h.conns {
		if err := conn.WriteJSON(message); err != nil {
			slog.Info("stale connection found, deleting", "connectionId", id, "error", err)
			if cerr := conn.Close(); cerr != nil {
				slog.Error("failed to close stale connection", "connectionId", id, "error", cerr)
			}
			delete(h.conns, id)
		}
	}
	return nil
}
