package websockets

import (
	"log/slog"
	"net/http"

	"github.com/chris/trustline/pkg/websockets"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Handler upgrades HTTP requests to websocket connections and registers them for credit updates.
type Handler struct {
	connManager websockets.ConnectionManager
	upgrader    websocket.Upgrader
}

// NewHandler creates a new Handler.
func NewHandler(connManager websockets.ConnectionManager) *Handler {
	return &Handler{
		connManager: connManager,
		upgrader: websocket.Upgrader{
			// Clients are vendor dashboards served from other origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles one websocket client until it disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()

	connectionID := uuid.New().String()
	slog.Info("Client connected", "connectionId", connectionID)

	ctx := r.Context()
	if err := h.connManager.AddConnection(ctx, connectionID, conn); err != nil {
		slog.Error("failed to save connection ID", "error", err)
		return
	}

	defer func() {
		slog.Info("Client disconnected", "connectionId", connectionID)
		if err := h.connManager.RemoveConnection(ctx, connectionID); err != nil {
			slog.Error("failed to delete connection ID", "error", err)
		}
	}()

	// Clients never send anything; reading only detects the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("unexpected close error", "error", err)
			}
			break
		}
	}
}
