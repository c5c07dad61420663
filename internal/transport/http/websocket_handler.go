package http

import (
	"log/slog"
	"net/http"

	"calqtrade/internal/websocket"
)

// WebSocketHandler upgrades /ws requests and hands them to the hub.
type WebSocketHandler struct {
	hub    *websocket.Hub
	logger *slog.Logger
}

// NewWebSocketHandler creates a websocket handler.
func NewWebSocketHandler(hub *websocket.Hub, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		logger: logger.With(slog.String("component", "websocket_handler")),
	}
}

// ServeHTTP handles GET /ws.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := websocket.ServeWS(h.hub, w, r); err != nil {
		// The upgrader has already written its own error response.
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()))
	}
}
