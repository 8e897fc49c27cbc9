package http

import (
	"log/slog"
	"net/http"
	"strings"

	gorillaws "github.com/gorilla/websocket"

	apierrors "tagboard/internal/errors"
	"tagboard/internal/websocket"
)

// WebSocketHandler upgrades dashboard connections and hands them to the hub.
type WebSocketHandler struct {
	hub          *websocket.Hub
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	upgrader     gorillaws.Upgrader
}

// NewWebSocketHandler creates the websocket upgrade handler. allowedOrigins
// restricts cross-origin upgrades; an empty list allows same-origin only.
func NewWebSocketHandler(hub *websocket.Hub, allowedOrigins []string, readBuf, writeBuf int, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:          hub,
		logger:       logger.With(slog.String("component", "ws_handler")),
		errorHandler: errorHandler,
	}

	h.upgrader = gorillaws.Upgrader{
		ReadBufferSize:  readBuf,
		WriteBufferSize: writeBuf,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if strings.HasPrefix(origin, "http://"+r.Host) || strings.HasPrefix(origin, "https://"+r.Host) {
				return true
			}
			for _, allowed := range allowedOrigins {
				if allowed == "*" || strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}

	return h
}

// HandleWS handles GET /ws
func (h *WebSocketHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error to the client.
		h.logger.ErrorContext(r.Context(), "websocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("remote_addr", r.RemoteAddr),
		)
		return
	}

	websocket.ServeWS(h.hub, conn, h.logger)
}
