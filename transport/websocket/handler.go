package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wricardo/mcp-training/fieldsync/game/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins; the protocol carries no credentials
		return true
	},
}

// Acceptor runs accepted connections. *service.Server implements it.
type Acceptor interface {
	Running() bool
	Serve(ctx context.Context, conn service.Conn) error
}

// Handler upgrades HTTP requests and hands the connection to an Acceptor
type Handler struct {
	acceptor Acceptor
	logger   *slog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(acceptor Acceptor, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{acceptor: acceptor, logger: logger}
}

// ServeHTTP handles one WebSocket connection for its whole lifetime
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.acceptor.Running() {
		http.Error(w, "server is not running", http.StatusServiceUnavailable)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := NewConn(uuid.NewString(), ws)
	h.logger.Debug("websocket accepted", "conn", conn.ID(), "remote", r.RemoteAddr)

	err = h.acceptor.Serve(r.Context(), conn)
	switch {
	case err == nil:
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure):
		h.logger.Warn("websocket closed unexpectedly", "conn", conn.ID(), "error", err)
	case errors.Is(err, service.ErrHandshake), errors.Is(err, service.ErrNotRunning):
		// already reported by the server
	default:
		h.logger.Debug("websocket ended", "conn", conn.ID(), "error", err)
	}
}
