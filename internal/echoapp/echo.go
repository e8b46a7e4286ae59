// Package echoapp is the reference application handler wired into reludpd:
// it reflects every payload it receives back to the peer that sent it.
package echoapp

import (
	"context"
	"log/slog"

	"github.com/corvidlabs/reludp/internal/transport"
)

// Handler implements transport.Handler by echoing every received DATA
// payload back to the same connection.
type Handler struct {
	conn   *transport.Conn
	logger *slog.Logger
}

// NewFactory returns a transport.HandlerFactory that builds an echo Handler
// for each new connection.
func NewFactory(logger *slog.Logger) transport.HandlerFactory {
	return func(c *transport.Conn) transport.Handler {
		return &Handler{
			conn:   c,
			logger: logger.With(slog.String("component", "echoapp")),
		}
	}
}

// OnConnected logs the new session.
func (h *Handler) OnConnected(c *transport.Conn) {
	h.logger.Info("peer connected", slog.String("peer", c.Addr().String()),
		slog.Int("session_id", int(c.SessionID())))
}

// OnDisconnected logs the torn-down session.
func (h *Handler) OnDisconnected(c *transport.Conn) {
	h.logger.Info("peer disconnected", slog.String("peer", c.Addr().String()))
}

// OnPacket echoes payload back to the peer on its own goroutine, since
// Conn.Send blocks until acknowledged and must not run on the receive
// goroutine that called OnPacket.
func (h *Handler) OnPacket(c *transport.Conn, payload []byte) {
	echoed := make([]byte, len(payload))
	copy(echoed, payload)

	go func() {
		if err := c.Send(context.Background(), [][]byte{echoed}); err != nil {
			h.logger.Warn("echo send failed", slog.String("peer", c.Addr().String()),
				slog.Any("error", err))
		}
	}()
}
