// Package admin exposes the transport server's connection table over a
// small JSON HTTP API, for operational visibility and the reludpctl CLI.
package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/corvidlabs/reludp/internal/transport"
)

// ErrConnectionNotFound is returned (as a 404) when the requested peer
// address has no known connection.
var ErrConnectionNotFound = errors.New("connection not found")

// Lister is the subset of *transport.Server the admin API depends on.
type Lister interface {
	Conns() []*transport.Conn
}

// Handler serves the admin JSON API. Build one with NewHandler and mount
// it directly, or wrap http.ListenAndServe around it.
type Handler struct {
	mux    *http.ServeMux
	server Lister
	logger *slog.Logger
}

// NewHandler builds a Handler backed by server.
func NewHandler(server Lister, logger *slog.Logger) *Handler {
	h := &Handler{
		server: server,
		logger: logger.With(slog.String("component", "admin")),
	}

	h.mux = http.NewServeMux()
	h.mux.HandleFunc("GET /healthz", h.handleHealthz)
	h.mux.HandleFunc("GET /v1/connections", h.handleList)
	h.mux.HandleFunc("GET /v1/connections/{addr}", h.handleShow)

	return h
}

// ServeHTTP satisfies http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

func (h *Handler) handleList(w http.ResponseWriter, _ *http.Request) {
	conns := h.server.Conns()
	views := make([]connectionView, 0, len(conns))
	for _, c := range conns {
		views = append(views, connectionToView(c))
	}

	h.writeJSON(w, http.StatusOK, views)
}

func (h *Handler) handleShow(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("addr")

	addr, err := netip.ParseAddrPort(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("parse address %q: %w", raw, err))
		return
	}

	for _, c := range h.server.Conns() {
		if c.Addr() == addr {
			h.writeJSON(w, http.StatusOK, connectionToView(c))
			return
		}
	}

	h.writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", ErrConnectionNotFound, raw))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("encode response", slog.Any("error", err))
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// connectionView is the JSON shape returned for a connection.
type connectionView struct {
	Peer      string `json:"peer"`
	State     string `json:"state"`
	SessionID uint16 `json:"session_id"`
}

func connectionToView(c *transport.Conn) connectionView {
	return connectionView{
		Peer:      c.Addr().String(),
		State:     c.State().String(),
		SessionID: c.SessionID(),
	}
}
