package transport

import (
	"context"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/corvidlabs/reludp/internal/wire"
)

// ServerOption configures optional Server parameters at construction.
type ServerOption func(*Server)

// WithServerTiming overrides the default protocol timing constants applied
// to every connection the Server creates, and the Server's own reap tick.
func WithServerTiming(t Timing) ServerOption {
	return func(s *Server) { s.timing = t }
}

// WithServerMetrics attaches a Metrics sink.
func WithServerMetrics(m Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// Server demultiplexes inbound datagrams onto per-peer Conns keyed by
// remote address, creating a new Conn for any address it has not seen (or
// whose prior connection has since been reaped), and periodically
// evaluates every connection's quiet timeout.
type Server struct {
	sender     Sender
	newHandler HandlerFactory
	logger     *slog.Logger
	timing     Timing
	metrics    Metrics

	mu    sync.RWMutex
	conns map[netip.AddrPort]*Conn
}

// NewServer builds a Server. sender is the shared outbound socket every
// Conn writes through; newHandler builds the application's Handler for
// each newly accepted connection.
func NewServer(sender Sender, newHandler HandlerFactory, logger *slog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		sender:     sender,
		newHandler: newHandler,
		logger:     logger.With(slog.String("component", "transport.server")),
		timing:     DefaultTiming(),
		metrics:    noopMetrics{},
		conns:      make(map[netip.AddrPort]*Conn),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// HandleDatagram demultiplexes one inbound datagram onto its connection,
// creating a new connection if none exists yet (or the prior one at this
// address has been reaped). Oversized datagrams are dropped without
// reaching any connection. Must only be called from a single goroutine —
// typically the socket read loop.
func (s *Server) HandleDatagram(payload []byte, addr netip.AddrPort) {
	if len(payload) > wire.MaxPacketSize {
		s.logger.Warn("dropping oversized datagram", slog.Int("len", len(payload)),
			slog.String("peer", addr.String()))
		s.metrics.IncPacketsDropped()
		return
	}

	s.metrics.IncPacketsReceived()

	h, body, err := wire.Unmarshal(payload)
	if err != nil {
		s.logger.Warn("dropping malformed datagram", slog.Any("error", err),
			slog.String("peer", addr.String()))
		return
	}

	conn := s.lookupOrCreate(addr)
	conn.ProcessPacket(h, body)
}

func (s *Server) lookupOrCreate(addr netip.AddrPort) *Conn {
	s.mu.RLock()
	conn, ok := s.conns[addr]
	s.mu.RUnlock()
	if ok && !conn.ToDelete() {
		return conn
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check under the write lock: another goroutine (there is only
	// ever one receive goroutine in practice, but this keeps the method
	// safe to call from more than one) may have already replaced the
	// stale entry.
	if conn, ok := s.conns[addr]; ok && !conn.ToDelete() {
		return conn
	}

	conn = newConn(addr, s.sender, s.logger, WithTiming(s.timing), WithMetrics(s.metrics))
	conn.handler = s.newHandler(conn)
	s.conns[addr] = conn
	s.logger.Info("new connection", slog.String("peer", addr.String()))

	return conn
}

// Conns returns a snapshot of every connection the Server currently knows
// about, including ones pending reap.
func (s *Server) Conns() []*Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c)
	}

	return out
}

// Run drives the periodic tick: every Timing.ServerTick, it evaluates each
// connection's quiet timeout and reaps connections marked ToDelete. Run
// blocks until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.timing.ServerTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.tick(now)
		}
	}
}

func (s *Server) tick(now time.Time) {
	s.mu.RLock()
	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	active := 0
	for _, c := range conns {
		c.Tick(now)
		if c.State() == StateEstablished {
			active++
		}
	}
	s.metrics.SetActiveConnections(active)

	s.reap()
}

func (s *Server) reap() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for addr, c := range s.conns {
		if c.ToDelete() {
			delete(s.conns, addr)
		}
	}
}

// Shutdown sends RST to every connection still in the ESTABLISHED state
// and reaps everything, for a clean process exit.
func (s *Server) Shutdown(_ context.Context) error {
	s.mu.Lock()
	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = make(map[netip.AddrPort]*Conn)
	s.mu.Unlock()

	for _, c := range conns {
		if c.State() == StateEstablished {
			c.markDisconnectedReason("shutdown", true)
		}
	}

	s.logger.Info("server shut down", slog.Int("connections_closed", len(conns)))

	return nil
}
