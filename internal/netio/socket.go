package netio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/corvidlabs/reludp/internal/wire"
)

// Demuxer receives datagrams read off the Socket and routes them onto
// connections. Implemented by *transport.Server. Kept as a narrow
// interface, not a direct dependency on the transport package, so netio
// has no import-cycle risk with it.
type Demuxer interface {
	HandleDatagram(payload []byte, addr netip.AddrPort)
}

// ErrSocketClosed is returned by SendTo once the Socket has been closed.
var ErrSocketClosed = errors.New("socket closed")

// Socket is the one UDP socket the whole server reads and writes through:
// every Conn's outbound packets share it, and inbound datagrams for every
// peer arrive on it.
type Socket struct {
	conn   *net.UDPConn
	logger *slog.Logger
}

// NewSocket binds a UDP socket at addr.
func NewSocket(addr netip.AddrPort, logger *slog.Logger) (*Socket, error) {
	conn, err := dialSocket(addr)
	if err != nil {
		return nil, fmt.Errorf("bind udp socket %s: %w", addr, err)
	}

	return &Socket{
		conn:   conn,
		logger: logger.With(slog.String("component", "netio.socket"), slog.String("local", addr.String())),
	}, nil
}

// LocalAddr returns the address the socket is bound to, useful when addr
// was passed to NewSocket with an ephemeral port.
func (s *Socket) LocalAddr() netip.AddrPort {
	return s.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// SendTo writes buf to addr. It satisfies transport.Sender.
func (s *Socket) SendTo(_ context.Context, addr netip.AddrPort, buf []byte) error {
	if _, err := s.conn.WriteToUDPAddrPort(buf, addr); err != nil {
		return fmt.Errorf("send to %s: %w", addr, err)
	}

	return nil
}

// Run reads datagrams until ctx is canceled, handing each to demux. Read
// errors other than a closed-socket-during-shutdown are logged and do not
// stop the loop.
func (s *Socket) Run(ctx context.Context, demux Demuxer) error {
	// Unblock a pending read as soon as ctx is canceled.
	stop := context.AfterFunc(ctx, func() { _ = s.conn.SetReadDeadline(time.Now()) })
	defer stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.recvOne(demux); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("recv error", slog.Any("error", err))
		}
	}
}

func (s *Socket) recvOne(demux Demuxer) error {
	bufp, ok := wire.PacketPool.Get().(*[]byte)
	if !ok {
		return errors.New("packet pool returned unexpected type")
	}
	defer wire.PacketPool.Put(bufp)

	n, addr, err := s.conn.ReadFromUDPAddrPort(*bufp)
	if err != nil {
		return fmt.Errorf("read udp: %w", err)
	}

	demux.HandleDatagram((*bufp)[:n], addr)

	return nil
}

// Close closes the underlying socket, unblocking any in-flight Run.
func (s *Socket) Close() error {
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("close socket: %w", err)
	}

	return nil
}
