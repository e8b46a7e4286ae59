//go:build linux

package netio

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"syscall"

	"golang.org/x/sys/unix"
)

// dialSocket binds the shared UDP socket at addr with SO_REUSEADDR set, so
// a restarting daemon can rebind its listen address while a prior process's
// socket is still draining in TIME_WAIT-adjacent states.
func dialSocket(addr netip.AddrPort) (*net.UDPConn, error) {
	network := "udp4"
	if addr.Addr().Is6() && !addr.Addr().Is4In6() {
		network = "udp6"
	}

	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			return setSocketOpts(c)
		},
	}

	pc, err := lc.ListenPacket(context.Background(), network, addr.String())
	if err != nil {
		return nil, fmt.Errorf("listen udp %s: %w", addr, err)
	}

	conn, ok := pc.(*net.UDPConn)
	if !ok {
		closeErr := pc.Close()
		return nil, fmt.Errorf("listen udp %s: %w: %w", addr, ErrUnexpectedConnType, closeErr)
	}

	return conn, nil
}

func setSocketOpts(c syscall.RawConn) error {
	var sockErr error

	err := c.Control(func(fd uintptr) {
		//nolint:gosec // G115: fd uintptr->int is safe; kernel FDs are always small positive integers.
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return fmt.Errorf("raw conn control: %w", err)
	}

	if sockErr != nil {
		return fmt.Errorf("set SO_REUSEADDR: %w", sockErr)
	}

	return nil
}
