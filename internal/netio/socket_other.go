//go:build !linux

package netio

import (
	"fmt"
	"net"
	"net/netip"
)

// dialSocket binds the shared UDP socket at addr without the Linux-specific
// socket tuning in socket_linux.go.
func dialSocket(addr netip.AddrPort) (*net.UDPConn, error) {
	conn, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(addr))
	if err != nil {
		return nil, fmt.Errorf("listen udp %s: %w", addr, err)
	}

	return conn, nil
}
