package netio

import "errors"

// ErrUnexpectedConnType is returned if net.ListenConfig.ListenPacket hands
// back a PacketConn that is not a *net.UDPConn, which should not happen for
// a "udp4"/"udp6"/"udp" network argument.
var ErrUnexpectedConnType = errors.New("unexpected packet conn type")
