// Package transport implements a reliable, session-oriented datagram
// transport over UDP: per-peer connections with a handshake, cumulative
// acknowledgment, retransmission, PING-based liveness, and a server-side
// demultiplexer keyed by remote address.
package transport
