package transport

// Handler receives the upcalls for a single Conn's lifetime. The Server
// creates one Handler per new Conn via a HandlerFactory and holds it by
// exclusive ownership until the connection is reaped.
//
// OnConnected and OnPacket are invoked synchronously on the Server's
// receive goroutine. OnDisconnected runs on whichever goroutine tears the
// connection down: the receive goroutine, the goroutine running Server.Run
// (quiet timeout), a goroutine blocked in Conn.Send (send timeout), or the
// caller of Server.Shutdown; it is not serialized with the other upcalls.
// A Handler that blocks on the receive goroutine blocks the entire
// demultiplexer — implementations that need to do real work should hand it
// off to their own goroutine.
type Handler interface {
	// OnConnected is called once, after the handshake completes.
	OnConnected(c *Conn)

	// OnDisconnected is called once, when the connection transitions to
	// Dead, whether by RST, timeout, or a protocol violation.
	OnDisconnected(c *Conn)

	// OnPacket is called for each in-order DATA payload. Out-of-order or
	// duplicate DATA packets are acknowledged but never reach OnPacket.
	OnPacket(c *Conn, payload []byte)
}

// HandlerFactory builds the Handler for a newly accepted Conn. The factory
// runs on the Server's receive goroutine, before the handshake's SYNACK is
// sent, so it must not block.
type HandlerFactory func(c *Conn) Handler
