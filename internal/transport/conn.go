package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corvidlabs/reludp/internal/wire"
)

// State is a Conn's lifecycle state.
type State uint32

const (
	// StateUnestablished is the initial state: no session id has been
	// assigned, the handshake has not completed.
	StateUnestablished State = iota

	// StateEstablished is the steady state after a successful handshake.
	StateEstablished

	// StateDead is terminal: the connection has been reset, timed out, or
	// otherwise torn down and is only waiting to be reaped.
	StateDead
)

// String renders the state name for logging.
func (s State) String() string {
	switch s {
	case StateUnestablished:
		return "UNESTABLISHED"
	case StateEstablished:
		return "ESTABLISHED"
	case StateDead:
		return "DEAD"
	default:
		return fmt.Sprintf("State(%d)", uint32(s))
	}
}

// Sender abstracts the shared outbound socket a Conn writes through. The
// Server supplies one implementation backed by a single UDP socket for all
// of its connections.
type Sender interface {
	SendTo(ctx context.Context, addr netip.AddrPort, buf []byte) error
}

// Sentinel errors returned by Conn.Send.
var (
	// ErrConnectionLost indicates the connection was not established, or
	// was torn down, before or during a Send call.
	ErrConnectionLost = errors.New("connection lost")

	// ErrSendTimeout indicates no acknowledgment arrived within
	// Timing.SendTimeout; the connection is torn down as a side effect.
	ErrSendTimeout = errors.New("send timed out waiting for ack")
)

// ConnOption configures optional Conn parameters at construction.
type ConnOption func(*Conn)

// WithTiming overrides the default protocol timing constants.
func WithTiming(t Timing) ConnOption {
	return func(c *Conn) { c.timing = t }
}

// WithMetrics attaches a Metrics sink.
func WithMetrics(m Metrics) ConnOption {
	return func(c *Conn) { c.metrics = m }
}

// Conn is one peer's reliable session. The zero value is not usable; build
// one with newConn.
//
// Concurrency model: ProcessPacket is only ever called from the Server's
// single receive goroutine and is non-blocking. Send may be called
// concurrently from any number of goroutines and blocks the calling
// goroutine until every packet it submitted is acknowledged, the
// connection is lost, or Timing.SendTimeout elapses. state and sessionID
// are read without holding sendMu (by Send and by external readers via
// State/SessionID) and are written from the receive goroutine and from
// whichever goroutine tears the connection down (Tick, a timed-out Send,
// Server.Shutdown); atomic loads and stores keep those accesses race-free.
type Conn struct {
	addr    netip.AddrPort
	sender  Sender
	logger  *slog.Logger
	timing  Timing
	handler Handler
	metrics Metrics

	state     atomic.Uint32
	sessionID atomic.Uint32
	toDelete  atomic.Bool

	// sendMu guards lastSendID, lastSendAcked, and disconnectionEvent,
	// and is the Locker backing sendCond.
	sendMu           sync.Mutex
	sendCond         *sync.Cond
	lastSendID       uint16
	lastSendAcked    *uint16
	disconnectionEvent bool

	// lastReceivedID and lastReceivedTime are only touched from the
	// receive goroutine (ProcessPacket, Tick) and need no synchronization.
	lastReceivedID   uint16
	lastReceivedTime time.Time
}

func newConn(addr netip.AddrPort, sender Sender, logger *slog.Logger, opts ...ConnOption) *Conn {
	c := &Conn{
		addr:    addr,
		sender:  sender,
		timing:  DefaultTiming(),
		logger:  logger.With(slog.String("peer", addr.String())),
		metrics: noopMetrics{},
	}
	c.sendCond = sync.NewCond(&c.sendMu)

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Addr returns the peer's remote address.
func (c *Conn) Addr() netip.AddrPort { return c.addr }

// State returns the connection's current lifecycle state.
func (c *Conn) State() State { return State(c.state.Load()) }

// SessionID returns the negotiated session id, or 0 if not yet established.
func (c *Conn) SessionID() uint16 { return uint16(c.sessionID.Load()) }

// ToDelete reports whether the Server may reap this connection.
func (c *Conn) ToDelete() bool { return c.toDelete.Load() }

// ProcessPacket handles one inbound, already-demultiplexed datagram. It
// must only be called from the Server's receive goroutine.
func (c *Conn) ProcessPacket(h wire.Header, payload []byte) {
	c.logger.Debug("received packet", slog.String("flags", h.Flags.String()),
		slog.Int("id", int(h.PacketID)), slog.Int("payload_len", len(payload)))

	if h.Flags&wire.FlagSYN != 0 {
		c.handleSYN(h)
		return
	}

	if c.State() != StateEstablished {
		c.logger.Warn("packet before handshake, resetting")
		c.sendRST()
		c.toDelete.Store(true)
		return
	}

	if h.Flags&wire.FlagRST != 0 {
		c.logger.Info("peer reset connection")
		c.markDisconnectedReason("rst", false)
		return
	}

	if h.SessionID != c.SessionID() {
		c.logger.Warn("session id mismatch", slog.Int("got", int(h.SessionID)),
			slog.Int("want", int(c.SessionID())))
		c.markDisconnected(true)
		return
	}

	switch {
	case h.Flags&wire.FlagPing != 0:
		c.handlePing()
	case h.Flags&wire.FlagData != 0:
		c.handleData(h, payload)
	case h.Flags&wire.FlagAck != 0:
		c.handleAck(h)
	}
}

func (c *Conn) handleSYN(h wire.Header) {
	if c.State() == StateEstablished {
		c.logger.Info("connection already established, resetting")
		c.markDisconnectedReason("resync", false)
		return
	}

	sessID, err := wire.RandomSessionID()
	if err != nil {
		c.logger.Error("allocate session id", slog.Any("error", err))
		return
	}

	c.sessionID.Store(uint32(sessID))
	c.lastReceivedID = h.PacketID
	c.lastReceivedTime = time.Now()

	c.sendMu.Lock()
	c.lastSendAcked = nil
	c.sendMu.Unlock()

	sendID, err := c.nextSendID(true)
	if err != nil {
		c.logger.Error("allocate initial send id", slog.Any("error", err))
		return
	}

	c.logger.Info("connection established", slog.Int("session_id", int(sessID)))
	c.state.Store(uint32(StateEstablished))
	c.sendPacket(sessID, sendID, wire.FlagSYNACK, nil)
	c.metrics.IncHandshakes()

	if c.handler != nil {
		c.handler.OnConnected(c)
	}
}

func (c *Conn) handlePing() {
	c.lastReceivedTime = time.Now()
	c.sendPacket(c.SessionID(), 0, wire.FlagPing, nil)
}

func (c *Conn) handleData(h wire.Header, payload []byte) {
	if wire.ForwardDistance(h.PacketID, c.lastReceivedID) == 1 {
		c.lastReceivedID = h.PacketID
		if len(payload) > 0 && c.handler != nil {
			c.handler.OnPacket(c, payload)
		}
	} else {
		c.logger.Debug("skipping out-of-order/duplicate data packet",
			slog.Int("got", int(h.PacketID)), slog.Int("last", int(c.lastReceivedID)))
	}

	c.lastReceivedTime = time.Now()
	c.sendAck()
}

func (c *Conn) handleAck(h wire.Header) {
	c.lastReceivedTime = time.Now()

	c.sendMu.Lock()
	switch {
	case c.lastSendAcked == nil || wire.ForwardDistance(h.PacketID, *c.lastSendAcked) == 1:
		id := h.PacketID
		c.lastSendAcked = &id
		c.sendCond.Broadcast()
		c.sendMu.Unlock()

	case wire.ForwardDistance(h.PacketID, *c.lastSendAcked) < wire.HalfRange:
		lastAcked := *c.lastSendAcked
		c.sendMu.Unlock()
		c.logger.Warn("invalid ack, resetting", slog.Int("got", int(h.PacketID)),
			slog.Int("last_acked", int(lastAcked)))
		c.markDisconnected(true)

	default:
		c.sendMu.Unlock()
		c.logger.Debug("duplicate ack", slog.Int("got", int(h.PacketID)))
	}
}

// Tick evaluates the quiet timeout. It must only be called from the
// Server's periodic goroutine.
func (c *Conn) Tick(now time.Time) {
	if c.State() != StateEstablished {
		return
	}

	if now.Sub(c.lastReceivedTime) > c.timing.QuietTimeout {
		c.logger.Info("quiet timeout, disconnecting")
		c.markDisconnectedReason("timeout", true)
	}
}

// markDisconnected tears the connection down: it optionally sends an RST,
// fires OnDisconnected exactly once, and wakes any goroutine blocked in
// Send. It is equivalent to markDisconnectedReason("protocol_error", sendRST).
func (c *Conn) markDisconnected(sendRST bool) {
	c.markDisconnectedReason("protocol_error", sendRST)
}

func (c *Conn) markDisconnectedReason(reason string, sendRST bool) {
	// Only the first teardown of a session runs; later calls are no-ops.
	if State(c.state.Swap(uint32(StateDead))) == StateDead {
		return
	}

	if sendRST {
		c.sendRST()
	}

	if c.handler != nil {
		c.handler.OnDisconnected(c)
	}

	c.sessionID.Store(0)
	c.state.Store(uint32(StateDead))
	c.toDelete.Store(true)
	c.metrics.IncDisconnects(reason)

	c.sendMu.Lock()
	c.disconnectionEvent = true
	c.sendCond.Broadcast()
	c.sendMu.Unlock()
}

func (c *Conn) nextSendID(reset bool) (uint16, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if reset {
		id, err := wire.RandomSeq()
		if err != nil {
			return 0, err
		}
		c.lastSendID = id
		return id, nil
	}

	c.lastSendID = wire.NextSeq(c.lastSendID)
	return c.lastSendID, nil
}

func (c *Conn) sendAck() {
	c.sendPacket(c.SessionID(), c.lastReceivedID, wire.FlagAck, nil)
}

func (c *Conn) sendRST() {
	c.sendPacket(0, 0, wire.FlagRST, nil)
}

func (c *Conn) sendPacket(sessionID, id uint16, flags wire.Flags, payload []byte) {
	bufp := wire.PacketPool.Get().(*[]byte)
	defer wire.PacketPool.Put(bufp)

	h := wire.Header{SessionID: sessionID, PacketID: id, Flags: flags}
	n, err := wire.Marshal(h, payload, *bufp)
	if err != nil {
		c.logger.Error("marshal packet", slog.Any("error", err))
		return
	}

	if err := c.sender.SendTo(context.Background(), c.addr, (*bufp)[:n]); err != nil {
		c.logger.Warn("send packet", slog.Any("error", err))
		return
	}

	c.metrics.IncPacketsSent()
}

// Send reliably delivers each payload as a DATA packet, retransmitting
// unacknowledged packets at Timing.PacedSendInterval and re-checking
// progress every Timing.AckWait, until every packet is acknowledged (nil),
// the connection is lost (ErrConnectionLost), or Timing.SendTimeout elapses
// without full acknowledgment (ErrSendTimeout, which also tears the
// connection down).
func (c *Conn) Send(ctx context.Context, payloads [][]byte) error {
	if c.State() != StateEstablished {
		return ErrConnectionLost
	}

	type pending struct {
		id      uint16
		payload []byte
	}

	packets := make([]pending, 0, len(payloads))
	for _, payload := range payloads {
		id, err := c.nextSendID(false)
		if err != nil {
			return fmt.Errorf("allocate send id: %w", err)
		}
		packets = append(packets, pending{id: id, payload: payload})
	}

	// hasBeenAckedLocked reports whether id has been acknowledged. Caller
	// must hold sendMu.
	hasBeenAckedLocked := func(id uint16) bool {
		return c.lastSendAcked != nil && wire.ForwardDistance(*c.lastSendAcked, id) < wire.HalfRange
	}

	allAckedLocked := func() bool {
		for _, p := range packets {
			if !hasBeenAckedLocked(p.id) {
				return false
			}
		}
		return true
	}

	deadline := time.Now().Add(c.timing.SendTimeout)
	attempt := 0
	for time.Now().Before(deadline) {
		for _, p := range packets {
			c.sendMu.Lock()
			skip := hasBeenAckedLocked(p.id)
			c.sendMu.Unlock()
			if skip {
				continue
			}

			if attempt > 0 {
				c.metrics.IncRetransmits()
			}
			c.sendPacket(c.SessionID(), p.id, wire.FlagData, p.payload)
			if !sleepOrDone(ctx, c.timing.PacedSendInterval) {
				return ctx.Err()
			}
		}
		attempt++

		done, disconnected := c.waitForAck(allAckedLocked, c.timing.AckWait)
		if done {
			return nil
		}
		if disconnected {
			c.sendMu.Lock()
			c.disconnectionEvent = false
			c.sendMu.Unlock()
			return ErrConnectionLost
		}
	}

	c.metrics.IncSendTimeouts()
	c.markDisconnectedReason("send_timeout", true)
	return ErrSendTimeout
}

// waitForAck blocks on sendCond until predicateLocked (evaluated with
// sendMu held) reports true, disconnection is signaled, or timeout
// elapses.
func (c *Conn) waitForAck(predicateLocked func() bool, timeout time.Duration) (done, disconnected bool) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	timer := time.AfterFunc(timeout, func() {
		c.sendMu.Lock()
		c.sendCond.Broadcast()
		c.sendMu.Unlock()
	})
	defer timer.Stop()

	deadline := time.Now().Add(timeout)
	for {
		if predicateLocked() {
			return true, false
		}
		if c.disconnectionEvent {
			return false, true
		}
		if !time.Now().Before(deadline) {
			return false, false
		}

		c.sendCond.Wait()
	}
}

// sleepOrDone sleeps for d, returning false early if ctx is canceled.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
