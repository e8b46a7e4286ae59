// Package reludpmetrics exposes the transport's runtime state as Prometheus
// metrics.
package reludpmetrics

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace = "reludp"
	subsystem = "transport"
)

const labelReason = "reason"

// Collector registers and updates the transport's Prometheus metrics.
type Collector struct {
	activeConnections prometheus.Gauge
	packetsReceived   prometheus.Counter
	packetsSent       prometheus.Counter
	packetsDropped    prometheus.Counter
	retransmits       prometheus.Counter
	handshakes        prometheus.Counter
	sendTimeouts      prometheus.Counter
	disconnects       *prometheus.CounterVec
}

// NewCollector builds and registers a Collector against reg. A nil reg
// registers against prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()
	reg.MustRegister(
		c.activeConnections,
		c.packetsReceived,
		c.packetsSent,
		c.packetsDropped,
		c.retransmits,
		c.handshakes,
		c.sendTimeouts,
		c.disconnects,
	)

	return c
}

func newMetrics() *Collector {
	return &Collector{
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_connections",
			Help:      "Number of connections currently in the ESTABLISHED state.",
		}),
		packetsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_received_total",
			Help:      "Datagrams accepted by the server's demultiplexer.",
		}),
		packetsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_sent_total",
			Help:      "Datagrams written to the shared socket.",
		}),
		packetsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_dropped_total",
			Help:      "Datagrams dropped for exceeding the maximum packet size.",
		}),
		retransmits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "retransmits_total",
			Help:      "DATA packets resent because no ack had arrived yet.",
		}),
		handshakes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "handshakes_total",
			Help:      "SYN/SYNACK handshakes completed.",
		}),
		sendTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "send_timeouts_total",
			Help:      "Send calls that gave up without a full acknowledgment.",
		}),
		disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "disconnects_total",
			Help:      "Connections torn down, labeled by reason.",
		}, []string{labelReason}),
	}
}

// SetActiveConnections records the current number of ESTABLISHED connections.
func (c *Collector) SetActiveConnections(n int) {
	c.activeConnections.Set(float64(n))
}

// IncPacketsReceived increments the accepted-datagram counter.
func (c *Collector) IncPacketsReceived() {
	c.packetsReceived.Inc()
}

// IncPacketsSent increments the sent-datagram counter.
func (c *Collector) IncPacketsSent() {
	c.packetsSent.Inc()
}

// IncPacketsDropped increments the oversized-datagram counter.
func (c *Collector) IncPacketsDropped() {
	c.packetsDropped.Inc()
}

// IncRetransmits increments the retransmitted-packet counter.
func (c *Collector) IncRetransmits() {
	c.retransmits.Inc()
}

// IncHandshakes increments the completed-handshake counter.
func (c *Collector) IncHandshakes() {
	c.handshakes.Inc()
}

// IncSendTimeouts increments the send-timeout counter.
func (c *Collector) IncSendTimeouts() {
	c.sendTimeouts.Inc()
}

// IncDisconnects increments the disconnect counter for the given reason
// ("rst", "resync", "timeout", "send_timeout", "protocol_error", "shutdown").
func (c *Collector) IncDisconnects(reason string) {
	c.disconnects.WithLabelValues(reason).Inc()
}
