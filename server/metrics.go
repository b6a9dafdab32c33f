package server

import (
	metrics "github.com/docker/go-metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the counters and gauges this server exposes, wrapping
// docker/go-metrics' namespace helper over a prometheus registry the
// same way a daemon in this corpus registers its own runtime metrics.
type Metrics struct {
	ActiveConnections metrics.Gauge
	FramesProcessed   metrics.LabeledCounter
	BytesRead         metrics.Counter
	HandshakeRejected metrics.LabeledCounter
}

// NewMetrics builds and registers a Metrics set under the "dolittle"
// namespace/subsystem pair, returning a registry whose HTTP handler a
// caller can mount once at process startup.
func NewMetrics() (*Metrics, *prometheus.Registry) {
	ns := metrics.NewNamespace("dolittle", "websocket", nil)

	m := &Metrics{
		ActiveConnections: ns.NewGauge("active_connections", "Number of currently open WebSocket connections", metrics.Total),
		FramesProcessed:   ns.NewLabeledCounter("frames_processed_total", "Number of WebSocket frames processed, by opcode", "opcode"),
		BytesRead:         ns.NewCounter("bytes_read_total", "Total bytes read from accepted connections"),
		HandshakeRejected: ns.NewLabeledCounter("handshake_rejected_total", "Number of handshake rejections, by reason", "reason"),
	}

	metrics.Register(ns)

	registry := prometheus.NewRegistry()
	registry.MustRegister(ns)

	return m, registry
}

// recordFrame increments the frames-processed counter for an opcode.
func (m *Metrics) recordFrame(op OpCode) {
	if m == nil {
		return
	}
	m.FramesProcessed.WithValues(op.String()).Inc()
}

// recordRejection increments the handshake-rejection counter for a
// reason.
func (m *Metrics) recordRejection(reason RejectionReasonKind) {
	if m == nil {
		return
	}
	m.HandshakeRejected.WithValues(rejectionNames[reason]).Inc()
}

// recordBytesRead adds n to the total bytes read from accepted
// connections.
func (m *Metrics) recordBytesRead(n int) {
	if m == nil {
		return
	}
	m.BytesRead.Inc(float64(n))
}
