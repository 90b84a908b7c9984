// Package metrics provides Prometheus metrics for udpkit.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "udpkit"
)

// Fault labels for FaultsTotal.
const (
	FaultBind     = "bind"
	FaultReceive  = "receive"
	FaultSend     = "send"
	FaultListener = "listener"
)

// Metrics contains all Prometheus metrics for a UDP manager.
type Metrics struct {
	// Session metrics
	SessionsOpen  prometheus.Gauge
	SessionStarts prometheus.Counter
	SessionStops  prometheus.Counter

	// Datagram metrics
	DatagramsSent     prometheus.Counter
	DatagramsReceived prometheus.Counter
	DatagramsDropped  *prometheus.CounterVec
	BytesSent         prometheus.Counter
	BytesReceived     prometheus.Counter

	// Send path
	SendQueueDepth prometheus.Gauge
	SendLatency    prometheus.Histogram

	Faults *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Default returns the process-wide metrics instance registered with the
// default Prometheus registerer.
func Default() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

// NewMetrics creates a Metrics registered with prometheus.DefaultRegisterer.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a Metrics registered with reg.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SessionsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_open",
			Help:      "Number of currently bound UDP sessions",
		}),
		SessionStarts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_starts_total",
			Help:      "Total number of UDP sessions started",
		}),
		SessionStops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_stops_total",
			Help:      "Total number of UDP sessions stopped",
		}),

		DatagramsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_sent_total",
			Help:      "Total datagrams written to the socket",
		}),
		DatagramsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_received_total",
			Help:      "Total non-empty datagrams read from the socket",
		}),
		DatagramsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_dropped_total",
			Help:      "Total datagrams dropped by reason",
		}, []string{"reason"}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Total payload bytes sent",
		}),
		BytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Total payload bytes received",
		}),

		SendQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "send_queue_depth",
			Help:      "Send tasks queued or running",
		}),
		SendLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_latency_seconds",
			Help:      "Time from submitting a send to the datagram being written",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),

		Faults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faults_total",
			Help:      "Total contained faults by kind",
		}, []string{"fault"}),
	}
}

// RecordSessionStart records a session being bound.
func (m *Metrics) RecordSessionStart() {
	m.SessionsOpen.Inc()
	m.SessionStarts.Inc()
}

// RecordSessionStop records a session being closed.
func (m *Metrics) RecordSessionStop() {
	m.SessionsOpen.Dec()
	m.SessionStops.Inc()
}

// RecordSent records a datagram written to the wire.
func (m *Metrics) RecordSent(bytes int, latencySeconds float64) {
	m.DatagramsSent.Inc()
	m.BytesSent.Add(float64(bytes))
	m.SendLatency.Observe(latencySeconds)
}

// RecordReceived records a datagram read from the wire.
func (m *Metrics) RecordReceived(bytes int) {
	m.DatagramsReceived.Inc()
	m.BytesReceived.Add(float64(bytes))
}

// RecordDropped records a datagram dropped for reason.
func (m *Metrics) RecordDropped(reason string) {
	m.DatagramsDropped.WithLabelValues(reason).Inc()
}

// RecordFault records a contained fault of the given kind.
func (m *Metrics) RecordFault(fault string) {
	m.Faults.WithLabelValues(fault).Inc()
}

// SetSendQueueDepth sets the number of queued or running send tasks.
func (m *Metrics) SetSendQueueDepth(n int) {
	m.SendQueueDepth.Set(float64(n))
}
