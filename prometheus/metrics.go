// Package prometheus provides a Prometheus implementation of the
// scuttlechat.Metrics interface.
//
// All metrics use the configured namespace prefix (default: "scuttlechat")
// and follow Prometheus naming conventions.
//
// # Counters
//
//	scuttlechat_connections_opened_total{direction="inbound|outbound"}
//	scuttlechat_connections_closed_total{direction="inbound|outbound|any"}
//	scuttlechat_handshake_results_total{result="success|failure"}
//	scuttlechat_messages_sent_total
//	scuttlechat_messages_received_total
//	scuttlechat_bytes_sent_total
//	scuttlechat_bytes_received_total
//	scuttlechat_peers_discovered_total
//	scuttlechat_events_emitted_total{kind="input|tick|new_peer|peer_manager"}
//
// # Histograms
//
//	scuttlechat_handshake_duration_seconds
//
// # Example Usage
//
//	import (
//	    scuttlechat "github.com/okwme/scuttle-chat"
//	    prommetrics "github.com/okwme/scuttle-chat/prometheus"
//	    "github.com/prometheus/client_golang/prometheus/promhttp"
//	)
//
//	func main() {
//	    metrics := prommetrics.NewMetrics("myapp")
//
//	    cfg := scuttlechat.NewConfig(keypair, path,
//	        scuttlechat.WithMetrics(metrics),
//	    )
//
//	    node, err := scuttlechat.New(cfg)
//	    // ...
//
//	    http.Handle("/metrics", promhttp.Handler())
//	    http.ListenAndServe(":9090", nil)
//	}
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	scuttlechat "github.com/okwme/scuttle-chat"
)

// DefaultNamespace is the default namespace for all metrics.
const DefaultNamespace = "scuttlechat"

// Metrics implements the scuttlechat.Metrics interface using Prometheus
// metrics.
//
// Metrics is safe for concurrent use.
type Metrics struct {
	connectionsOpened *prometheus.CounterVec
	connectionsClosed *prometheus.CounterVec
	handshakeDuration prometheus.Histogram
	handshakeResults  *prometheus.CounterVec

	messagesSent     prometheus.Counter
	messagesReceived prometheus.Counter
	bytesSent        prometheus.Counter
	bytesReceived    prometheus.Counter

	peersDiscovered prometheus.Counter
	eventsEmitted   *prometheus.CounterVec
}

// Ensure Metrics implements scuttlechat.Metrics.
var _ scuttlechat.Metrics = (*Metrics)(nil)

// NewMetrics creates a new Prometheus metrics collector with the given
// namespace, registered with the default Prometheus registry. If namespace
// is empty, DefaultNamespace is used.
//
// If registration fails (e.g., metrics already registered), this function
// will panic. To avoid panics, use NewMetricsWithRegisterer with a custom
// registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates a new Prometheus metrics collector with
// the given namespace and registerer. This allows using a custom registry
// for testing or to avoid conflicts with other metrics.
//
// If registerer is nil, metrics will not be registered automatically.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	m := &Metrics{
		connectionsOpened: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connections_opened_total",
				Help:      "Total number of connections opened",
			},
			[]string{"direction"},
		),
		connectionsClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connections_closed_total",
				Help:      "Total number of connections closed",
			},
			[]string{"direction"},
		),
		handshakeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "handshake_duration_seconds",
				Help:      "Histogram of successful handshake durations",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		handshakeResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "handshake_results_total",
				Help:      "Total number of handshake results by outcome",
			},
			[]string{"result"},
		),
		messagesSent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_sent_total",
				Help:      "Total number of messages sent",
			},
		),
		messagesReceived: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_received_total",
				Help:      "Total number of messages received",
			},
		),
		bytesSent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_sent_total",
				Help:      "Total bytes sent",
			},
		),
		bytesReceived: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_received_total",
				Help:      "Total bytes received",
			},
		),
		peersDiscovered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "peers_discovered_total",
				Help:      "Total number of peer announcements received",
			},
		),
		eventsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_emitted_total",
				Help:      "Total number of events delivered to the control loop",
			},
			[]string{"kind"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.connectionsOpened,
			m.connectionsClosed,
			m.handshakeDuration,
			m.handshakeResults,
			m.messagesSent,
			m.messagesReceived,
			m.bytesSent,
			m.bytesReceived,
			m.peersDiscovered,
			m.eventsEmitted,
		)
	}

	return m
}

// ConnectionOpened implements scuttlechat.Metrics.
func (m *Metrics) ConnectionOpened(direction string) {
	m.connectionsOpened.WithLabelValues(direction).Inc()
}

// ConnectionClosed implements scuttlechat.Metrics.
func (m *Metrics) ConnectionClosed(direction string) {
	m.connectionsClosed.WithLabelValues(direction).Inc()
}

// HandshakeDuration implements scuttlechat.Metrics.
func (m *Metrics) HandshakeDuration(seconds float64) {
	m.handshakeDuration.Observe(seconds)
}

// HandshakeResult implements scuttlechat.Metrics.
func (m *Metrics) HandshakeResult(result string) {
	m.handshakeResults.WithLabelValues(result).Inc()
}

// MessageSent implements scuttlechat.Metrics.
func (m *Metrics) MessageSent(bytes int) {
	m.messagesSent.Inc()
	m.bytesSent.Add(float64(bytes))
}

// MessageReceived implements scuttlechat.Metrics.
func (m *Metrics) MessageReceived(bytes int) {
	m.messagesReceived.Inc()
	m.bytesReceived.Add(float64(bytes))
}

// PeerDiscovered implements scuttlechat.Metrics.
func (m *Metrics) PeerDiscovered() {
	m.peersDiscovered.Inc()
}

// EventEmitted implements scuttlechat.Metrics.
func (m *Metrics) EventEmitted(kind string) {
	m.eventsEmitted.WithLabelValues(kind).Inc()
}
