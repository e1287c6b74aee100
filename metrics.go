package scuttlechat

// Metrics defines the metrics collection interface for scuttle-chat.
// It is designed to be compatible with Prometheus and other metrics systems.
//
// Implementations must be safe for concurrent use.
//
// Metric naming convention:
//   - Counters: <name>_total (e.g., connections_total)
//   - Histograms: <name>_seconds or <name>_bytes (e.g., handshake_duration_seconds)
//   - Gauges: current_<name> (e.g., current_connections)
type Metrics interface {
	// Connection metrics

	// ConnectionOpened increments when a connection is established.
	// Labels: direction (inbound, outbound)
	ConnectionOpened(direction string)

	// ConnectionClosed increments when a connection is closed.
	// Labels: direction (inbound, outbound)
	ConnectionClosed(direction string)

	// HandshakeDuration records the duration of a successful handshake.
	HandshakeDuration(seconds float64)

	// HandshakeResult records the result of a handshake attempt.
	// Labels: result (success, failure)
	HandshakeResult(result string)

	// Message metrics

	// MessageSent records an outbound message being enqueued.
	MessageSent(bytes int)

	// MessageReceived records a decrypted inbound message.
	MessageReceived(bytes int)

	// Discovery metrics

	// PeerDiscovered increments when discovery reports a peer announcement.
	PeerDiscovered()

	// Event metrics

	// EventEmitted records an event delivered to the control loop.
	// Labels: kind (input, tick, new_peer, peer_manager)
	EventEmitted(kind string)
}

// NopMetrics is a no-op metrics implementation that discards all metrics.
// It is the default when no metrics collector is configured.
type NopMetrics struct{}

// Ensure NopMetrics implements Metrics.
var _ Metrics = NopMetrics{}

// ConnectionOpened implements Metrics.ConnectionOpened (no-op).
func (NopMetrics) ConnectionOpened(direction string) {}

// ConnectionClosed implements Metrics.ConnectionClosed (no-op).
func (NopMetrics) ConnectionClosed(direction string) {}

// HandshakeDuration implements Metrics.HandshakeDuration (no-op).
func (NopMetrics) HandshakeDuration(seconds float64) {}

// HandshakeResult implements Metrics.HandshakeResult (no-op).
func (NopMetrics) HandshakeResult(result string) {}

// MessageSent implements Metrics.MessageSent (no-op).
func (NopMetrics) MessageSent(bytes int) {}

// MessageReceived implements Metrics.MessageReceived (no-op).
func (NopMetrics) MessageReceived(bytes int) {}

// PeerDiscovered implements Metrics.PeerDiscovered (no-op).
func (NopMetrics) PeerDiscovered() {}

// EventEmitted implements Metrics.EventEmitted (no-op).
func (NopMetrics) EventEmitted(kind string) {}
