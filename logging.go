package scuttlechat

// Logger is the structured logging surface the node and its components write
// to. Key-value pairs follow the message, slog style, so any of the common
// logging libraries can sit behind it with a thin adapter.
//
// The node logs from several goroutines at once; implementations must be
// safe for concurrent use.
type Logger interface {
	// Debug records verbose diagnostics: handshake passes, segment counts,
	// queue depths.
	Debug(msg string, keysAndValues ...any)

	// Info records significant events: peers connecting and disconnecting,
	// the node starting and stopping.
	Info(msg string, keysAndValues ...any)

	// Warn records recoverable trouble: a failed handshake, a refused dial,
	// an address book write that did not stick.
	Warn(msg string, keysAndValues ...any)

	// Error records failures that degrade the node.
	Error(msg string, keysAndValues ...any)
}

// NopLogger discards everything. It is the default when no logger is
// configured.
type NopLogger struct{}

var _ Logger = NopLogger{}

func (NopLogger) Debug(msg string, keysAndValues ...any) {}
func (NopLogger) Info(msg string, keysAndValues ...any)  {}
func (NopLogger) Warn(msg string, keysAndValues ...any)  {}
func (NopLogger) Error(msg string, keysAndValues ...any) {}
