// Package connection owns a peer's live session: it drives the
// authenticating handshake as either role, wraps the two directions of the
// socket in their encrypted channels, and runs one reader and one writer
// goroutine per connection.
package connection

import (
	"github.com/okwme/scuttle-chat/pkg/discovery"
)

// PeerEventKind tags the variant carried by a PeerEvent.
type PeerEventKind int

const (
	// MessageReceived carries one decrypted inbound message.
	MessageReceived PeerEventKind = iota

	// ConnectionClosed reports that the connection's reader loop ended.
	// Err is nil for a graceful goodbye, non-nil for a channel failure.
	ConnectionClosed
)

// String returns a human-readable name for the event kind.
func (k PeerEventKind) String() string {
	switch k {
	case MessageReceived:
		return "MessageReceived"
	case ConnectionClosed:
		return "ConnectionClosed"
	default:
		return "Unknown"
	}
}

// PeerEvent is one thing that happened on a live connection.
type PeerEvent struct {
	Kind PeerEventKind

	// Text is the message body for MessageReceived events.
	Text string

	// Err is the close reason for ConnectionClosed events.
	Err error
}

// PeerManagerEvent pairs a peer event with the peer it happened on.
// Many are produced per connection over its lifetime; the reader loop is the
// producer, the owner of the shared sink is the consumer.
type PeerManagerEvent struct {
	Peer  discovery.PeerAddr
	Event PeerEvent
}

// EventSink receives events from reader loops. Emit may block; it returns an
// error once the sink's consumer is gone, which reader loops treat as fatal.
type EventSink interface {
	Emit(event PeerManagerEvent) error
}
