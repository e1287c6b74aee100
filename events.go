package scuttlechat

import (
	"github.com/okwme/scuttle-chat/pkg/connection"
	"github.com/okwme/scuttle-chat/pkg/discovery"
)

// Event is the control loop's unified alphabet: one tagged variant per
// producer merged by the multiplexer. The interface is sealed; the only
// implementations are InputEvent, TickEvent, NewPeerEvent and PeerEvent.
type Event interface {
	// Kind returns the producer tag, usable as a metrics label.
	Kind() string
}

// InputEvent carries one console key.
type InputEvent struct {
	Key rune
}

// Kind implements Event.
func (InputEvent) Kind() string { return "input" }

// TickEvent is emitted at the configured tick rate.
type TickEvent struct{}

// Kind implements Event.
func (TickEvent) Kind() string { return "tick" }

// NewPeerEvent carries one freshly discovered peer.
type NewPeerEvent struct {
	Peer discovery.PeerAddr
}

// Kind implements Event.
func (NewPeerEvent) Kind() string { return "new_peer" }

// PeerEvent relays one event produced by a connection's reader loop.
type PeerEvent struct {
	Event connection.PeerManagerEvent
}

// Kind implements Event.
func (PeerEvent) Kind() string { return "peer_manager" }
