// Package testutil provides shared helpers for tests: deterministic
// identities, in-memory connection pairs, and a collecting event sink.
package testutil

import (
	"net"
	"sync"

	"github.com/okwme/scuttle-chat/pkg/connection"
	"github.com/okwme/scuttle-chat/pkg/crypto"
)

// Keypair returns a deterministic identity derived from seed byte b.
// Distinct bytes yield distinct identities.
func Keypair(b byte) *crypto.Keypair {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = b
	}
	kp, err := crypto.KeypairFromSeed(seed)
	if err != nil {
		panic(err)
	}
	return kp
}

// NetworkKey returns a fixed test network key distinct from the main one.
func NetworkKey() crypto.NetworkKey {
	var k crypto.NetworkKey
	for i := range k {
		k[i] = byte(i)
	}
	return k
}

// ConnPair returns two connected in-memory duplex conns.
func ConnPair() (net.Conn, net.Conn) {
	return net.Pipe()
}

// Sink is an EventSink collecting every emitted event. A closed Sink rejects
// further emits, mimicking a consumer that went away.
type Sink struct {
	mu     sync.Mutex
	events []connection.PeerManagerEvent
	closed bool

	// Notify, if non-nil, receives every accepted event.
	Notify chan connection.PeerManagerEvent
}

// NewSink creates an open collecting sink.
func NewSink() *Sink {
	return &Sink{Notify: make(chan connection.PeerManagerEvent, 64)}
}

// Emit implements connection.EventSink.
func (s *Sink) Emit(event connection.PeerManagerEvent) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return connection.ErrEventSinkClosed
	}
	s.events = append(s.events, event)
	s.mu.Unlock()
	if s.Notify != nil {
		s.Notify <- event
	}
	return nil
}

// Close makes subsequent Emit calls fail.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Events returns a snapshot of everything emitted so far.
func (s *Sink) Events() []connection.PeerManagerEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]connection.PeerManagerEvent, len(s.events))
	copy(out, s.events)
	return out
}

var _ connection.EventSink = (*Sink)(nil)
