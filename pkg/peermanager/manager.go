// Package peermanager tracks the set of live peer connections for one node.
// It deduplicates by peer identity, dials newly discovered peers, adopts
// accepted inbound connections, and fans outbound messages across every
// connected peer.
package peermanager

import (
	"errors"
	"net"
	"sync"

	"github.com/okwme/scuttle-chat/pkg/connection"
	"github.com/okwme/scuttle-chat/pkg/crypto"
	"github.com/okwme/scuttle-chat/pkg/discovery"
)

// ErrPeerRefused is returned when the admission check rejects a peer.
var ErrPeerRefused = errors.New("peermanager: peer refused")

// Manager owns all live connections of a node. At most one connection per
// peer identity is kept; a second connection to an already connected peer is
// refused rather than replacing the first. All methods are safe for
// concurrent use.
type Manager struct {
	handshaker *connection.Handshaker
	admit      func(crypto.PublicKey) bool

	mu     sync.Mutex
	conns  map[crypto.PublicKey]*connection.PeerConnection
	closed bool
}

// New builds a Manager that establishes connections through handshaker.
// A non-nil admit is consulted with each authenticated identity before the
// connection is kept; refused peers are closed immediately.
func New(handshaker *connection.Handshaker, admit func(crypto.PublicKey) bool) *Manager {
	return &Manager{
		handshaker: handshaker,
		admit:      admit,
		conns:      make(map[crypto.PublicKey]*connection.PeerConnection),
	}
}

// NewPeer connects to a freshly discovered peer. If the peer is already
// connected, or the manager is shut down, the call is a no-op. A failed dial
// or handshake is reported once and not retried; the peer will be attempted
// again on its next discovery announcement.
func (m *Manager) NewPeer(peer discovery.PeerAddr) error {
	if m.admit != nil && !m.admit(peer.PublicKey) {
		return ErrPeerRefused
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return connection.ErrConnectionClosed
	}
	if _, ok := m.conns[peer.PublicKey]; ok {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	// Dial outside the lock: a slow handshake must not stall the manager.
	pc, err := m.handshaker.ClientHandshake(peer)
	if err != nil {
		return err
	}
	return m.adopt(pc)
}

// Accept adopts an inbound connection: it authenticates conn as the
// responding side and tracks the resulting peer. The connection is closed if
// the peer is already connected or the manager is shut down.
func (m *Manager) Accept(conn net.Conn) error {
	pc, err := m.handshaker.ServerHandshake(conn)
	if err != nil {
		return err
	}
	return m.adopt(pc)
}

func (m *Manager) adopt(pc *connection.PeerConnection) error {
	key := pc.Peer().PublicKey
	if m.admit != nil && !m.admit(key) {
		_ = pc.Close()
		return ErrPeerRefused
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = pc.Close()
		return connection.ErrConnectionClosed
	}
	if _, ok := m.conns[key]; ok {
		m.mu.Unlock()
		_ = pc.Close()
		return nil
	}
	m.conns[key] = pc
	m.mu.Unlock()

	// Reap the entry once the connection's loops finish, whatever the cause,
	// so the peer can reconnect later.
	go func() {
		<-pc.Done()
		m.mu.Lock()
		if m.conns[key] == pc {
			delete(m.conns, key)
		}
		m.mu.Unlock()
	}()
	return nil
}

// Broadcast enqueues text on every live connection. Per-peer failures do not
// stop the fan-out; the first one is returned.
func (m *Manager) Broadcast(text string) error {
	m.mu.Lock()
	targets := make([]*connection.PeerConnection, 0, len(m.conns))
	for _, pc := range m.conns {
		targets = append(targets, pc)
	}
	m.mu.Unlock()

	var first error
	for _, pc := range targets {
		if err := pc.Send(text); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Send enqueues text for one connected peer.
func (m *Manager) Send(peer crypto.PublicKey, text string) error {
	m.mu.Lock()
	pc, ok := m.conns[peer]
	m.mu.Unlock()
	if !ok {
		return connection.ErrConnectionClosed
	}
	return pc.Send(text)
}

// Connected reports whether a live connection to peer exists.
func (m *Manager) Connected(peer crypto.PublicKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.conns[peer]
	return ok
}

// Peers returns the addresses of all currently connected peers.
func (m *Manager) Peers() []discovery.PeerAddr {
	m.mu.Lock()
	defer m.mu.Unlock()
	peers := make([]discovery.PeerAddr, 0, len(m.conns))
	for _, pc := range m.conns {
		peers = append(peers, pc.Peer())
	}
	return peers
}

// Close shuts down every connection and refuses further peers. It waits for
// each connection's loops to finish so callers observe a quiet node.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	conns := make([]*connection.PeerConnection, 0, len(m.conns))
	for _, pc := range m.conns {
		conns = append(conns, pc)
	}
	m.conns = make(map[crypto.PublicKey]*connection.PeerConnection)
	m.mu.Unlock()

	var first error
	for _, pc := range conns {
		if err := pc.Close(); err != nil && first == nil {
			first = err
		}
	}
	for _, pc := range conns {
		<-pc.Done()
	}
	return first
}
