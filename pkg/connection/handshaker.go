package connection

import (
	"fmt"
	"net"
	"time"

	manet "github.com/multiformats/go-multiaddr/net"

	"github.com/okwme/scuttle-chat/pkg/crypto"
	"github.com/okwme/scuttle-chat/pkg/discovery"
	"github.com/okwme/scuttle-chat/pkg/secrethandshake"
)

// DefaultConnectTimeout bounds how long an outbound dial may take before the
// attempt is reported as failed.
const DefaultConnectTimeout = 500 * time.Millisecond

// Handshaker dials and accepts peers, runs the cryptographic handshake for
// the appropriate role, and hands back live PeerConnections. One Handshaker
// is shared by all connections of a node; it is safe for concurrent use.
type Handshaker struct {
	sink    EventSink
	keypair *crypto.Keypair
	network crypto.NetworkKey
	timeout time.Duration
}

// NewHandshaker builds a Handshaker for the given identity on the given
// network. Events from every connection it produces are forwarded to sink.
// A non-positive timeout selects DefaultConnectTimeout.
func NewHandshaker(sink EventSink, keypair *crypto.Keypair, network crypto.NetworkKey, timeout time.Duration) *Handshaker {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	return &Handshaker{
		sink:    sink,
		keypair: keypair,
		network: network,
		timeout: timeout,
	}
}

// ClientHandshake dials peer, authenticates as the initiating side against
// the peer's known public key, and returns the live connection. Dial failures
// wrap ErrCannotConnect; handshake failures wrap ErrHandshakeFailed.
func (h *Handshaker) ClientHandshake(peer discovery.PeerAddr) (*PeerConnection, error) {
	network, address, err := manet.DialArgs(peer.Addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCannotConnect, err)
	}

	conn, err := net.DialTimeout(network, address, h.timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCannotConnect, err)
	}

	return FromHandshake(h.sink, conn, &clientAuth{
		network: h.network,
		local:   h.keypair,
		peer:    peer,
	})
}

// ServerHandshake authenticates an accepted conn as the responding side. The
// peer's identity is not known in advance; it is learned from the handshake
// and combined with the socket's remote address into the returned
// connection's PeerAddr.
func (h *Handshaker) ServerHandshake(conn net.Conn) (*PeerConnection, error) {
	return FromHandshake(h.sink, conn, &serverAuth{
		network: h.network,
		local:   h.keypair,
	})
}

// clientAuth authenticates the dialing side of a connection.
type clientAuth struct {
	network crypto.NetworkKey
	local   *crypto.Keypair
	peer    discovery.PeerAddr
}

func (a *clientAuth) Authenticate(conn net.Conn) (discovery.PeerAddr, *secrethandshake.SessionKeys, error) {
	keys, err := secrethandshake.Client(conn, a.network, a.local, a.peer.PublicKey)
	if err != nil {
		return discovery.PeerAddr{}, nil, err
	}
	return a.peer, keys, nil
}

// serverAuth authenticates the accepting side of a connection.
type serverAuth struct {
	network crypto.NetworkKey
	local   *crypto.Keypair
}

func (a *serverAuth) Authenticate(conn net.Conn) (discovery.PeerAddr, *secrethandshake.SessionKeys, error) {
	remote, keys, err := secrethandshake.Server(conn, a.network, a.local)
	if err != nil {
		return discovery.PeerAddr{}, nil, err
	}

	addr, err := discovery.AddrFromNetAddr(conn.RemoteAddr())
	if err != nil {
		return discovery.PeerAddr{}, nil, err
	}
	return discovery.PeerAddr{
		PublicKey: remote,
		Addr:      addr,
		Protocol:  discovery.Net,
	}, keys, nil
}
