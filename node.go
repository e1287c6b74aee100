package scuttlechat

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"

	"github.com/okwme/scuttle-chat/internal/eventdispatch"
	"github.com/okwme/scuttle-chat/pkg/addressbook"
	"github.com/okwme/scuttle-chat/pkg/connection"
	"github.com/okwme/scuttle-chat/pkg/crypto"
	"github.com/okwme/scuttle-chat/pkg/discovery"
	"github.com/okwme/scuttle-chat/pkg/peermanager"
)

// Node is the main entry point for scuttle-chat.
// It aggregates all components and provides a unified public API: identity,
// accept loop, LAN discovery, the peer manager, and the event multiplexer.
//
// All public methods are thread-safe.
type Node struct {
	config *Config

	// Core components
	addressBook *addressbook.Book
	handshaker  *connection.Handshaker
	peers       *peermanager.Manager
	dispatcher  *eventdispatch.Dispatcher

	// Wired at Start
	listener  manet.Listener
	discovery *discovery.Service
	events    *Events
	relay     chan connection.PeerManagerEvent

	// Lifecycle
	started bool
	startMu sync.Mutex
	wg      sync.WaitGroup
}

// New creates a new scuttle-chat node with the given configuration.
// The node is not started until Start() is called.
func New(cfg *Config) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.applyDefaults()

	addrBook, err := addressbook.Open(cfg.AddressBookPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open address book: %w", err)
	}

	dispatcher := eventdispatch.NewDispatcher(cfg.EventBufferSize)
	handshaker := connection.NewHandshaker(dispatcher, cfg.Keypair, cfg.NetworkKey, cfg.ConnectTimeout)

	n := &Node{
		config:      cfg,
		addressBook: addrBook,
		handshaker:  handshaker,
		dispatcher:  dispatcher,
	}
	n.peers = peermanager.New(handshaker, n.admitPeer)
	return n, nil
}

// admitPeer refuses identities on the blocklist.
func (n *Node) admitPeer(peer crypto.PublicKey) bool {
	blocked, err := n.addressBook.Blocked(peer)
	if err != nil {
		n.config.Logger.Warn("blocklist lookup failed", "peer", peer, "error", err)
		return true
	}
	return !blocked
}

// Start starts the node: it binds the listen address, begins accepting
// connections, starts LAN discovery, and wires the event multiplexer over
// input. Pass nil input to run without a console producer.
func (n *Node) Start(input io.Reader) error {
	n.startMu.Lock()
	defer n.startMu.Unlock()

	if n.started {
		return ErrNodeAlreadyStarted
	}

	listener, err := manet.Listen(n.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", n.config.ListenAddr, err)
	}

	disc, err := discovery.New(n.config.Keypair.Public, n.config.DiscoveryPort)
	if err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to start discovery: %w", err)
	}

	n.listener = listener
	n.discovery = disc

	// Forward dispatched peer events into the multiplexer's relay channel,
	// counting inbound messages on the way through.
	n.relay = make(chan connection.PeerManagerEvent, n.config.EventBufferSize)
	n.wg.Add(1)
	go n.pumpPeerEvents()

	n.events = NewEvents(n.config, input, &countingSource{disc: disc, node: n}, n.relay)

	n.wg.Add(1)
	go n.acceptLoop()
	go disc.Announce(n.announceAddr(), n.config.AnnounceInterval)

	n.started = true
	n.config.Logger.Info("node started",
		"identity", n.config.Keypair.Public,
		"listen", n.config.ListenAddr,
		"discovery_port", n.config.DiscoveryPort)
	return nil
}

// Stop shuts down the node and releases all resources.
// It closes all connections, stops all goroutines, and cleans up state.
func (n *Node) Stop() error {
	n.startMu.Lock()
	defer n.startMu.Unlock()

	if !n.started {
		return ErrNodeNotStarted
	}

	// Stop accepting and discovering first, then release the event sink
	// before waiting on connections: a reader loop can be blocked handing
	// an event to a consumer that stopped draining, and closing the
	// dispatcher is what unblocks it.
	_ = n.listener.Close()
	_ = n.discovery.Close()
	n.dispatcher.Close()
	err := n.peers.Close()
	n.wg.Wait()
	close(n.relay)
	n.events.Close()
	if cerr := n.addressBook.Close(); err == nil {
		err = cerr
	}

	n.started = false
	n.config.Logger.Info("node stopped")
	return err
}

// PublicKey returns the node's identity key.
func (n *Node) PublicKey() crypto.PublicKey {
	return n.config.Keypair.Public
}

// ListenAddr returns the multiaddress the node is accepting connections on.
// It is available only after Start, and reflects the actual bound port.
func (n *Node) ListenAddr() multiaddr.Multiaddr {
	n.startMu.Lock()
	defer n.startMu.Unlock()
	if n.listener == nil {
		return nil
	}
	return n.listener.Multiaddr()
}

// Events returns the merged event stream for the control loop.
// It is available only after Start.
func (n *Node) Events() *Events {
	n.startMu.Lock()
	defer n.startMu.Unlock()
	return n.events
}

// Connect dials a peer, records it in the address book, and tracks the
// resulting connection. Connecting to an already connected or blocked peer
// is reported by the returned error; a dial failure is retriable.
func (n *Node) Connect(peer discovery.PeerAddr) error {
	n.startMu.Lock()
	if !n.started {
		n.startMu.Unlock()
		return ErrNodeNotStarted
	}
	n.startMu.Unlock()

	if !n.admitPeer(peer.PublicKey) {
		return &Error{Code: ErrCodePeerBlocked, Message: "peer is blocked", Peer: peer.PublicKey, Cause: ErrPeerBlocked}
	}
	if err := n.addressBook.Observe(peer); err != nil {
		n.config.Logger.Warn("address book update failed", "peer", peer.PublicKey, "error", err)
	}

	start := time.Now()
	err := n.peers.NewPeer(peer)
	if err != nil {
		n.config.Metrics.HandshakeResult("failure")
		n.config.Logger.Warn("connect failed", "peer", peer.PublicKey, "error", err)
		return Classify(err)
	}
	n.config.Metrics.HandshakeResult("success")
	n.config.Metrics.HandshakeDuration(time.Since(start).Seconds())
	n.config.Metrics.ConnectionOpened("outbound")
	n.config.Logger.Info("peer connected", "peer", peer.PublicKey, "direction", "outbound")
	return nil
}

// Broadcast enqueues text for every connected peer.
func (n *Node) Broadcast(text string) error {
	err := n.peers.Broadcast(text)
	if err == nil {
		n.config.Metrics.MessageSent(len(text))
	}
	return err
}

// Send enqueues text for one connected peer.
func (n *Node) Send(peer crypto.PublicKey, text string) error {
	if err := n.peers.Send(peer, text); err != nil {
		if errors.Is(err, connection.ErrConnectionClosed) {
			return ErrPeerNotConnected
		}
		return Classify(err)
	}
	n.config.Metrics.MessageSent(len(text))
	return nil
}

// Peers returns the addresses of all currently connected peers.
func (n *Node) Peers() []discovery.PeerAddr {
	return n.peers.Peers()
}

// KnownPeers returns every peer persisted in the address book.
func (n *Node) KnownPeers() ([]addressbook.Entry, error) {
	return n.addressBook.All()
}

// BlockPeer puts an identity on the blocklist and drops any live connection
// to it on its next reconnect; an established connection is left to drain.
func (n *Node) BlockPeer(peer crypto.PublicKey) error {
	return n.addressBook.Block(peer)
}

// UnblockPeer removes an identity from the blocklist.
func (n *Node) UnblockPeer(peer crypto.PublicKey) error {
	return n.addressBook.Unblock(peer)
}

// SetNickname assigns a local label to a known peer.
func (n *Node) SetNickname(peer crypto.PublicKey, nickname string) error {
	return n.addressBook.SetNickname(peer, nickname)
}

// acceptLoop admits inbound connections until the listener closes.
func (n *Node) acceptLoop() {
	defer n.wg.Done()

	for {
		conn, err := n.listener.Accept()
		if err != nil {
			return
		}
		go n.handleInbound(conn)
	}
}

func (n *Node) handleInbound(conn net.Conn) {
	start := time.Now()
	if err := n.peers.Accept(conn); err != nil {
		n.config.Metrics.HandshakeResult("failure")
		n.config.Logger.Warn("inbound handshake failed",
			"remote", conn.RemoteAddr(), "error", err)
		return
	}
	n.config.Metrics.HandshakeResult("success")
	n.config.Metrics.HandshakeDuration(time.Since(start).Seconds())
	n.config.Metrics.ConnectionOpened("inbound")
	n.config.Logger.Info("peer connected", "remote", conn.RemoteAddr(), "direction", "inbound")
}

// pumpPeerEvents forwards dispatched connection events to the multiplexer
// relay, instrumenting message arrivals.
func (n *Node) pumpPeerEvents() {
	defer n.wg.Done()

	for {
		select {
		case ev := <-n.dispatcher.Events():
			if ev.Event.Kind == connection.MessageReceived {
				n.config.Metrics.MessageReceived(len(ev.Event.Text))
			} else {
				n.config.Metrics.ConnectionClosed("any")
				n.config.Logger.Info("peer disconnected",
					"peer", ev.Peer.PublicKey, "error", ev.Event.Err)
			}
			select {
			case n.relay <- ev:
			case <-n.dispatcher.Done():
				return
			}
		case <-n.dispatcher.Done():
			return
		}
	}
}

// announceAddr is the address broadcast to the LAN: the wildcard host plus
// our actual listen port; receivers rewrite the host to the datagram source.
func (n *Node) announceAddr() discovery.PeerAddr {
	return discovery.PeerAddr{
		PublicKey: n.config.Keypair.Public,
		Addr:      n.config.ListenAddr,
		Protocol:  discovery.Net,
	}
}

// countingSource wraps the discovery service to count announcements as they
// reach the multiplexer.
type countingSource struct {
	disc *discovery.Service
	node *Node
}

func (c *countingSource) Recv() (discovery.PeerAddr, error) {
	pa, err := c.disc.Recv()
	if err == nil {
		c.node.config.Metrics.PeerDiscovered()
		c.node.config.Logger.Debug("peer discovered", "peer", pa.PublicKey, "addr", pa.Addr)
	}
	return pa, err
}
