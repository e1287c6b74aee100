// Package discovery provides peer addressing and local-network peer
// discovery. Peers announce themselves over UDP broadcast using the
// multiserver-style text form "net:host:port~shs:base64pk"; the listener
// turns announcements into PeerAddr values one at a time.
package discovery

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"

	"github.com/okwme/scuttle-chat/pkg/crypto"
)

// Protocol tags the transport a peer is reachable over.
type Protocol int

const (
	// Net is a plain TCP byte stream.
	Net Protocol = iota
)

// String returns the multiserver protocol prefix.
func (p Protocol) String() string {
	switch p {
	case Net:
		return "net"
	default:
		return fmt.Sprintf("Protocol(%d)", int(p))
	}
}

// PeerAddr identifies a peer independent of any live connection:
// its identity key, where to reach it, and over which transport.
// PeerAddr is an immutable value; copies are safe to share across goroutines.
type PeerAddr struct {
	// PublicKey is the peer's 32-byte Ed25519 identity.
	PublicKey crypto.PublicKey

	// Addr is the peer's transport address.
	Addr multiaddr.Multiaddr

	// Protocol tags the transport.
	Protocol Protocol
}

// String renders the multiserver text form, e.g.
/// "net:192.168.1.5:8008~shs:BASE64KEY".
func (p PeerAddr) String() string {
	host, port := "", 0
	if p.Addr != nil {
		if _, hostport, err := manet.DialArgs(p.Addr); err == nil {
			if h, portStr, err := net.SplitHostPort(hostport); err == nil {
				host = h
				port, _ = strconv.Atoi(portStr)
			}
		}
	}
	return fmt.Sprintf("%s:%s:%d~shs:%s", p.Protocol, host, port, p.PublicKey)
}

// ParsePeerAddr parses the multiserver text form produced by String.
func ParsePeerAddr(s string) (PeerAddr, error) {
	var pa PeerAddr

	head, keyPart, ok := strings.Cut(s, "~shs:")
	if !ok {
		return pa, fmt.Errorf("discovery: missing shs section in %q", s)
	}
	pk, err := crypto.ParsePublicKey(keyPart)
	if err != nil {
		return pa, fmt.Errorf("discovery: %w", err)
	}

	proto, hostport, ok := strings.Cut(head, ":")
	if !ok || proto != "net" {
		return pa, fmt.Errorf("discovery: unsupported protocol in %q", s)
	}
	addr, err := AddrFromHostPort(hostport)
	if err != nil {
		return pa, err
	}

	return PeerAddr{PublicKey: pk, Addr: addr, Protocol: Net}, nil
}

// AddrFromHostPort converts "host:port" into a TCP multiaddr.
func AddrFromHostPort(hostport string) (multiaddr.Multiaddr, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return nil, fmt.Errorf("discovery: invalid address %q: %w", hostport, err)
	}
	if _, err := strconv.Atoi(portStr); err != nil {
		return nil, fmt.Errorf("discovery: invalid port %q: %w", portStr, err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		// Hostname form; multiaddr carries it as dns4.
		return multiaddr.NewMultiaddr(fmt.Sprintf("/dns4/%s/tcp/%s", host, portStr))
	}
	if ip.To4() != nil {
		return multiaddr.NewMultiaddr(fmt.Sprintf("/ip4/%s/tcp/%s", ip, portStr))
	}
	return multiaddr.NewMultiaddr(fmt.Sprintf("/ip6/%s/tcp/%s", ip, portStr))
}

// AddrFromNetAddr converts a stdlib net.Addr (e.g. a connection's remote
// address) into a multiaddr.
func AddrFromNetAddr(a net.Addr) (multiaddr.Multiaddr, error) {
	ma, err := manet.FromNetAddr(a)
	if err != nil {
		return nil, fmt.Errorf("discovery: cannot convert address %v: %w", a, err)
	}
	return ma, nil
}
