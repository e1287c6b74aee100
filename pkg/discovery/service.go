package discovery

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/okwme/scuttle-chat/pkg/crypto"
)

// DefaultPort is the UDP port peers announce on.
const DefaultPort = 8008

// DefaultAnnounceInterval is how often the service re-broadcasts its own
// address.
const DefaultAnnounceInterval = 1 * time.Second

// Service listens for UDP peer announcements and, optionally, broadcasts its
// own. Announcements carrying our own public key are skipped, so Recv only
// ever yields other peers.
type Service struct {
	self crypto.PublicKey
	conn *net.UDPConn

	closeOnce sync.Once
	closed    chan struct{}
}

// New binds the announcement listener on the given UDP port.
func New(self crypto.PublicKey, port int) (*Service, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: port})
	if err != nil {
		return nil, fmt.Errorf("discovery: listen udp :%d: %w", port, err)
	}
	return &Service{
		self:   self,
		conn:   conn,
		closed: make(chan struct{}),
	}, nil
}

// Recv blocks until the next announcement from another peer arrives and
// returns it as a PeerAddr. It is intended to be called in a loop from a
// single goroutine; it returns an error once the service is closed.
func (s *Service) Recv() (PeerAddr, error) {
	buf := make([]byte, 1024)
	for {
		n, src, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			return PeerAddr{}, fmt.Errorf("discovery: read announcement: %w", err)
		}

		pa, err := parseAnnouncement(strings.TrimSpace(string(buf[:n])), src)
		if err != nil {
			// Not every UDP datagram on this port is an announcement.
			continue
		}
		if pa.PublicKey == s.self {
			continue
		}
		return pa, nil
	}
}

// parseAnnouncement accepts the multiserver form; an announcement with host
// 0.0.0.0 is rewritten to the datagram's source IP.
func parseAnnouncement(msg string, src *net.UDPAddr) (PeerAddr, error) {
	pa, err := ParsePeerAddr(msg)
	if err != nil {
		return pa, err
	}
	if strings.Contains(pa.Addr.String(), "/ip4/0.0.0.0/") {
		rewritten := strings.Replace(pa.Addr.String(), "/ip4/0.0.0.0/", "/ip4/"+src.IP.String()+"/", 1)
		addr, err := AddrFromHostPort(net.JoinHostPort(src.IP.String(), portOf(rewritten)))
		if err != nil {
			return pa, err
		}
		pa.Addr = addr
	}
	return pa, nil
}

func portOf(maddr string) string {
	parts := strings.Split(maddr, "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "tcp" {
			return parts[i+1]
		}
	}
	return "0"
}

// Announce broadcasts our own address every interval until the service is
// closed. It runs in the calling goroutine; start it with go.
func (s *Service) Announce(self PeerAddr, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultAnnounceInterval
	}
	dst := &net.UDPAddr{IP: net.IPv4bcast, Port: s.conn.LocalAddr().(*net.UDPAddr).Port}
	msg := []byte(self.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.closed:
			return
		case <-ticker.C:
			_, _ = s.conn.WriteToUDP(msg, dst)
		}
	}
}

// Close stops the service. A blocked Recv returns with an error.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.conn.Close()
	})
	return err
}
