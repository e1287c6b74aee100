package scuttlechat

import (
	"fmt"
	"time"

	"github.com/multiformats/go-multiaddr"

	"github.com/okwme/scuttle-chat/pkg/crypto"
)

// Default configuration values.
const (
	DefaultConnectTimeout   = 500 * time.Millisecond
	DefaultTickRate         = 250 * time.Millisecond
	DefaultExitKey          = 'q'
	DefaultEventBufferSize  = 100
	DefaultDiscoveryPort    = 8008
	DefaultAnnounceInterval = 1 * time.Second
)

// DefaultListenAddr is the multiaddress a node listens on when none is
// configured.
var DefaultListenAddr = multiaddr.StringCast("/ip4/0.0.0.0/tcp/8008")

// Config holds the configuration for a scuttle-chat node.
type Config struct {
	// Keypair is the Ed25519 identity for this node.
	// This is required and must be provided by the application.
	Keypair *crypto.Keypair

	// NetworkKey isolates this node's network. Peers configured with
	// different network keys cannot complete a handshake.
	// Defaults to the main network key.
	NetworkKey crypto.NetworkKey

	// AddressBookPath is the file path for persisting known peers.
	// This is required.
	AddressBookPath string

	// ListenAddr is the multiaddress this node will accept connections on.
	ListenAddr multiaddr.Multiaddr

	// DiscoveryPort is the UDP port used for LAN peer announcements.
	DiscoveryPort int

	// AnnounceInterval is how often the node broadcasts its own presence.
	AnnounceInterval time.Duration

	// ConnectTimeout bounds an outbound dial. Established connections have
	// no read or write timeout.
	ConnectTimeout time.Duration

	// ExitKey is the console key that stops the input event producer.
	ExitKey rune

	// TickRate is the interval between Tick events.
	TickRate time.Duration

	// EventBufferSize is the buffer size for the merged event queue and the
	// peer event sink.
	EventBufferSize int

	// Logger is the logger for the node. If nil, a NopLogger is used.
	// The logger must be safe for concurrent use.
	Logger Logger

	// Metrics is the metrics collector for the node. If nil, a NopMetrics is used.
	// The metrics collector must be safe for concurrent use.
	Metrics Metrics
}

// Validate checks that the configuration is valid and returns an error
// describing any problems found.
func (c *Config) Validate() error {
	if c.Keypair == nil {
		return ErrMissingKeypair
	}
	if c.AddressBookPath == "" {
		return ErrMissingAddressBookPath
	}
	if c.DiscoveryPort < 0 || c.DiscoveryPort > 65535 {
		return fmt.Errorf("%w: discovery port out of range", ErrInvalidConfig)
	}
	if c.AnnounceInterval < 0 {
		return fmt.Errorf("%w: announce interval cannot be negative", ErrInvalidConfig)
	}
	if c.ConnectTimeout < 0 {
		return fmt.Errorf("%w: connect timeout cannot be negative", ErrInvalidConfig)
	}
	if c.TickRate < 0 {
		return fmt.Errorf("%w: tick rate cannot be negative", ErrInvalidConfig)
	}
	if c.EventBufferSize < 0 {
		return fmt.Errorf("%w: event buffer size cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// applyDefaults sets default values for any unset optional fields.
func (c *Config) applyDefaults() {
	var zeroKey crypto.NetworkKey
	if c.NetworkKey == zeroKey {
		c.NetworkKey = crypto.MainNetworkKey()
	}
	if c.ListenAddr == nil {
		c.ListenAddr = DefaultListenAddr
	}
	if c.DiscoveryPort == 0 {
		c.DiscoveryPort = DefaultDiscoveryPort
	}
	if c.AnnounceInterval == 0 {
		c.AnnounceInterval = DefaultAnnounceInterval
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ExitKey == 0 {
		c.ExitKey = DefaultExitKey
	}
	if c.TickRate == 0 {
		c.TickRate = DefaultTickRate
	}
	if c.EventBufferSize == 0 {
		c.EventBufferSize = DefaultEventBufferSize
	}
	if c.Logger == nil {
		c.Logger = NopLogger{}
	}
	if c.Metrics == nil {
		c.Metrics = NopMetrics{}
	}
}

// ConfigOption is a functional option for configuring a Node.
type ConfigOption func(*Config)

// WithNetworkKey sets the network key.
func WithNetworkKey(k crypto.NetworkKey) ConfigOption {
	return func(c *Config) {
		c.NetworkKey = k
	}
}

// WithListenAddr sets the multiaddress to accept connections on.
func WithListenAddr(addr multiaddr.Multiaddr) ConfigOption {
	return func(c *Config) {
		c.ListenAddr = addr
	}
}

// WithDiscoveryPort sets the UDP port for LAN announcements.
func WithDiscoveryPort(port int) ConfigOption {
	return func(c *Config) {
		c.DiscoveryPort = port
	}
}

// WithAnnounceInterval sets the presence broadcast interval.
func WithAnnounceInterval(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.AnnounceInterval = d
	}
}

// WithConnectTimeout sets the outbound dial timeout.
func WithConnectTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.ConnectTimeout = d
	}
}

// WithExitKey sets the console key that stops the input producer.
func WithExitKey(key rune) ConfigOption {
	return func(c *Config) {
		c.ExitKey = key
	}
}

// WithTickRate sets the interval between Tick events.
func WithTickRate(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.TickRate = d
	}
}

// WithEventBufferSize sets the buffer size for the event queues.
func WithEventBufferSize(size int) ConfigOption {
	return func(c *Config) {
		c.EventBufferSize = size
	}
}

// WithLogger sets the logger for the node.
// The logger must be safe for concurrent use.
func WithLogger(l Logger) ConfigOption {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithMetrics sets the metrics collector for the node.
// The metrics collector must be safe for concurrent use.
func WithMetrics(m Metrics) ConfigOption {
	return func(c *Config) {
		c.Metrics = m
	}
}

// NewConfig creates a new Config with the required fields and applies
// any provided options. It applies defaults for unset optional fields
// but does not validate the configuration.
func NewConfig(
	keypair *crypto.Keypair,
	addressBookPath string,
	opts ...ConfigOption,
) *Config {
	c := &Config{
		Keypair:         keypair,
		AddressBookPath: addressBookPath,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.applyDefaults()
	return c
}
