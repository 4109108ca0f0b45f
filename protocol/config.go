package protocol

import (
	"time"

	"go.uber.org/zap"

	"github.com/nickolajgrishuk/relaygram/pkg/metrics"
)

// DefaultHandshakeTimeout bounds how long StateConnecting waits for a
// SYN-ACK (or a crossing SYN) before reverting to StateIdle. The server side
// never waits here: receiving a SYN moves it straight to StateConnected.
const DefaultHandshakeTimeout = 5 * time.Second

// DefaultDisconnectGrace bounds how long StateDisconnecting waits for its
// FIN to be acked before reverting to StateIdle regardless.
const DefaultDisconnectGrace = 2 * time.Second

// DefaultBufferSize is the per-queue capacity of the incoming/outgoing
// PacketBuffer when WithBufferSize is not supplied.
const DefaultBufferSize = 1024

// DefaultMaxAttempts is the per-frame retransmission ceiling when
// WithMaxAttempts is not supplied, matching wire.MaxAttempts.
const DefaultMaxAttempts = 5

// Config holds every tunable of a NetworkProtocol instance. Build one
// through New's functional options rather than constructing it directly.
type Config struct {
	Timeout         time.Duration
	DisconnectGrace time.Duration
	MTU             uint
	MaxAttempts     uint8
	BufferSize      int
	EncryptionKey   []byte
	Logger          *zap.Logger
	Metrics         *metrics.Metrics
}

func defaultConfig() Config {
	return Config{
		Timeout:         DefaultHandshakeTimeout,
		DisconnectGrace: DefaultDisconnectGrace,
		BufferSize:      DefaultBufferSize,
		MaxAttempts:     DefaultMaxAttempts,
		Logger:          zap.NewNop(),
	}
}

// Option configures a NetworkProtocol at construction time.
type Option func(*Config)

// WithLogger sets the structured logger used for every connection event.
func WithLogger(log *zap.Logger) Option {
	return func(c *Config) { c.Logger = log }
}

// WithMetrics attaches a Prometheus metrics sink, updated once per tick.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Config) { c.Metrics = m }
}

// WithTimeout overrides the handshake timeout (default
// DefaultHandshakeTimeout).
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithDisconnectGrace overrides how long StateDisconnecting waits for its
// FIN to be acked before forcing StateIdle.
func WithDisconnectGrace(d time.Duration) Option {
	return func(c *Config) { c.DisconnectGrace = d }
}

// WithMTU pins the path MTU instead of letting the socket discover it.
func WithMTU(mtu uint) Option {
	return func(c *Config) { c.MTU = mtu }
}

// WithMaxAttempts overrides the per-frame retransmission ceiling.
func WithMaxAttempts(n uint8) Option {
	return func(c *Config) { c.MaxAttempts = n }
}

// WithBufferSize overrides the incoming/outgoing queue capacity.
func WithBufferSize(n int) Option {
	return func(c *Config) { c.BufferSize = n }
}

// WithEncryptionKey provisions a fixed 256-bit key instead of generating a
// random one at New time. Both peers must be given the same key
// out-of-band; relaygram has no key exchange.
func WithEncryptionKey(key []byte) Option {
	return func(c *Config) { c.EncryptionKey = key }
}
