package manager

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kiteticker-go/kiteticker/session"
	"github.com/kiteticker-go/kiteticker/wire"
)

// ChannelId identifies one of the manager's fixed-size pool of managed
// connections. Carried over from the original's enum (not just a plain
// int) so callers get FromIndex/ToIndex/All helpers instead of raw
// index arithmetic scattered through call sites.
type ChannelId int

const (
	Connection1 ChannelId = iota
	Connection2
	Connection3
)

// ChannelIdFromIndex converts a zero-based slot index into a ChannelId,
// reporting false for anything outside the configured pool size.
func ChannelIdFromIndex(index, max int) (ChannelId, bool) {
	if index < 0 || index >= max {
		return 0, false
	}
	return ChannelId(index), true
}

// ToIndex returns the zero-based slot index for this ChannelId.
func (c ChannelId) ToIndex() int { return int(c) }

// AllChannelIds returns every ChannelId for a pool of the given size.
func AllChannelIds(max int) []ChannelId {
	ids := make([]ChannelId, max)
	for i := range ids {
		ids[i] = ChannelId(i)
	}
	return ids
}

// Config is the manager's construction-time configuration surface.
type Config struct {
	Host        string
	Credentials session.Credentials

	MaxConnections          int
	MaxSymbolsPerConnection int
	ConnectionBufferSize    int
	ParserBufferSize        int
	ConnectionTimeout       time.Duration
	HealthCheckInterval     time.Duration
	MaxReconnectAttempts    int
	ReconnectDelay          time.Duration
	EnableDedicatedParsers  bool
	DefaultMode             wire.Mode
	HeartbeatLiveness       time.Duration
	RawOnly                 bool

	// ModeChangeFallback: when true, ChangeMode unsubscribes then
	// resubscribes instead of sending a bare mode command, for callers
	// whose upstream is confirmed to silently ignore a widening mode
	// change.
	ModeChangeFallback bool

	Logger *zerolog.Logger
}

// Option configures a Config via the functional-options pattern.
type Option func(*Config)

func WithHost(host string) Option                { return func(c *Config) { c.Host = host } }
func WithCredentials(creds session.Credentials) Option {
	return func(c *Config) { c.Credentials = creds }
}
func WithMaxConnections(n int) Option            { return func(c *Config) { c.MaxConnections = n } }
func WithMaxSymbolsPerConnection(n int) Option {
	return func(c *Config) { c.MaxSymbolsPerConnection = n }
}
func WithConnectionBufferSize(n int) Option { return func(c *Config) { c.ConnectionBufferSize = n } }
func WithParserBufferSize(n int) Option     { return func(c *Config) { c.ParserBufferSize = n } }
func WithConnectionTimeout(d time.Duration) Option {
	return func(c *Config) { c.ConnectionTimeout = d }
}
func WithHealthCheckInterval(d time.Duration) Option {
	return func(c *Config) { c.HealthCheckInterval = d }
}
func WithMaxReconnectAttempts(n int) Option { return func(c *Config) { c.MaxReconnectAttempts = n } }
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Config) { c.ReconnectDelay = d }
}
func WithDedicatedParsers(enabled bool) Option {
	return func(c *Config) { c.EnableDedicatedParsers = enabled }
}
func WithDefaultMode(m wire.Mode) Option { return func(c *Config) { c.DefaultMode = m } }
func WithHeartbeatLiveness(d time.Duration) Option {
	return func(c *Config) { c.HeartbeatLiveness = d }
}
func WithRawOnly(rawOnly bool) Option { return func(c *Config) { c.RawOnly = rawOnly } }
func WithModeChangeFallback(fallback bool) Option {
	return func(c *Config) { c.ModeChangeFallback = fallback }
}
func WithLogger(logger *zerolog.Logger) Option { return func(c *Config) { c.Logger = logger } }

// DefaultConfig returns the package's recommended default configuration.
func DefaultConfig() Config {
	nop := zerolog.Nop()
	return Config{
		MaxConnections:          3,
		MaxSymbolsPerConnection: 3000,
		ConnectionBufferSize:    5000,
		ParserBufferSize:        10000,
		ConnectionTimeout:       30 * time.Second,
		HealthCheckInterval:     10 * time.Second,
		MaxReconnectAttempts:    5,
		ReconnectDelay:          2 * time.Second,
		EnableDedicatedParsers:  true,
		DefaultMode:             wire.ModeQuote,
		HeartbeatLiveness:       10 * time.Second,
		Logger:                  &nop,
	}
}

func newConfig(opts ...Option) (Config, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Host == "" {
		return cfg, fmt.Errorf("manager: Config.Host must be set")
	}
	if cfg.MaxConnections <= 0 {
		return cfg, fmt.Errorf("manager: Config.MaxConnections must be positive")
	}
	if cfg.Logger == nil {
		nop := zerolog.Nop()
		cfg.Logger = &nop
	}
	return cfg, nil
}

// ConnectionStats is the eventually-consistent (flushed at roughly
// 1Hz) stats snapshot for one managed connection.
type ConnectionStats struct {
	ConnectionID     int
	IsConnected      bool
	SymbolCount      int
	MessagesReceived uint64
	ErrorsCount      uint64
	LastMessageTime  time.Time
	ConnectionUptime time.Duration
}

// ManagerStats aggregates ConnectionStats across the whole pool.
type ManagerStats struct {
	TotalSymbols          int
	ActiveConnections     int
	TotalMessagesReceived uint64
	TotalErrors           uint64
	Uptime                time.Duration
	ConnectionStats       []ConnectionStats
}

// HealthSummary is the quick-status-check view produced by the health
// monitor.
type HealthSummary struct {
	HealthyCount       int
	UnhealthyIDs       []int
	TotalSymbols       int
	TotalMessages      uint64
	TotalErrors        uint64
	ActiveMessageFlows int
	Uptime             time.Duration
}

func (h HealthSummary) totalConnections() int { return h.HealthyCount + len(h.UnhealthyIDs) }

// IsHealthy reports whether every connection is healthy and no errors
// have been recorded.
func (h HealthSummary) IsHealthy() bool { return len(h.UnhealthyIDs) == 0 && h.TotalErrors == 0 }

// IsDegraded reports whether some, but not all, connections are
// unhealthy.
func (h HealthSummary) IsDegraded() bool {
	return len(h.UnhealthyIDs) > 0 && h.HealthyCount > 0
}

// IsCritical reports whether every connection is unhealthy.
func (h HealthSummary) IsCritical() bool { return h.HealthyCount == 0 }

// HealthPercentage returns the fraction of connections that are
// healthy, as a percentage; 100 when the pool is empty.
func (h HealthSummary) HealthPercentage() float64 {
	total := h.totalConnections()
	if total == 0 {
		return 100
	}
	return float64(h.HealthyCount) / float64(total) * 100
}
