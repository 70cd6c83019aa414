package session

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/kiteticker-go/kiteticker/metrics"
	"github.com/kiteticker-go/kiteticker/middleware"
	"github.com/kiteticker-go/kiteticker/pool"
)

// Credentials authenticate a session's WebSocket upgrade via query
// parameters, following the upstream's `?api_key=...&access_token=...`
// connect-time convention.
type Credentials struct {
	APIKey      string
	AccessToken string
}

// Config is a session's construction-time configuration surface.
// Dial starts from the defaults and applies the supplied Options over them.
type Config struct {
	Host string // WebSocket host, no scheme (e.g. "ws.example.broker")

	// RawOnly, when true, skips decoding entirely: the parser task
	// still runs but never produces parsed messages, so consumers must
	// use the raw-frame broadcast and project typed views over the bytes.
	RawOnly bool

	DialTimeout      time.Duration
	ParseQueueSize   int // bounded parse-queue capacity, default 4096
	RawBufferSize    int // raw-frame broadcast ring capacity
	ParsedBufferSize int // parsed-message broadcast ring capacity

	Middleware middleware.FrameMiddleware
	Metrics    *metrics.SocketCollector
	BufferPool *pool.BufferPool
	Logger     *zerolog.Logger
}

// Option configures a Config via the functional-options pattern.
type Option func(*Config)

// WithHost sets the WebSocket host (no scheme) the session dials.
func WithHost(host string) Option {
	return func(c *Config) { c.Host = host }
}

// WithRawOnly sets the session's raw-only flag.
func WithRawOnly(rawOnly bool) Option {
	return func(c *Config) { c.RawOnly = rawOnly }
}

// WithDialTimeout overrides the connect-time hard timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Config) { c.DialTimeout = d }
}

// WithParseQueueSize overrides the bounded parse-queue capacity.
func WithParseQueueSize(n int) Option {
	return func(c *Config) { c.ParseQueueSize = n }
}

// WithBufferSizes overrides the raw-frame and parsed-message broadcast
// ring capacities.
func WithBufferSizes(raw, parsed int) Option {
	return func(c *Config) { c.RawBufferSize = raw; c.ParsedBufferSize = parsed }
}

// WithMiddleware installs a FrameMiddleware chain wrapping the reader's
// hand-off to the parse queue.
func WithMiddleware(mw middleware.FrameMiddleware) Option {
	return func(c *Config) { c.Middleware = mw }
}

// WithMetrics installs a socket-level metrics collector.
func WithMetrics(m *metrics.SocketCollector) Option {
	return func(c *Config) { c.Metrics = m }
}

// WithBufferPool installs a buffer pool that backs the reader's tagged
// copies of frames handed to the parse queue; without one (the default)
// each copy is a fresh allocation.
func WithBufferPool(p *pool.BufferPool) Option {
	return func(c *Config) { c.BufferPool = p }
}

// WithLogger installs a structured logger; the default is a disabled
// (Nop) logger, so the library stays silent unless a caller opts in.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

func defaultConfig() Config {
	nop := zerolog.Nop()
	return Config{
		DialTimeout:      30 * time.Second,
		ParseQueueSize:   4096,
		RawBufferSize:    4096,
		ParsedBufferSize: 4096,
		Logger:           &nop,
	}
}

func newConfig(opts ...Option) Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		nop := zerolog.Nop()
		cfg.Logger = &nop
	}
	if cfg.ParseQueueSize <= 0 {
		cfg.ParseQueueSize = 4096
	}
	if cfg.RawBufferSize <= 0 {
		cfg.RawBufferSize = 4096
	}
	if cfg.ParsedBufferSize <= 0 {
		cfg.ParsedBufferSize = 4096
	}
	return cfg
}
