package gobolt

import (
	"log"
	"time"
)

// Logger is satisfied by the standard library's *log.Logger; callers that
// already wire structured logging elsewhere can supply their own
// implementation instead.
type Logger interface {
	Printf(format string, args ...any)
}

// Config bounds connection pooling, timeouts, and retry behavior for a
// Driver.
type Config struct {
	MinConnectionPoolSize    int
	MaxConnectionPoolSize    int
	MaxConnectionIdleTime    time.Duration
	ConnectionAcquireTimeout time.Duration
	ConnectTimeout           time.Duration
	MaxTransactionRetryTime  time.Duration
	UserAgent                string
	Logger                   Logger
	detector                 *QueryDetector
}

// Option configures a Config. The zero Config plus applied Options is
// always valid; every field has a sane default filled in by NewDriver.
type Option func(*Config)

// WithMaxConnectionPoolSize bounds the number of live connections per
// target address.
func WithMaxConnectionPoolSize(n int) Option {
	return func(c *Config) { c.MaxConnectionPoolSize = n }
}

// WithMinConnectionPoolSize pre-warms the pool with n connections in the
// background as soon as the Driver is created, so early Acquire calls
// don't each pay a dial's latency. The default is 1; 0 dials lazily only.
func WithMinConnectionPoolSize(n int) Option {
	return func(c *Config) { c.MinConnectionPoolSize = n }
}

// WithMaxConnectionIdleTime evicts idle pooled connections older than d.
func WithMaxConnectionIdleTime(d time.Duration) Option {
	return func(c *Config) { c.MaxConnectionIdleTime = d }
}

// WithConnectionAcquireTimeout bounds how long Acquire waits for a free
// slot before failing with PoolExhausted.
func WithConnectionAcquireTimeout(d time.Duration) Option {
	return func(c *Config) { c.ConnectionAcquireTimeout = d }
}

// WithConnectTimeout bounds TCP connect, TLS handshake, and the Bolt
// version-negotiation handshake combined.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Config) { c.ConnectTimeout = d }
}

// WithMaxTransactionRetryTime bounds how long ExecuteRead/ExecuteWrite
// keep retrying a transient failure before giving up.
func WithMaxTransactionRetryTime(d time.Duration) Option {
	return func(c *Config) { c.MaxTransactionRetryTime = d }
}

// WithUserAgent overrides the user_agent field sent in HELLO.
func WithUserAgent(agent string) Option {
	return func(c *Config) { c.UserAgent = agent }
}

// WithLogger installs a Logger for driver-level diagnostics (discarded
// connections, failed RESETs, transaction commit/rollback outcomes, N+1
// query alerts). The default is a no-op logger.
func WithLogger(l Logger) Option {
	return func(c *Config) { c.Logger = l }
}

const (
	defaultMinConnectionPoolSize    = 1
	defaultMaxConnectionPoolSize    = 100
	defaultMaxConnectionIdleTime    = 0 // 0 means "no idle eviction"
	defaultConnectionAcquireTimeout = 60 * time.Second
	defaultConnectTimeout           = 10 * time.Second
	defaultMaxTransactionRetryTime  = 30 * time.Second
	defaultUserAgent                = "gobolt/0.1"
)

type noopLogger struct{}

func (noopLogger) Printf(string, ...any) {}

func newConfig(opts ...Option) Config {
	cfg := Config{
		MinConnectionPoolSize:    defaultMinConnectionPoolSize,
		MaxConnectionPoolSize:    defaultMaxConnectionPoolSize,
		MaxConnectionIdleTime:    defaultMaxConnectionIdleTime,
		ConnectionAcquireTimeout: defaultConnectionAcquireTimeout,
		ConnectTimeout:           defaultConnectTimeout,
		MaxTransactionRetryTime:  defaultMaxTransactionRetryTime,
		UserAgent:                defaultUserAgent,
		Logger:                   noopLogger{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	return cfg
}

// StdLogger adapts the standard library logger to the Logger interface,
// for callers who want driver diagnostics on stderr without writing their
// own adapter.
func StdLogger() Logger { return log.Default() }
