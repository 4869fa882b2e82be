package session

import (
	"log/slog"
	"time"

	"firestige.xyz/airsniff/internal/metrics"
)

// Defaults for a new Session.
const (
	DefaultCommandTimeout = 3 * time.Second
	DefaultCloseTimeout   = 2 * time.Second
	DefaultReadTimeout    = 50 * time.Millisecond
	DefaultReadBufferSize = 4096
)

// Config holds the session configuration.
type Config struct {
	// CommandTimeout bounds the wait for a command response
	CommandTimeout time.Duration

	// CloseTimeout bounds how long Close waits for the reader to exit
	// before closing the transport underneath it
	CloseTimeout time.Duration

	// ReadTimeout is applied to the transport so the reader notices
	// cancellation promptly
	ReadTimeout time.Duration

	// ReadBufferSize is the size of each transport read
	ReadBufferSize int

	// Logger receives session diagnostics (optional)
	Logger *slog.Logger

	// Metrics receives counters (optional)
	Metrics *metrics.Collectors
}

func defaultConfig() Config {
	return Config{
		CommandTimeout: DefaultCommandTimeout,
		CloseTimeout:   DefaultCloseTimeout,
		ReadTimeout:    DefaultReadTimeout,
		ReadBufferSize: DefaultReadBufferSize,
	}
}

// Option is a functional option for configuring a Session.
type Option func(*Config)

// WithCommandTimeout sets how long Execute waits for a response.
//
// Example:
//
//	s, err := session.New(tr, handler, session.WithCommandTimeout(time.Second))
func WithCommandTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.CommandTimeout = d
		}
	}
}

// WithCloseTimeout sets how long Close waits for the reader.
func WithCloseTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.CloseTimeout = d
		}
	}
}

// WithReadTimeout sets the transport read timeout.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.ReadTimeout = d
		}
	}
}

// WithReadBufferSize sets the size of each transport read.
func WithReadBufferSize(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.ReadBufferSize = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

func WithMetrics(m *metrics.Collectors) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}
