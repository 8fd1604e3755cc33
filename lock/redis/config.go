package redis

import "time"

var (
	DefaultOperationTimeout = 10 * time.Second
)

// Config holds the configuration for the redis store.
type Config struct {
	// OperationTimeout bounds a single store call when the caller's
	// context has no deadline. Zero disables the bound.
	OperationTimeout time.Duration
}

// Option configures a store instance.
type Option interface {
	Apply(*Config)
}

// OptionFunc is a function that configures a store config.
type OptionFunc func(*Config)

// Apply calls f(config).
func (f OptionFunc) Apply(config *Config) {
	f(config)
}

// WithOperationTimeout sets the per-call timeout.
func WithOperationTimeout(value time.Duration) Option {
	return OptionFunc(func(c *Config) {
		if value >= 0 {
			c.OperationTimeout = value
		}
	})
}
