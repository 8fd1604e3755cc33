package inmem

import "time"

// Config holds the configuration for the in-memory store.
type Config struct {
	// CleanupInterval is the period of the janitor that reclaims expired
	// records. Zero disables the janitor; expired records are then only
	// reclaimed when they are read or overwritten.
	CleanupInterval time.Duration
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

// WithCleanupInterval sets how often expired records are removed.
func WithCleanupInterval(value time.Duration) Option {
	return OptionFunc(func(c *Config) {
		if value >= 0 {
			c.CleanupInterval = value
		}
	})
}
