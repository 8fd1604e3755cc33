package sqlite

import "time"

const DefaultTableName = "dmutex_locks"

// Config holds the configuration for the sqlite lock store.
type Config struct {
	// TableName is the table holding lock records.
	TableName string

	// BusyTimeout is how long a connection waits for the database write
	// lock held by another process before failing. Used by Open.
	BusyTimeout time.Duration
}

// Option configures a lock store instance.
type Option interface {
	Apply(*Config)
}

// OptionFunc is a function that configures a lock config.
type OptionFunc func(*Config)

// Apply calls f(config).
func (f OptionFunc) Apply(config *Config) {
	f(config)
}

// WithTableName sets the table used for lock records.
func WithTableName(value string) Option {
	return OptionFunc(func(c *Config) {
		if value != "" {
			c.TableName = value
		}
	})
}

// WithBusyTimeout sets the sqlite busy timeout.
func WithBusyTimeout(value time.Duration) Option {
	return OptionFunc(func(c *Config) {
		if value >= 0 {
			c.BusyTimeout = value
		}
	})
}
