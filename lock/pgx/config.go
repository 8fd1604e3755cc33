package pgx

const DefaultTableName = "dmutex_locks"

// Config holds the configuration for the pgx lock store.
type Config struct {
	// TableName is the table holding lock records.
	TableName string
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

// WithTableName returns an option that sets the table used for lock
// records.
func WithTableName(value string) Option {
	return OptionFunc(func(c *Config) {
		if value != "" {
			c.TableName = value
		}
	})
}
