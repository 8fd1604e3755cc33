package lock

import (
	"time"

	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	namespaceSeparator  = ":"
)

// Config holds the configuration for the lock service and its mutexes.
type Config struct {
	// Namespace is prepended to every key to separate locks from different
	// applications sharing one store.
	Namespace string

	// PollInterval is the fixed delay between acquisition attempts.
	PollInterval time.Duration

	// Timeout bounds how long Lock waits. Zero waits until the context is
	// done.
	Timeout time.Duration

	// TTL asks the store to expire the lock record even if it is never
	// released. Zero disables expiry.
	TTL time.Duration

	// IdentityFunc generates the identity of each Mutex.
	IdentityFunc func() string

	// Tracer is used to record acquisition and run spans.
	Tracer trace.Tracer
}

// Option configures a lock service or a single mutex.
type Option interface {
	Apply(*Config)
}

// OptionFunc is a function that configures a lock config.
type OptionFunc func(*Config)

// Apply calls f(config).
func (f OptionFunc) Apply(config *Config) {
	f(config)
}

// WithNamespace returns an option that sets the key prefix for locks.
func WithNamespace(value string) Option {
	return OptionFunc(func(c *Config) {
		c.Namespace = value
	})
}

// WithPollInterval sets the delay between acquisition attempts.
// Non-positive values are ignored.
func WithPollInterval(value time.Duration) Option {
	return OptionFunc(func(c *Config) {
		if value > 0 {
			c.PollInterval = value
		}
	})
}

// WithTimeout bounds the time Lock waits for the record to become free.
func WithTimeout(value time.Duration) Option {
	return OptionFunc(func(c *Config) {
		if value >= 0 {
			c.Timeout = value
		}
	})
}

// WithTTL sets the expiry applied to the lock record when it is written.
// The store clears the record after ttl even if the holder never releases
// it. It does not replace Unlock.
func WithTTL(value time.Duration) Option {
	return OptionFunc(func(c *Config) {
		if value >= 0 {
			c.TTL = value
		}
	})
}

// WithIdentityFunc replaces the identity generator.
func WithIdentityFunc(fn func() string) Option {
	return OptionFunc(func(c *Config) {
		if fn != nil {
			c.IdentityFunc = fn
		}
	})
}

// WithTracer sets the tracer used for lock spans.
func WithTracer(tracer trace.Tracer) Option {
	return OptionFunc(func(c *Config) {
		if tracer != nil {
			c.Tracer = tracer
		}
	})
}

func (c Config) key(name string) string {
	if c.Namespace == "" {
		return name
	}
	return c.Namespace + namespaceSeparator + name
}
