package lock

import (
	"context"

	"github.com/enverbisevac/dmutex/errors"
	"go.opentelemetry.io/otel"
)

const tracerName = "github.com/enverbisevac/dmutex/lock"

// Service creates mutexes backed by a shared Store.
type Service struct {
	config Config
	store  Store
	stats  stats
}

// New creates a new lock service. Options set defaults for every mutex
// created by the service.
func New(store Store, options ...Option) *Service {
	config := Config{
		PollInterval: DefaultPollInterval,
		IdentityFunc: NewIdentity,
		Tracer:       otel.Tracer(tracerName),
	}
	for _, opt := range options {
		opt.Apply(&config)
	}

	return &Service{
		config: config,
		store:  store,
	}
}

// NewLock creates a new mutex for key. Options override the service
// defaults for this mutex only.
func (s *Service) NewLock(key string, options ...Option) *Mutex {
	config := s.config
	for _, opt := range options {
		opt.Apply(&config)
	}

	return &Mutex{
		service: s,
		config:  config,
		name:    key,
		key:     config.key(key),
	}
}

// Run acquires the lock for key, runs fn and releases the lock.
func (s *Service) Run(ctx context.Context, key string, fn func(ctx context.Context) error, options ...Option) error {
	return s.NewLock(key, options...).Run(ctx, fn)
}

// Run acquires the lock for key on s, runs fn exactly once while holding it
// and releases the lock on every exit path. It returns fn's result.
func Run[T any](ctx context.Context, s *Service, key string, fn func(ctx context.Context) (T, error), options ...Option) (T, error) {
	var result T
	err := s.NewLock(key, options...).Run(ctx, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	return result, err
}

// CurrentHolder returns the identity currently stored for key. The answer
// may be stale as soon as it is returned and must not be used for
// synchronization.
func (s *Service) CurrentHolder(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, errors.InvalidArgument("lock: empty key")
	}
	holder, found, err := s.store.Get(ctx, s.config.key(key))
	if err != nil {
		return "", false, errors.Unavailable("lock %q: current holder", key).Source(err)
	}
	return holder, found, nil
}

// ForceUnlock removes the record for key if it still holds id. It is meant
// for operators clearing the lock of a crashed holder.
func (s *Service) ForceUnlock(ctx context.Context, key, id string) (bool, error) {
	if key == "" || id == "" {
		return false, errors.InvalidArgument("lock: key and id are required")
	}
	deleted, err := s.store.DeleteIfEquals(ctx, s.config.key(key), id)
	if err != nil {
		return false, errors.Unavailable("lock %q: force unlock", key).Source(err)
	}
	return deleted, nil
}

// Ping verifies the store connection when the store supports it.
func (s *Service) Ping(ctx context.Context) error {
	p, ok := s.store.(Pinger)
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return errors.Unavailable("lock: store unavailable").Source(err)
	}
	return nil
}

// Stats returns a snapshot of the service statistics.
func (s *Service) Stats() Stats {
	return s.stats.snapshot()
}
