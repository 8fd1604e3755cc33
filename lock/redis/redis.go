// Package redis implements lock.Store on top of Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/enverbisevac/dmutex/lock"
	"github.com/redis/go-redis/v9"
)

var (
	_ lock.Store  = (*Store)(nil)
	_ lock.Pinger = (*Store)(nil)
)

var deleteIfEqualsScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// Store keeps lock records as plain redis strings.
type Store struct {
	config Config
	client redis.UniversalClient
}

// New creates a store using client, which may be a single node, sentinel
// or cluster client.
func New(client redis.UniversalClient, options ...Option) *Store {
	config := Config{
		OperationTimeout: DefaultOperationTimeout,
	}
	for _, opt := range options {
		opt.Apply(&config)
	}

	return &Store{
		config: config,
		client: client,
	}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || s.config.OperationTimeout == 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.config.OperationTimeout)
}

// Get returns the value stored at key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return value, true, nil
}

// Set overwrites key with value.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// SetIfAbsent writes value with SET NX, optionally with an expiry.
func (s *Store) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %q: %w", key, err)
	}
	return ok, nil
}

// DeleteIfEquals removes key in a single script call when it holds
// expected.
func (s *Store) DeleteIfEquals(ctx context.Context, key, expected string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := deleteIfEqualsScript.Run(ctx, s.client, []string{key}, expected).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis delete %q: %w", key, err)
	}
	return n == 1, nil
}

// Ping checks the connection to redis.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.client.Ping(ctx).Err()
}
