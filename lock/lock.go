// Package lock implements a named mutual-exclusion lock whose state lives
// in a shared key-value store, so that independent processes (and hosts)
// contending on the same key run their critical sections one at a time.
//
// A lock record is the single source of truth for ownership: the key is
// either absent or holds the identity of exactly one Mutex. Acquisition is
// a single atomic set-if-absent; release deletes the record only while it
// still carries the caller's identity.
package lock

import (
	"context"
	"time"
)

// Locker represents a distributed lock that can be acquired and released.
type Locker interface {
	// Lock acquires the lock, blocking until it's available, the configured
	// timeout elapses or context is cancelled.
	Lock(ctx context.Context) error

	// TryLock attempts to acquire the lock without blocking.
	// Returns true if the lock was acquired, false otherwise.
	TryLock(ctx context.Context) (bool, error)

	// Unlock releases the lock if it is still owned by this locker.
	Unlock(ctx context.Context) error
}

// Store is the key-value backend shared by all contenders.
type Store interface {
	// Get returns the current value for key. found is false when the key is
	// absent or expired.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set overwrites key unconditionally. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetIfAbsent atomically writes value only if key is absent and reports
	// whether the write happened. A zero ttl means no expiry.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// DeleteIfEquals atomically removes key only if it currently holds
	// expected and reports whether it was removed.
	DeleteIfEquals(ctx context.Context, key, expected string) (bool, error)
}

// Pinger is implemented by stores that can verify their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}
