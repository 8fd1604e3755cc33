// Package inmem implements lock.Store with a process-local map. It is
// useful for tests and for coordinating goroutines of a single process.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/enverbisevac/dmutex/lock"
)

var _ lock.Store = (*Store)(nil)

// record represents a stored value with an optional expiration time.
type record struct {
	value  string
	expiry time.Time
}

// isExpired checks if the record has expired. A zero expiry never expires.
func (r record) isExpired(now time.Time) bool {
	return !r.expiry.IsZero() && !now.Before(r.expiry)
}

// Store keeps lock records in memory with support for time-to-live
// expiration.
type Store struct {
	config Config

	mu      sync.Mutex
	records map[string]record

	once sync.Once
	done chan struct{}
}

// New creates a new in-memory store and starts a goroutine to periodically
// remove expired records. Call Close to stop it.
func New(options ...Option) *Store {
	config := Config{
		CleanupInterval: 5 * time.Second,
	}
	for _, opt := range options {
		opt.Apply(&config)
	}

	s := &Store{
		config:  config,
		records: make(map[string]record),
		done:    make(chan struct{}),
	}

	if config.CleanupInterval > 0 {
		go s.janitor()
	}

	return s
}

func (s *Store) janitor() {
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for key, r := range s.records {
				if r.isExpired(now) {
					delete(s.records, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Close stops the janitor. The store stays usable.
func (s *Store) Close() error {
	s.once.Do(func() {
		close(s.done)
	})
	return nil
}

// lookup returns the live record for key, dropping it if it has expired.
// Callers must hold s.mu.
func (s *Store) lookup(key string) (record, bool) {
	r, found := s.records[key]
	if !found {
		return record{}, false
	}
	if r.isExpired(time.Now()) {
		delete(s.records, key)
		return record{}, false
	}
	return r, true
}

func newRecord(value string, ttl time.Duration) record {
	r := record{value: value}
	if ttl > 0 {
		r.expiry = time.Now().Add(ttl)
	}
	return r
}

// Get retrieves the value stored for key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, found := s.lookup(key)
	return r.value, found, nil
}

// Set stores value for key, replacing any previous record.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = newRecord(value, ttl)
	return nil
}

// SetIfAbsent stores value for key only if no live record exists.
func (s *Store) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.lookup(key); found {
		return false, nil
	}
	s.records[key] = newRecord(value, ttl)
	return true, nil
}

// DeleteIfEquals removes the record for key if it holds expected.
func (s *Store) DeleteIfEquals(ctx context.Context, key, expected string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, found := s.lookup(key)
	if !found || r.value != expected {
		return false, nil
	}
	delete(s.records, key)
	return true, nil
}

// Len returns the number of records, including expired ones not yet
// reclaimed.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}
