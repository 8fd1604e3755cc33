// Package storetest provides a conformance suite for lock.Store
// implementations.
package storetest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/enverbisevac/dmutex/lock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Suite describes the store under test.
type Suite struct {
	// New returns a ready store. Cleanup should be registered on t.
	New func(t *testing.T) lock.Store

	// Advance moves the store's clock forward. Defaults to time.Sleep.
	Advance func(d time.Duration)

	// TTL is the expiry used by the expiration tests. Defaults to 200ms.
	TTL time.Duration
}

// Run executes the conformance tests against the store returned by s.New.
func Run(t *testing.T, s Suite) {
	t.Helper()

	if s.Advance == nil {
		s.Advance = time.Sleep
	}
	if s.TTL == 0 {
		s.TTL = 200 * time.Millisecond
	}

	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, s) })
	t.Run("SetAndGet", func(t *testing.T) { testSetAndGet(t, s) })
	t.Run("SetIfAbsent", func(t *testing.T) { testSetIfAbsent(t, s) })
	t.Run("SetIfAbsentTTL", func(t *testing.T) { testSetIfAbsentTTL(t, s) })
	t.Run("SetTTL", func(t *testing.T) { testSetTTL(t, s) })
	t.Run("SubMillisecondTTL", func(t *testing.T) { testSubMillisecondTTL(t, s) })
	t.Run("DeleteIfEquals", func(t *testing.T) { testDeleteIfEquals(t, s) })
	t.Run("ConcurrentSetIfAbsent", func(t *testing.T) { testConcurrentSetIfAbsent(t, s) })
}

// Key returns a key unique to the running test, so suites can share a
// long-lived backend.
func Key(t *testing.T) string {
	return "storetest:" + t.Name() + ":" + uuid.NewString()
}

func testGetMissing(t *testing.T, s Suite) {
	store := s.New(t)
	ctx := context.Background()

	value, found, err := store.Get(ctx, Key(t))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, value)
}

func testSetAndGet(t *testing.T, s Suite) {
	store := s.New(t)
	ctx := context.Background()
	key := Key(t)

	require.NoError(t, store.Set(ctx, key, "first", 0))
	require.NoError(t, store.Set(ctx, key, "second", 0))

	value, found, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "second", value)
}

func testSetIfAbsent(t *testing.T, s Suite) {
	store := s.New(t)
	ctx := context.Background()
	key := Key(t)

	ok, err := store.SetIfAbsent(ctx, key, "owner-1", 0)
	require.NoError(t, err)
	assert.True(t, ok, "first write should win")

	ok, err = store.SetIfAbsent(ctx, key, "owner-2", 0)
	require.NoError(t, err)
	assert.False(t, ok, "second write should lose")

	value, found, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "owner-1", value)
}

func testSetIfAbsentTTL(t *testing.T, s Suite) {
	store := s.New(t)
	ctx := context.Background()
	key := Key(t)

	ok, err := store.SetIfAbsent(ctx, key, "owner-1", s.TTL)
	require.NoError(t, err)
	require.True(t, ok)

	s.Advance(s.TTL + s.TTL/2)

	_, found, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found, "record should expire after ttl")

	ok, err = store.SetIfAbsent(ctx, key, "owner-2", 0)
	require.NoError(t, err)
	assert.True(t, ok, "expired record should not block acquisition")

	value, _, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "owner-2", value)
}

func testSetTTL(t *testing.T, s Suite) {
	store := s.New(t)
	ctx := context.Background()
	key := Key(t)

	require.NoError(t, store.Set(ctx, key, "value", s.TTL))

	_, found, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)

	s.Advance(s.TTL + s.TTL/2)

	_, found, err = store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)
}

func testSubMillisecondTTL(t *testing.T, s Suite) {
	store := s.New(t)
	ctx := context.Background()
	key := Key(t)

	ok, err := store.SetIfAbsent(ctx, key, "owner-1", 500*time.Microsecond)
	require.NoError(t, err)
	require.True(t, ok)

	s.Advance(50 * time.Millisecond)

	_, found, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found, "a positive ttl must expire, however small")
}

func testDeleteIfEquals(t *testing.T, s Suite) {
	store := s.New(t)
	ctx := context.Background()
	key := Key(t)

	deleted, err := store.DeleteIfEquals(ctx, key, "owner-1")
	require.NoError(t, err)
	assert.False(t, deleted, "missing key should not be deleted")

	require.NoError(t, store.Set(ctx, key, "owner-1", 0))

	deleted, err = store.DeleteIfEquals(ctx, key, "owner-2")
	require.NoError(t, err)
	assert.False(t, deleted, "foreign record must not be deleted")

	value, found, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "owner-1", value)

	deleted, err = store.DeleteIfEquals(ctx, key, "owner-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, found, err = store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)
}

func testConcurrentSetIfAbsent(t *testing.T, s Suite) {
	store := s.New(t)
	ctx := context.Background()
	key := Key(t)

	const contenders = 20
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
		start   = make(chan struct{})
	)
	for i := range contenders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := store.SetIfAbsent(ctx, key, uuid.NewString(), 0)
			if err != nil {
				t.Errorf("contender %d: SetIfAbsent() error = %v", i, err)
				return
			}
			if ok {
				winners.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load(), "exactly one contender should win")
}
