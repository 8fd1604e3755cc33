package pgx

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/enverbisevac/dmutex/lock"
	"github.com/enverbisevac/dmutex/lock/storetest"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const testTable = "test_dmutex_locks"

func getTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		if testing.Short() {
			t.Skip("TEST_DATABASE_URL not set, skipping pgx lock tests")
		}
		testcontainers.SkipIfProviderIsNotHealthy(t)

		container, err := postgres.Run(ctx, "postgres:16-alpine",
			postgres.WithDatabase("dmutex"),
			postgres.WithUsername("dmutex"),
			postgres.WithPassword("dmutex"),
			postgres.BasicWaitStrategies(),
		)
		testcontainers.CleanupContainer(t, container)
		require.NoError(t, err)

		dsn, err = container.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+testTable)
		pool.Close()
	})

	return pool
}

func newTestStore(t *testing.T) (*Store, *pgxpool.Pool) {
	t.Helper()

	pool := getTestPool(t)
	s := New(pool, WithTableName(testTable))
	require.NoError(t, s.Migrate(context.Background()))
	return s, pool
}

func TestConformance(t *testing.T) {
	s, _ := newTestStore(t)

	storetest.Run(t, storetest.Suite{
		New: func(t *testing.T) lock.Store { return s },
	})
}

func TestStdLibConformance(t *testing.T) {
	_, pool := newTestStore(t)
	db := stdlib.OpenDBFromPool(pool)
	t.Cleanup(func() { _ = db.Close() })

	s := NewStdLib(db, WithTableName(testTable))
	require.NoError(t, s.Ping(context.Background()))

	storetest.Run(t, storetest.Suite{
		New: func(t *testing.T) lock.Store { return s },
	})
}

func TestMigrateIdempotent(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Migrate(context.Background()))
}

func TestConcurrentAccess(t *testing.T) {
	s, _ := newTestStore(t)
	svc := lock.New(s, lock.WithPollInterval(5*time.Millisecond))
	ctx := context.Background()

	var counter int64
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := svc.Run(ctx, "counter", func(context.Context) error {
				// Critical section
				val := atomic.LoadInt64(&counter)
				time.Sleep(time.Millisecond)
				atomic.StoreInt64(&counter, val+1)
				return nil
			})
			if err != nil {
				t.Errorf("Run() error = %v", err)
			}
		}()
	}

	wg.Wait()

	if counter != 20 {
		t.Fatalf("counter = %d, want 20", counter)
	}
}

func TestExpiredRecordTakenOver(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	key := storetest.Key(t)

	ok, err := s.SetIfAbsent(ctx, key, "crashed", 100*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(150 * time.Millisecond)

	deleted, err := s.DeleteIfEquals(ctx, key, "crashed")
	require.NoError(t, err)
	assert.False(t, deleted, "expired owner no longer holds the lock")

	ok, err = s.SetIfAbsent(ctx, key, "next", 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTTLMillis(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want int64
	}{
		{0, 0},
		{-time.Second, 0},
		{time.Nanosecond, 1},
		{500 * time.Microsecond, 1},
		{time.Millisecond, 1},
		{1500 * time.Microsecond, 2},
		{200 * time.Millisecond, 200},
	}
	for _, tt := range tests {
		if got := ttlMillis(tt.ttl); got != tt.want {
			t.Errorf("ttlMillis(%s) = %d, want %d", tt.ttl, got, tt.want)
		}
	}
}
