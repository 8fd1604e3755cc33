// Package pgx implements lock.Store on a PostgreSQL table.
package pgx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/enverbisevac/dmutex/lock"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	_ lock.Store  = (*Store)(nil)
	_ lock.Pinger = (*Store)(nil)
)

// expiry is computed by the server so that contenders share one clock.
const expirySQL = `CASE WHEN $3::bigint > 0 THEN now() + make_interval(secs => $3::bigint / 1000.0) END`

// Store implements lock.Store using PostgreSQL. A record whose expires_at
// has passed is treated as absent.
type Store struct {
	config Config
	pool   *pgxpool.Pool
	db     *sql.DB
}

// New creates a new lock store using pgxpool.
func New(pool *pgxpool.Pool, options ...Option) *Store {
	config := Config{
		TableName: DefaultTableName,
	}
	for _, opt := range options {
		opt.Apply(&config)
	}

	return &Store{
		config: config,
		pool:   pool,
	}
}

// NewStdLib creates a new lock store using database/sql.
func NewStdLib(db *sql.DB, options ...Option) *Store {
	config := Config{
		TableName: DefaultTableName,
	}
	for _, opt := range options {
		opt.Apply(&config)
	}

	return &Store{
		config: config,
		db:     db,
	}
}

// Migrate creates the lock table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.exec(ctx, CreateTableSQL(s.config.TableName)); err != nil {
		return fmt.Errorf("pgx lock: migrate: %w", err)
	}
	return nil
}

// Get returns the owner stored for key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	query := fmt.Sprintf(
		`SELECT owner FROM %s WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`,
		s.config.TableName,
	)

	var owner string
	err := s.queryRow(ctx, query, key).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("pgx lock: get %q: %w", key, err)
	}
	return owner, true, nil
}

// Set writes value for key regardless of the current record.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (key, owner, expires_at) VALUES ($1, $2, %s)
		ON CONFLICT (key) DO UPDATE SET owner = EXCLUDED.owner, expires_at = EXCLUDED.expires_at`,
		s.config.TableName, expirySQL,
	)

	if _, err := s.exec(ctx, query, key, value, ttlMillis(ttl)); err != nil {
		return fmt.Errorf("pgx lock: set %q: %w", key, err)
	}
	return nil
}

// SetIfAbsent inserts the record, or takes over an expired one, in a single
// statement.
func (s *Store) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	query := fmt.Sprintf(
		`INSERT INTO %[1]s (key, owner, expires_at) VALUES ($1, $2, %[2]s)
		ON CONFLICT (key) DO UPDATE SET owner = EXCLUDED.owner, expires_at = EXCLUDED.expires_at
		WHERE %[1]s.expires_at IS NOT NULL AND %[1]s.expires_at <= now()`,
		s.config.TableName, expirySQL,
	)

	n, err := s.exec(ctx, query, key, value, ttlMillis(ttl))
	if err != nil {
		return false, fmt.Errorf("pgx lock: set if absent %q: %w", key, err)
	}
	return n == 1, nil
}

// DeleteIfEquals deletes the record for key if it is owned by expected.
func (s *Store) DeleteIfEquals(ctx context.Context, key, expected string) (bool, error) {
	query := fmt.Sprintf(
		`DELETE FROM %s WHERE key = $1 AND owner = $2 AND (expires_at IS NULL OR expires_at > now())`,
		s.config.TableName,
	)

	n, err := s.exec(ctx, query, key, expected)
	if err != nil {
		return false, fmt.Errorf("pgx lock: delete %q: %w", key, err)
	}
	return n == 1, nil
}

// ttlMillis rounds a positive ttl up to whole milliseconds, as zero means
// no expiry.
func ttlMillis(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return int64((ttl + time.Millisecond - 1) / time.Millisecond)
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if s.pool != nil {
		return s.pool.Ping(ctx)
	}
	return s.db.PingContext(ctx)
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (int64, error) {
	if s.pool != nil {
		tag, err := s.pool.Exec(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type row interface {
	Scan(dest ...any) error
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) row {
	if s.pool != nil {
		return s.pool.QueryRow(ctx, query, args...)
	}
	return s.db.QueryRowContext(ctx, query, args...)
}
