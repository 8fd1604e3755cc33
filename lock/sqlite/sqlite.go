// Package sqlite implements lock.Store on a SQLite database file, which lets
// processes on one host share locks without a server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/enverbisevac/dmutex/lock"
	_ "modernc.org/sqlite"
)

var (
	_ lock.Store  = (*Store)(nil)
	_ lock.Pinger = (*Store)(nil)
)

// CreateTableSQL returns the DDL for creating the lock records table.
// expires_at holds unix milliseconds, NULL for records without expiry.
func CreateTableSQL(tableName string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	key TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	expires_at INTEGER
)`, tableName)
}

// Store implements lock.Store using SQLite.
type Store struct {
	config Config
	db     *sql.DB
	owned  bool
}

// New creates a store on an already opened database. The caller keeps
// ownership of db.
func New(db *sql.DB, options ...Option) *Store {
	config := defaultConfig()
	for _, opt := range options {
		opt.Apply(&config)
	}

	return &Store{
		config: config,
		db:     db,
	}
}

// Open opens the database file at path in WAL mode, creates the lock table
// and returns a store that owns the connection.
func Open(ctx context.Context, path string, options ...Option) (*Store, error) {
	config := defaultConfig()
	for _, opt := range options {
		opt.Apply(&config)
	}

	query := url.Values{}
	query.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", config.BusyTimeout.Milliseconds()))
	query.Add("_pragma", "journal_mode(WAL)")
	dsn := "file:" + path + "?" + query.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite lock: open %s: %w", path, err)
	}
	// sqlite has a single writer; one connection per process avoids
	// in-process busy errors.
	db.SetMaxOpenConns(1)

	s := &Store{
		config: config,
		db:     db,
		owned:  true,
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func defaultConfig() Config {
	return Config{
		TableName:   DefaultTableName,
		BusyTimeout: 5 * time.Second,
	}
}

// Migrate creates the lock table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, CreateTableSQL(s.config.TableName)); err != nil {
		return fmt.Errorf("sqlite lock: migrate: %w", err)
	}
	return nil
}

// Close closes the database if the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// expiresAt rounds a positive ttl up to whole milliseconds so that it
// never collapses into a record without expiry.
func expiresAt(ttl time.Duration) sql.NullInt64 {
	if ttl <= 0 {
		return sql.NullInt64{}
	}
	ms := int64((ttl + time.Millisecond - 1) / time.Millisecond)
	return sql.NullInt64{Int64: nowMillis() + ms, Valid: true}
}

// Get returns the owner stored for key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	query := fmt.Sprintf(
		`SELECT owner FROM %s WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)`,
		s.config.TableName,
	)

	var owner string
	err := s.db.QueryRowContext(ctx, query, key, nowMillis()).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite lock: get %q: %w", key, err)
	}
	return owner, true, nil
}

// Set writes value for key regardless of the current record.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (key, owner, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET owner = excluded.owner, expires_at = excluded.expires_at`,
		s.config.TableName,
	)

	if _, err := s.db.ExecContext(ctx, query, key, value, expiresAt(ttl)); err != nil {
		return fmt.Errorf("sqlite lock: set %q: %w", key, err)
	}
	return nil
}

// SetIfAbsent inserts the record, or takes over an expired one, in a single
// statement.
func (s *Store) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	query := fmt.Sprintf(
		`INSERT INTO %[1]s (key, owner, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET owner = excluded.owner, expires_at = excluded.expires_at
		WHERE %[1]s.expires_at IS NOT NULL AND %[1]s.expires_at <= ?`,
		s.config.TableName,
	)

	result, err := s.db.ExecContext(ctx, query, key, value, expiresAt(ttl), nowMillis())
	if err != nil {
		return false, fmt.Errorf("sqlite lock: set if absent %q: %w", key, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite lock: set if absent %q: %w", key, err)
	}
	return n == 1, nil
}

// DeleteIfEquals deletes the record for key if it is owned by expected.
func (s *Store) DeleteIfEquals(ctx context.Context, key, expected string) (bool, error) {
	query := fmt.Sprintf(
		`DELETE FROM %s WHERE key = ? AND owner = ? AND (expires_at IS NULL OR expires_at > ?)`,
		s.config.TableName,
	)

	result, err := s.db.ExecContext(ctx, query, key, expected, nowMillis())
	if err != nil {
		return false, fmt.Errorf("sqlite lock: delete %q: %w", key, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite lock: delete %q: %w", key, err)
	}
	return n == 1, nil
}
