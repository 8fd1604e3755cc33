package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/enverbisevac/dmutex/lock"
	lockpgx "github.com/enverbisevac/dmutex/lock/pgx"
	lockredis "github.com/enverbisevac/dmutex/lock/redis"
	"github.com/enverbisevac/dmutex/lock/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

const (
	backendRedis    = "redis"
	backendPostgres = "postgres"
	backendSQLite   = "sqlite"
)

type config struct {
	Backend      string
	Endpoints    []string
	DSN          string
	Namespace    string
	PollInterval time.Duration
	Timeout      time.Duration
	TTL          time.Duration
	Verbosity    int
}

// initConfig loads .env files and makes every flag settable through a
// DMUTEX_ prefixed environment variable.
func initConfig(v *viper.Viper) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	v.SetEnvPrefix("dmutex")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

func loadConfig(v *viper.Viper) config {
	var endpoints []string
	for _, e := range strings.Split(v.GetString("endpoints"), ",") {
		if e = strings.TrimSpace(e); e != "" {
			endpoints = append(endpoints, e)
		}
	}

	return config{
		Backend:      strings.ToLower(v.GetString("backend")),
		Endpoints:    endpoints,
		DSN:          v.GetString("dsn"),
		Namespace:    v.GetString("namespace"),
		PollInterval: v.GetDuration("poll-interval"),
		Timeout:      v.GetDuration("timeout"),
		TTL:          v.GetDuration("ttl"),
		Verbosity:    v.GetInt("verbose"),
	}
}

func (c config) lockOptions() []lock.Option {
	options := []lock.Option{
		lock.WithNamespace(c.Namespace),
		lock.WithTimeout(c.Timeout),
		lock.WithTTL(c.TTL),
	}
	if c.PollInterval > 0 {
		options = append(options, lock.WithPollInterval(c.PollInterval))
	}
	return options
}

// openStore connects the configured backend. The returned func closes
// every connection opened for it.
func openStore(ctx context.Context, c config) (lock.Store, func() error, error) {
	switch c.Backend {
	case backendRedis:
		var client redis.UniversalClient
		if c.DSN != "" {
			opts, err := redis.ParseURL(c.DSN)
			if err != nil {
				return nil, nil, fmt.Errorf("parse redis dsn: %w", err)
			}
			client = redis.NewClient(opts)
		} else {
			client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: c.Endpoints})
		}
		return lockredis.New(client), client.Close, nil
	case backendPostgres:
		if c.DSN == "" {
			return nil, nil, fmt.Errorf("backend %s requires --dsn", c.Backend)
		}
		pool, err := pgxpool.New(ctx, c.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		store := lockpgx.New(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return store, func() error { pool.Close(); return nil }, nil
	case backendSQLite:
		if c.DSN == "" {
			return nil, nil, fmt.Errorf("backend %s requires --dsn", c.Backend)
		}
		store, err := sqlite.Open(ctx, c.DSN)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("invalid backend %q", c.Backend)
	}
}
