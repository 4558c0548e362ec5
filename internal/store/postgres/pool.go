package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// PoolConfig configures the connection pool shared by every store.
type PoolConfig struct {
	ConnString string

	MaxConns          int32         // default 20
	MinConns          int32         // default 2
	MaxConnLifetime   time.Duration // default 1h
	MaxConnIdleTime   time.Duration // default 30m
	HealthCheckPeriod time.Duration // default 1m
	ConnectTimeout    time.Duration // default 10s

	// StartupTimeout bounds how long NewPool retries the first ping while the
	// database comes up. Default 30s.
	StartupTimeout time.Duration

	// AutoMigrate applies the embedded migrations once connected.
	AutoMigrate bool
}

func (c PoolConfig) withDefaults() PoolConfig {
	def := func(d *time.Duration, v time.Duration) {
		if *d == 0 {
			*d = v
		}
	}
	if c.MaxConns == 0 {
		c.MaxConns = 20
	}
	if c.MinConns == 0 {
		c.MinConns = min(2, c.MaxConns)
	}
	def(&c.MaxConnLifetime, time.Hour)
	def(&c.MaxConnIdleTime, 30*time.Minute)
	def(&c.HealthCheckPeriod, time.Minute)
	def(&c.ConnectTimeout, 10*time.Second)
	def(&c.StartupTimeout, 30*time.Second)
	return c
}

// Validate checks the settings NewPool cannot default.
func (c PoolConfig) Validate() error {
	if c.ConnString == "" {
		return errors.New("connection string is required")
	}
	if c.MaxConns < 0 || c.MinConns < 0 {
		return errors.New("connection counts must not be negative")
	}
	if c.MaxConns > 0 && c.MinConns > c.MaxConns {
		return fmt.Errorf("min conns (%d) must not exceed max conns (%d)", c.MinConns, c.MaxConns)
	}
	return nil
}

// NewPool connects to PostgreSQL, retrying the first ping until the database
// answers or StartupTimeout elapses, and migrates when AutoMigrate is set.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}
	cfg = cfg.withDefaults()

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	attempts := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		return struct{}{}, pool.Ping(ctx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(cfg.StartupTimeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Err(err).Dur("next_retry", next).Msg("Database not ready, retrying")
		}),
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", poolConfig.ConnConfig.Host).
		Str("database", poolConfig.ConnConfig.Database).
		Int32("max_conns", cfg.MaxConns).
		Int("attempts", attempts).
		Msg("Connected to PostgreSQL")

	if cfg.AutoMigrate {
		if err := Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return pool, nil
}
