package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/funnelhq/funnel360/internal/store"
	"github.com/funnelhq/funnel360/internal/store/memory"
	postgresstore "github.com/funnelhq/funnel360/internal/store/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type Globals struct {
	Debug   bool
	Version string
}

type PostgresFlags struct {
	ConnString string `help:"PostgreSQL connection string" env:"FUNNEL_POSTGRES_URL"`

	MaxConns        int32         `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32         `help:"minimum number of connections in pool" default:"2"`
	MaxConnLifetime time.Duration `help:"maximum connection lifetime" default:"1h"`
	MaxConnIdleTime time.Duration `help:"maximum connection idle time" default:"30m"`
	StartupTimeout  time.Duration `help:"how long to keep retrying the database on startup" default:"30s" env:"FUNNEL_POSTGRES_STARTUP_TIMEOUT"`

	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"FUNNEL_POSTGRES_AUTO_MIGRATE"`
}

func (f *PostgresFlags) Validate() error {
	if f.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or FUNNEL_POSTGRES_URL)")
	}
	return f.config(false).Validate()
}

func (f *PostgresFlags) pool(ctx context.Context, migrate bool) (*pgxpool.Pool, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	pool, err := postgresstore.NewPool(ctx, f.config(migrate))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return pool, nil
}

func (f *PostgresFlags) config(migrate bool) postgresstore.PoolConfig {
	return postgresstore.PoolConfig{
		ConnString:      f.ConnString,
		MaxConns:        f.MaxConns,
		MinConns:        f.MinConns,
		MaxConnLifetime: f.MaxConnLifetime,
		MaxConnIdleTime: f.MaxConnIdleTime,
		StartupTimeout:  f.StartupTimeout,
		AutoMigrate:     migrate,
	}
}

// openStores returns the configured stores and a func releasing them.
func openStores(ctx context.Context, storeType string, pg *PostgresFlags) (store.Stores, func(), error) {
	switch storeType {
	case "postgres":
		pool, err := pg.pool(ctx, pg.AutoMigrate)
		if err != nil {
			return store.Stores{}, nil, err
		}
		log.Info().Msg("Using PostgreSQL stores")
		return postgresstore.NewStores(pool), pool.Close, nil
	default:
		log.Warn().Msg("Using in-memory stores, data is lost on restart")
		return memory.NewStores(), func() {}, nil
	}
}

// MigrateCmd applies the embedded schema migrations.
type MigrateCmd struct {
	Postgres PostgresFlags `embed:"" prefix:"postgres-"`
}

func (c *MigrateCmd) Run(ctx context.Context, globals *Globals) error {
	log := setupLogger(globals)

	pool, err := c.Postgres.pool(ctx, false)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgresstore.Migrate(ctx, pool); err != nil {
		return err
	}

	log.Info().Msg("Migrations applied")
	return nil
}
