// Package postgres provides PostgreSQL access to scaling reference data
// using pgx v5.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/autobalance/internal/config"
)

// ApplicationName identifies engine connections in pg_stat_activity.
const ApplicationName = "autobalance"

// ReferenceTables are the tables the engine reads at startup.
var ReferenceTables = []string{"lfg_dungeons", "creature_base_stats"}

// ErrSchemaMissing reports that a reference table has not been migrated.
var ErrSchemaMissing = errors.New("reference data schema missing")

// Pool is the connection pool shared by the reference-data repositories.
type Pool struct {
	pool *pgxpool.Pool
}

// NewPool connects to the reference-data database.
//
// Precondition: cfg must contain valid database connection parameters.
// Postcondition: Returns a pool that has answered a ping, or a non-nil error.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres.NewPool: parsing database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.NewPool: creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.NewPool: pinging %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Name, err)
	}
	return &Pool{pool: pool}, nil
}

// Health pings the database within timeout.
func (p *Pool) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres.Pool.Health: %w", err)
	}
	return nil
}

// CheckSchema verifies every ReferenceTables entry exists.
//
// Postcondition: Returns nil, an error wrapping ErrSchemaMissing that names
// the missing tables, or a query error.
func (p *Pool) CheckSchema(ctx context.Context) error {
	rows, err := p.pool.Query(ctx,
		`SELECT name FROM unnest($1::text[]) AS name WHERE to_regclass(name) IS NULL ORDER BY name`,
		ReferenceTables,
	)
	if err != nil {
		return fmt.Errorf("postgres.Pool.CheckSchema: %w", err)
	}
	missing, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("postgres.Pool.CheckSchema: %w", err)
	}
	if len(missing) > 0 {
		return fmt.Errorf("postgres.Pool.CheckSchema: %w: %s (run cmd/migrate)", ErrSchemaMissing, strings.Join(missing, ", "))
	}
	return nil
}

// Close releases all pool connections.
func (p *Pool) Close() {
	p.pool.Close()
}

// DB returns the underlying pgxpool.Pool for the repositories.
func (p *Pool) DB() *pgxpool.Pool {
	return p.pool
}
