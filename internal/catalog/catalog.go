package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool hands out connections for the duration of one logical operation.
// *pgxpool.Pool satisfies it; Acquire blocks while the pool is exhausted.
type Pool interface {
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
}

type Config struct {
	Logger *slog.Logger
	Pool   Pool

	// Queries defaults to RedshiftQueries.
	Queries Queries
	// Locator defaults to redshift://redshift.
	Locator Locator
	// StatementTimeout bounds each query run by the query tool; zero means
	// whatever the connection string configures.
	StatementTimeout time.Duration
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.Pool == nil {
		return fmt.Errorf("pool is required")
	}
	if cfg.Queries == (Queries{}) {
		cfg.Queries = RedshiftQueries
	}
	if name := cfg.Queries.missing(); name != "" {
		return fmt.Errorf("%s query is required", name)
	}
	if cfg.Locator.Scheme == "" {
		cfg.Locator.Scheme = "redshift"
	}
	if cfg.Locator.Host == "" {
		cfg.Locator.Host = "redshift"
	}
	if cfg.StatementTimeout < 0 {
		return fmt.Errorf("statement timeout must not be negative")
	}
	return nil
}

// Catalog exposes the warehouse as resources and tools. It keeps no state
// besides its configuration, so one value serves concurrent requests.
type Catalog struct {
	log     *slog.Logger
	pool    Pool
	queries Queries
	locator Locator
	timeout time.Duration
}

func New(cfg Config) (*Catalog, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate catalog config: %w", err)
	}
	return &Catalog{
		log:     cfg.Logger,
		pool:    cfg.Pool,
		queries: cfg.Queries,
		locator: cfg.Locator,
		timeout: cfg.StatementTimeout,
	}, nil
}

func (c *Catalog) Locator() Locator { return c.locator }

// withConn borrows one connection for fn and returns it on every path.
func (c *Catalog) withConn(ctx context.Context, fn func(conn *pgxpool.Conn) error) error {
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return engineError("acquire connection", err)
	}
	defer conn.Release()
	return fn(conn)
}
