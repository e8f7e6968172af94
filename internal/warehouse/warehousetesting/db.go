// Package warehousetesting runs a disposable PostgreSQL container seeded with
// a small fixture catalog, for tests that need a real engine behind the pool.
package warehousetesting

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/litesql/rsmcp/internal/warehouse"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// Fixture is applied once to every new database.
//
//   - public.users: 8 rows; email and phone columns, one NULL email.
//   - public.active_users: a view, so it has no statistics.
//   - sales.orders: composite primary key (order_id, line_no).
//   - "Mixed Case"."Odd ""Name""": identifiers that need quoting.
//   - "Mixed Case".alpha: sorts after "Odd ""Name""" by byte but before it
//     under a linguistic collation.
//   - public.ticket_seq: a sequence that must never advance.
const Fixture = `
CREATE SCHEMA sales;
CREATE SCHEMA "Mixed Case";

CREATE TABLE public.users (
	id integer PRIMARY KEY,
	name varchar(64) NOT NULL,
	email text,
	phone text,
	balance numeric(10,2) DEFAULT 0,
	created_at timestamptz NOT NULL DEFAULT now()
);
INSERT INTO public.users (id, name, email, phone, balance)
SELECT g, 'user' || g,
	CASE WHEN g = 3 THEN NULL ELSE 'user' || g || '@example.com' END,
	'555-000' || g,
	g * 1.5
FROM generate_series(1, 8) AS g;

CREATE VIEW public.active_users AS SELECT id, name FROM public.users WHERE id < 5;

CREATE TABLE sales.orders (
	order_id bigint,
	line_no integer,
	customer_email text,
	amount numeric(12,2),
	PRIMARY KEY (order_id, line_no)
);
INSERT INTO sales.orders VALUES (1, 1, 'a@example.com', 10.00), (1, 2, 'a@example.com', 5.25);

CREATE TABLE "Mixed Case"."Odd ""Name""" (email text, note text);
INSERT INTO "Mixed Case"."Odd ""Name""" VALUES ('odd@example.com', 'kept');
CREATE TABLE "Mixed Case".alpha (id integer);

CREATE SEQUENCE public.ticket_seq;

ANALYZE;
`

type DBConfig struct {
	Database       string
	Username       string
	Password       string
	ContainerImage string
	MaxConns       int32
}

func (cfg *DBConfig) Validate() error {
	if cfg.Database == "" {
		cfg.Database = "dev"
	}
	if cfg.Username == "" {
		cfg.Username = "rsmcp"
	}
	if cfg.Password == "" {
		cfg.Password = "password"
	}
	if cfg.ContainerImage == "" {
		cfg.ContainerImage = "postgres:16-alpine"
	}
	if cfg.MaxConns < 0 {
		return fmt.Errorf("max conns must not be negative")
	}
	if cfg.MaxConns == 0 {
		cfg.MaxConns = 4
	}
	return nil
}

type DB struct {
	Pool *pgxpool.Pool
	URL  string

	container *tcpostgres.PostgresContainer
}

// Start runs a container, connects a pool to it and applies Fixture.
func Start(ctx context.Context, log *slog.Logger, cfg *DBConfig) (*DB, error) {
	if cfg == nil {
		cfg = &DBConfig{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate DB config: %w", err)
	}

	// Retry container start up to 3 times for retryable errors
	var container *tcpostgres.PostgresContainer
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		container, err = tcpostgres.Run(ctx, cfg.ContainerImage,
			tcpostgres.WithDatabase(cfg.Database),
			tcpostgres.WithUsername(cfg.Username),
			tcpostgres.WithPassword(cfg.Password),
			tcpostgres.BasicWaitStrategies(),
		)
		if err == nil {
			break
		}
		if !isRetryableContainerStartErr(err) || attempt == 3 {
			return nil, fmt.Errorf("failed to start postgres container: %w", err)
		}
		time.Sleep(time.Duration(attempt) * 750 * time.Millisecond)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}
	url := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", cfg.Username, cfg.Password, host, port.Port(), cfg.Database)

	pool, err := warehouse.NewPool(ctx, log, warehouse.Config{URL: url, MaxConns: cfg.MaxConns, AppName: "rsmcp-test"})
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	if _, err := pool.Exec(ctx, Fixture); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to apply fixture: %w", err)
	}

	return &DB{Pool: pool, URL: url, container: container}, nil
}

func (db *DB) Close(ctx context.Context) error {
	db.Pool.Close()
	return testcontainers.TerminateContainer(db.container, testcontainers.StopContext(ctx))
}

// NewDB starts a database for the duration of t. It skips the test in short
// mode.
func NewDB(t testing.TB, cfg *DBConfig) *DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping warehouse container in short mode")
	}
	db, err := Start(t.Context(), slog.Default(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := db.Close(context.Background()); err != nil {
			t.Logf("failed to cleanup postgres container: %v", err)
		}
	})
	return db
}

func isRetryableContainerStartErr(err error) bool {
	s := err.Error()
	return strings.Contains(s, "wait until ready") ||
		strings.Contains(s, "mapped port") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "context deadline exceeded")
}
