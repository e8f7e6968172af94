package pgwire_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/litesql/rsmcp/internal/catalog"
	"github.com/litesql/rsmcp/internal/pgwire"
	"github.com/litesql/rsmcp/internal/service"
	"github.com/litesql/rsmcp/internal/warehouse/warehousetesting"
)

type fakeQuerier struct {
	mu      sync.Mutex
	results map[string]catalog.QueryResult
	errs    map[string]error
	calls   map[string]int
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{
		results: map[string]catalog.QueryResult{},
		errs:    map[string]error{},
		calls:   map[string]int{},
	}
}

func (f *fakeQuerier) Query(ctx context.Context, transport, sql string) (catalog.QueryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[sql]++
	if err, ok := f.errs[sql]; ok {
		return catalog.QueryResult{}, err
	}
	if res, ok := f.results[sql]; ok {
		return res, nil
	}
	return catalog.QueryResult{}, &catalog.EngineError{Op: "query", Err: &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}}
}

func (f *fakeQuerier) callCount(sql string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[sql]
}

func users() catalog.QueryResult {
	row := func(name string, email catalog.Value, active bool) catalog.Row {
		return catalog.Row{
			{Name: "name", Value: catalog.String(name)},
			{Name: "email", Value: email},
			{Name: "active", Value: catalog.Bool(active)},
		}
	}
	return catalog.QueryResult{
		Columns: []string{"name", "email", "active"},
		Rows: []catalog.Row{
			row("alice", catalog.String("alice@example.com"), true),
			row("bob", catalog.Null(), false),
		},
	}
}

func startServer(t *testing.T, cfg pgwire.Config, q pgwire.Querier) string {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server, err := pgwire.NewServer(cfg, q)
	require.NoError(t, err)
	go func() {
		_ = server.Serve(listener)
	}()
	t.Cleanup(func() {
		_ = server.Shutdown(context.Background())
		_ = listener.Close()
	})

	user, pass := cfg.User, cfg.Pass
	if user == "" {
		user, pass = "anyone", "anything"
	}
	port := listener.Addr().(*net.TCPAddr).Port
	return fmt.Sprintf("postgresql://%s:%s@127.0.0.1:%d/dev?sslmode=disable", user, pass, port)
}

func connect(t *testing.T, connString string) *pgxpool.Pool {
	t.Helper()
	pool, err := pgxpool.New(context.Background(), connString)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestPGWire_Query(t *testing.T) {
	q := newFakeQuerier()
	q.results["SELECT name, email, active FROM users"] = users()
	pool := connect(t, startServer(t, pgwire.Config{User: "test", Pass: "test"}, q))
	ctx := t.Context()

	read := func() [][]any {
		t.Helper()
		rows, err := pool.Query(ctx, "SELECT name, email, active FROM users")
		require.NoError(t, err)
		var got [][]any
		for rows.Next() {
			values, err := rows.Values()
			require.NoError(t, err)
			got = append(got, values)
		}
		require.NoError(t, rows.Err())
		require.Equal(t, "SELECT 2", rows.CommandTag().String())
		return got
	}

	want := [][]any{
		{"alice", "alice@example.com", "t"},
		{"bob", nil, "f"},
	}
	require.Equal(t, want, read())
	require.Equal(t, 1, q.callCount("SELECT name, email, active FROM users"))

	// The statement is cached by the client now; running it again must hit
	// the warehouse again rather than replay the first result.
	require.Equal(t, want, read())
	require.Equal(t, 2, q.callCount("SELECT name, email, active FROM users"))
}

func TestPGWire_Exec(t *testing.T) {
	q := newFakeQuerier()
	q.results["SELECT name, email, active FROM users"] = users()
	pool := connect(t, startServer(t, pgwire.Config{}, q))
	ctx := t.Context()

	tests := map[string]struct {
		sql  string
		want string
	}{
		"select":      {sql: "SELECT name, email, active FROM users", want: "SELECT 2"},
		"begin":       {sql: "BEGIN", want: "BEGIN"},
		"begin level": {sql: "begin isolation level serializable", want: "BEGIN"},
		"commit":      {sql: "COMMIT;", want: "COMMIT"},
		"rollback":    {sql: "ROLLBACK", want: "ROLLBACK"},
		"set":         {sql: "SET search_path TO sales", want: "SET"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			tag, err := pool.Exec(ctx, tt.sql)
			require.NoError(t, err)
			require.Equal(t, tt.want, tag.String())
		})
	}
	require.Zero(t, q.callCount("BEGIN"))
	require.Zero(t, q.callCount("SET search_path TO sales"))
}

func TestPGWire_Ping(t *testing.T) {
	pool := connect(t, startServer(t, pgwire.Config{}, newFakeQuerier()))

	var pong string
	require.NoError(t, pool.QueryRow(t.Context(), "-- ping").Scan(&pong))
	require.Equal(t, "pong", pong)
	require.NoError(t, pool.Ping(t.Context()))
}

func TestPGWire_Transaction(t *testing.T) {
	q := newFakeQuerier()
	q.results["SELECT name, email, active FROM users"] = users()
	pool := connect(t, startServer(t, pgwire.Config{}, q))
	ctx := t.Context()

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadOnly})
	require.NoError(t, err)
	var name string
	require.NoError(t, tx.QueryRow(ctx, "SELECT name, email, active FROM users").Scan(&name, new(*string), new(string)))
	require.Equal(t, "alice", name)
	require.NoError(t, tx.Commit(ctx))

	tx, err = pool.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))
}

func TestPGWire_Errors(t *testing.T) {
	q := newFakeQuerier()
	q.errs["DELETE FROM users"] = &catalog.EngineError{Op: "query", Err: &pgconn.PgError{
		Code:    "25006",
		Message: "cannot execute DELETE in a read-only transaction",
	}}
	q.errs["SELEC 1"] = &catalog.EngineError{Op: "query", Err: &pgconn.PgError{
		Code:    "42601",
		Message: `syntax error at or near "SELEC"`,
	}}
	pool := connect(t, startServer(t, pgwire.Config{}, q))
	ctx := t.Context()

	_, err := pool.Exec(ctx, "DELETE FROM users")
	require.ErrorContains(t, err, "cannot execute DELETE in a read-only transaction")

	_, err = pool.Exec(ctx, "SELEC 1")
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	require.Equal(t, "42000", pgErr.Code)
	require.Contains(t, pgErr.Message, "syntax error")

	// A failed statement leaves the session usable.
	var pong string
	require.NoError(t, pool.QueryRow(ctx, "-- ping").Scan(&pong))
}

func TestPGWire_Authentication(t *testing.T) {
	connString := startServer(t, pgwire.Config{User: "test", Pass: "secret"}, newFakeQuerier())
	require.NoError(t, connect(t, connString).Ping(t.Context()))

	cfg, err := pgxpool.ParseConfig(connString)
	require.NoError(t, err)
	cfg.ConnConfig.Password = "wrong"
	pool, err := pgxpool.NewWithConfig(t.Context(), cfg)
	require.NoError(t, err)
	defer pool.Close()
	require.Error(t, pool.Ping(t.Context()))
}

func TestPGWire_Config_Validate(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := map[string]struct {
		cfg     pgwire.Config
		wantErr string
	}{
		"no logger":        {cfg: pgwire.Config{}, wantErr: "logger is required"},
		"password only":    {cfg: pgwire.Config{Logger: log, Pass: "x"}, wantErr: "password given without a user"},
		"cert without key": {cfg: pgwire.Config{Logger: log, TLSCert: "cert.pem"}, wantErr: "tls cert and key must be given together"},
		"missing files":    {cfg: pgwire.Config{Logger: log, TLSCert: "missing.pem", TLSKey: "missing.key"}, wantErr: "failed to load tls key pair"},
		"open":             {cfg: pgwire.Config{Logger: log}},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := pgwire.NewServer(tt.cfg, newFakeQuerier())
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestPGWire_Warehouse(t *testing.T) {
	db := warehousetesting.NewDB(t, nil)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cat, err := catalog.New(catalog.Config{Logger: log, Pool: db.Pool, Queries: catalog.PostgresQueries})
	require.NoError(t, err)
	svc, err := service.New(service.Config{Logger: log, Catalog: cat})
	require.NoError(t, err)

	pool := connect(t, startServer(t, pgwire.Config{Logger: log}, svc))
	ctx := t.Context()

	var n string
	require.NoError(t, pool.QueryRow(ctx, "SELECT count(*) FROM public.users").Scan(&n))
	require.Equal(t, "8", n)

	_, err = pool.Exec(ctx, "DELETE FROM public.users")
	require.ErrorContains(t, err, "read-only transaction")

	require.NoError(t, db.Pool.QueryRow(ctx, "SELECT count(*)::text FROM public.users").Scan(&n))
	require.Equal(t, "8", n)

	_, err = pool.Exec(ctx, "SELECT * FROM public.missing_table")
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	require.Equal(t, "42000", pgErr.Code)
}
