// Package pgwire lets PostgreSQL clients query the warehouse read-only.
//
// Every statement runs on its own in a read-only transaction that is rolled
// back, the same path the query tool takes. Transaction control and SET
// statements are accepted and ignored so that drivers which wrap work in
// BEGIN/COMMIT keep working. All columns are sent as text.
package pgwire

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgconn"
	wire "github.com/jeroenrinzema/psql-wire"
	"github.com/jeroenrinzema/psql-wire/codes"
	psqlerr "github.com/jeroenrinzema/psql-wire/errors"
	"github.com/lib/pq/oid"

	"github.com/litesql/rsmcp/internal/catalog"
)

const transportName = "pgwire"

// Querier runs one statement read-only.
type Querier interface {
	Query(ctx context.Context, transport, sql string) (catalog.QueryResult, error)
}

type Config struct {
	Logger *slog.Logger
	// User and Pass enable cleartext password authentication. With no user
	// every client is accepted.
	User    string
	Pass    string
	TLSCert string
	TLSKey  string
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.User == "" && cfg.Pass != "" {
		return fmt.Errorf("password given without a user")
	}
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return fmt.Errorf("tls cert and key must be given together")
	}
	return nil
}

const columnWidth = 256

type Server struct {
	*wire.Server

	log     *slog.Logger
	querier Querier
}

func NewServer(cfg Config, q Querier) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate pgwire config: %w", err)
	}
	server := &Server{log: cfg.Logger, querier: q}
	opts := []wire.OptionFn{
		wire.Version("17.0"),
		wire.SessionMiddleware(server.session),
		wire.TerminateConn(server.terminateConn),
		wire.Logger(cfg.Logger),
	}
	if cfg.User != "" {
		opts = append(opts, wire.SessionAuthStrategy(
			wire.ClearTextPassword(func(ctx context.Context, database, username, password string) (context.Context, bool, error) {
				if username == cfg.User && password == cfg.Pass {
					server.log.Info("pg-wire: authenticated", "database", database, "user", username, "remote", wire.RemoteAddress(ctx))
					return ctx, true, nil
				}
				server.log.Warn("pg-wire: authentication failed", "user", username, "remote", wire.RemoteAddress(ctx))
				return ctx, false, nil
			})))
	}

	if cfg.TLSCert != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load tls key pair: %w", err)
		}
		opts = append(opts, wire.TLSConfig(&tls.Config{Certificates: []tls.Certificate{cert}}))
	}

	wireServer, err := wire.NewServer(server.parse, opts...)
	if err != nil {
		return nil, err
	}
	server.Server = wireServer
	return server, nil
}

func (s *Server) ListenAndServe(port int) error {
	return s.Server.ListenAndServe(fmt.Sprintf(":%d", port))
}

func (s *Server) Serve(l net.Listener) error {
	return s.Server.Serve(l)
}

func (s *Server) session(ctx context.Context) (context.Context, error) {
	s.log.Info("pg-wire: new session established", "remote", wire.RemoteAddress(ctx))
	return ctx, nil
}

func (s *Server) terminateConn(ctx context.Context) error {
	s.log.Info("pg-wire: session terminated", "remote", wire.RemoteAddress(ctx))
	return nil
}

// ignoredTags maps statements that have no effect here to the command tag a
// PostgreSQL server would answer with.
var ignoredTags = []struct {
	prefix string
	tag    string
}{
	{"BEGIN", "BEGIN"},
	{"START TRANSACTION", "BEGIN"},
	{"COMMIT", "COMMIT"},
	{"END", "COMMIT"},
	{"ROLLBACK", "ROLLBACK"},
	{"ABORT", "ROLLBACK"},
	{"SET ", "SET"},
	{"RESET ", "RESET"},
	{"DISCARD ", "DISCARD"},
}

func ignoredTag(sql string) (string, bool) {
	upper := strings.ToUpper(strings.TrimRight(strings.TrimSpace(sql), ";"))
	for _, t := range ignoredTags {
		if upper == strings.TrimSpace(t.prefix) || strings.HasPrefix(upper, t.prefix) {
			return t.tag, true
		}
	}
	return "", false
}

func (s *Server) parse(ctx context.Context, sql string) (wire.PreparedStatements, error) {
	s.log.Debug("pg-wire: query received", "remote", wire.RemoteAddress(ctx), "sql", sql)

	trimmed := strings.TrimSpace(sql)
	if trimmed == "" || trimmed == ";" {
		return wire.Prepared(wire.NewStatement(func(ctx context.Context, writer wire.DataWriter, parameters []wire.Parameter) error {
			return writer.Empty()
		})), nil
	}
	if strings.ToLower(strings.Join(strings.Fields(trimmed), " ")) == "-- ping" {
		return wire.Prepared(wire.NewStatement(func(ctx context.Context, writer wire.DataWriter, parameters []wire.Parameter) error {
			if err := writer.Row([]any{"pong"}); err != nil {
				return err
			}
			return writer.Complete("SELECT 1")
		}, wire.WithColumns(columns([]string{"pong"})))), nil
	}
	if tag, ok := ignoredTag(trimmed); ok {
		return wire.Prepared(wire.NewStatement(func(ctx context.Context, writer wire.DataWriter, parameters []wire.Parameter) error {
			return writer.Complete(tag)
		})), nil
	}
	// Columns must be known when the statement is described, so the first
	// execution happens here and its rows are served to the first Execute.
	// Later executions of a cached statement run again.
	res, err := s.querier.Query(ctx, transportName, sql)
	if err != nil {
		return nil, wireError(err)
	}
	var served atomic.Bool
	handle := func(ctx context.Context, writer wire.DataWriter, parameters []wire.Parameter) error {
		out := res
		if served.Swap(true) {
			var err error
			out, err = s.querier.Query(ctx, transportName, sql)
			if err != nil {
				return wireError(err)
			}
		}
		for _, row := range out.Rows {
			if err := writer.Row(textRow(row)); err != nil {
				s.log.Error("pg-wire: write row", "error", err)
				return err
			}
		}
		return writer.Complete(fmt.Sprintf("SELECT %d", len(out.Rows)))
	}
	return wire.Prepared(wire.NewStatement(handle, wire.WithColumns(columns(res.Columns)))), nil
}

// wireError tags syntax and access rule violations reported by the engine so
// clients see the same error class they would from the warehouse itself.
func wireError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "42") {
		return psqlerr.WithCode(err, codes.SyntaxErrorOrAccessRuleViolation)
	}
	return err
}

func columns(names []string) wire.Columns {
	out := make(wire.Columns, len(names))
	for i, name := range names {
		out[i] = wire.Column{
			Table: 0,
			Name:  name,
			Oid:   uint32(oid.T_text),
			Width: columnWidth,
		}
	}
	return out
}

// textRow renders a row the way PostgreSQL's text format would: NULL stays
// NULL and booleans are t or f.
func textRow(row catalog.Row) []any {
	out := make([]any, len(row))
	for i, f := range row {
		switch f.Value.Kind() {
		case catalog.NullValue:
			out[i] = nil
		case catalog.BoolValue:
			if f.Value.Any().(bool) {
				out[i] = "t"
			} else {
				out[i] = "f"
			}
		default:
			out[i] = f.Value.String()
		}
	}
	return out
}
