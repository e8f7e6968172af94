// Package service puts request accounting around the catalog: every listing,
// read and tool call is timed, counted and audited the same way whichever
// transport it arrived on.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/litesql/rsmcp/internal/audit"
	"github.com/litesql/rsmcp/internal/catalog"
	"github.com/litesql/rsmcp/internal/metrics"
)

const (
	MethodListResources = "resources/list"
	MethodReadResource  = "resources/read"
	MethodCallTool      = "tools/call"
)

// Catalog is the part of *catalog.Catalog the service drives.
type Catalog interface {
	Locator() catalog.Locator
	ListResources(ctx context.Context) ([]catalog.ResourceDescriptor, error)
	ReadResource(ctx context.Context, addr catalog.Address) (catalog.QueryResult, error)
	Invoke(ctx context.Context, name string, args map[string]any) catalog.ToolResult
	RunReadOnly(ctx context.Context, sql string) (catalog.QueryResult, error)
}

type Config struct {
	Logger  *slog.Logger
	Catalog Catalog
	// Audit defaults to a recorder that discards events.
	Audit *audit.Recorder
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.Catalog == nil {
		return fmt.Errorf("catalog is required")
	}
	if cfg.Audit == nil {
		cfg.Audit = audit.NewRecorder(cfg.Logger, audit.Nop{})
	}
	return nil
}

type Service struct {
	log     *slog.Logger
	catalog Catalog
	audit   *audit.Recorder
}

func New(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate service config: %w", err)
	}
	return &Service{log: cfg.Logger, catalog: cfg.Catalog, audit: cfg.Audit}, nil
}

func (s *Service) Locator() catalog.Locator { return s.catalog.Locator() }

func (s *Service) ListResources(ctx context.Context, transport string) ([]catalog.ResourceDescriptor, error) {
	start := time.Now()
	out, err := s.catalog.ListResources(ctx)
	s.observe(MethodListResources, start)
	s.audit.Record(ctx, start, audit.Event{
		Kind:      audit.KindResourceList,
		Transport: transport,
		IsError:   err != nil,
		Error:     errorText(err),
	})
	if err != nil {
		s.log.Error("resources: listing failed", "error", err)
		return nil, err
	}
	return out, nil
}

// ReadResource parses uri and reads it. Address errors come back before the
// engine is touched.
func (s *Service) ReadResource(ctx context.Context, transport, uri string) (catalog.QueryResult, error) {
	start := time.Now()
	kind := "invalid"
	res, err := func() (catalog.QueryResult, error) {
		addr, err := s.catalog.Locator().Parse(uri)
		if err != nil {
			return catalog.QueryResult{}, err
		}
		kind = kindLabel(addr)
		return s.catalog.ReadResource(ctx, addr)
	}()

	s.observe(MethodReadResource, start)
	metrics.ResourceReadsTotal.WithLabelValues(kind, metrics.Outcome(err != nil)).Inc()
	s.audit.Record(ctx, start, audit.Event{
		Kind:      audit.KindResourceRead,
		Transport: transport,
		URI:       uri,
		IsError:   err != nil,
		Error:     errorText(err),
	})
	if err != nil {
		if catalog.IsEngineError(err) {
			s.log.Error("resources: read failed", "uri", uri, "error", err)
		} else {
			s.log.Info("resources: bad address", "uri", uri, "error", err)
		}
		return catalog.QueryResult{}, err
	}
	return res, nil
}

// CallTool never fails: unknown tools, bad arguments and engine errors are
// all results with IsError set.
func (s *Service) CallTool(ctx context.Context, transport, name string, args map[string]any) catalog.ToolResult {
	start := time.Now()
	res := s.catalog.Invoke(ctx, name, args)

	label := name
	if _, ok := catalog.ParseTool(name); !ok {
		label = "unknown"
	}
	s.observe(MethodCallTool, start)
	metrics.ToolCallsTotal.WithLabelValues(label, metrics.Outcome(res.IsError)).Inc()
	ev := audit.Event{
		Kind:      audit.KindTool,
		Transport: transport,
		Name:      name,
		IsError:   res.IsError,
	}
	if res.IsError {
		ev.Error = res.Text()
		if res.Err != nil {
			ev.Error = errorText(res.Err)
		}
	}
	s.audit.Record(ctx, start, ev)
	return res
}

// Query runs sql read-only for transports that speak rows rather than tool
// results. It is counted and audited as a call of the query tool.
func (s *Service) Query(ctx context.Context, transport, sql string) (catalog.QueryResult, error) {
	start := time.Now()
	res, err := s.catalog.RunReadOnly(ctx, sql)
	name := catalog.ToolQuery.String()

	s.observe(MethodCallTool, start)
	metrics.ToolCallsTotal.WithLabelValues(name, metrics.Outcome(err != nil)).Inc()
	s.audit.Record(ctx, start, audit.Event{
		Kind:      audit.KindTool,
		Transport: transport,
		Name:      name,
		IsError:   err != nil,
		Error:     errorText(err),
	})
	if err != nil {
		s.log.Info("query: failed", "transport", transport, "error", err)
		return catalog.QueryResult{}, err
	}
	return res, nil
}

func (s *Service) observe(method string, start time.Time) {
	metrics.RequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

func kindLabel(addr catalog.Address) string {
	switch a := addr.(type) {
	case catalog.SchemaListing:
		return "tables"
	case catalog.TableResource:
		return a.Kind.String()
	}
	return "invalid"
}

// errorText describes err for an audit event. Engine messages can quote
// literals from the statement, so they are reduced to the operation and the
// SQLSTATE.
func errorText(err error) string {
	if err == nil {
		return ""
	}
	var engErr *catalog.EngineError
	var pgErr *pgconn.PgError
	if errors.As(err, &engErr) && errors.As(err, &pgErr) {
		return fmt.Sprintf("%s: SQLSTATE %s", engErr.Op, pgErr.Code)
	}
	return err.Error()
}
