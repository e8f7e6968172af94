package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/litesql/rsmcp/internal/catalog"
	"github.com/litesql/rsmcp/internal/service"
)

var errUnavailable = errors.New("warehouse unavailable")

type failingPool struct {
	calls atomic.Int64
}

func (p *failingPool) Acquire(ctx context.Context) (*pgxpool.Conn, error) {
	p.calls.Add(1)
	return nil, errUnavailable
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newServer(t *testing.T, pool catalog.Pool, queries catalog.Queries) *Server {
	t.Helper()
	log := discardLogger()
	cat, err := catalog.New(catalog.Config{
		Logger:  log,
		Pool:    pool,
		Queries: queries,
		Locator: catalog.Locator{Scheme: "redshift", Host: "test"},
	})
	require.NoError(t, err)
	svc, err := service.New(service.Config{Logger: log, Catalog: cat})
	require.NoError(t, err)
	s, err := NewServer(Config{Logger: log, Service: svc, Version: "test"})
	require.NoError(t, err)
	return s
}

func connect(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := s.MCP().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "rsmcp-test", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return tc.Text
}

func TestMCP_Config_Validate(t *testing.T) {
	t.Parallel()

	_, err := NewServer(Config{Logger: discardLogger()})
	require.ErrorContains(t, err, "service is required")

	cfg := Config{Logger: discardLogger(), Service: &service.Service{}}
	require.NoError(t, cfg.Validate())
	require.Equal(t, "dev", cfg.Version)
}

func TestMCP_ListTools(t *testing.T) {
	t.Parallel()

	cs := connect(t, newServer(t, &failingPool{}, catalog.Queries{}))
	res, err := cs.ListTools(t.Context(), nil)
	require.NoError(t, err)

	required := map[string][]any{}
	for _, tool := range res.Tools {
		require.NotEmpty(t, tool.Description)
		schema, ok := tool.InputSchema.(map[string]any)
		require.True(t, ok, "input schema is %T", tool.InputSchema)
		require.Equal(t, "object", schema["type"])
		req, _ := schema["required"].([]any)
		required[tool.Name] = req
	}
	require.Equal(t, map[string][]any{
		"query":          {"sql"},
		"describe_table": {"schema", "table"},
		"find_column":    {"pattern"},
	}, required)
}

func TestMCP_ListResourceTemplates(t *testing.T) {
	t.Parallel()

	cs := connect(t, newServer(t, &failingPool{}, catalog.Queries{}))
	res, err := cs.ListResourceTemplates(t.Context(), nil)
	require.NoError(t, err)

	var templates []string
	for _, tmpl := range res.ResourceTemplates {
		require.Equal(t, catalog.MediaTypeJSON, tmpl.MIMEType)
		templates = append(templates, tmpl.URITemplate)
	}
	require.ElementsMatch(t, []string{
		"redshift://test/schema/{schema}",
		"redshift://test/{schema}/{table}/{kind}",
	}, templates)
}

func TestMCP_CallTool_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		tool      string
		args      any
		wantText  string
		wantCalls int64
	}{
		{
			name:     "unknown tool",
			tool:     "drop_table",
			args:     map[string]any{"table": "users"},
			wantText: `Error: unknown tool: "drop_table"`,
		},
		{
			name:     "missing argument",
			tool:     "describe_table",
			args:     map[string]any{"schema": "public"},
			wantText: "Error: missing required argument: table",
		},
		{
			name:     "no arguments",
			tool:     "query",
			wantText: "Error: missing required argument: sql",
		},
		{
			name:     "non-string argument",
			tool:     "find_column",
			args:     map[string]any{"pattern": 7},
			wantText: `Error: argument "pattern" must be a string`,
		},
		{
			name:      "engine unavailable",
			tool:      "query",
			args:      map[string]any{"sql": "SELECT 1"},
			wantText:  "Error: acquire connection: warehouse unavailable",
			wantCalls: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pool := &failingPool{}
			cs := connect(t, newServer(t, pool, catalog.Queries{}))
			res, err := cs.CallTool(t.Context(), &mcp.CallToolParams{Name: tt.tool, Arguments: tt.args})
			require.NoError(t, err)
			require.True(t, res.IsError)
			require.Equal(t, tt.wantText, textOf(t, res))
			require.Equal(t, tt.wantCalls, pool.calls.Load())
		})
	}
}

func TestMCP_ReadResource_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		uri       string
		wantCode  int64
		wantCalls int64
	}{
		{name: "foreign scheme", uri: "postgres://test/schema/public", wantCode: jsonrpc.CodeInvalidParams},
		{name: "unknown kind", uri: "redshift://test/public/users/indexes", wantCode: jsonrpc.CodeInvalidParams},
		{name: "too many segments", uri: "redshift://test/a/b/c/schema", wantCode: jsonrpc.CodeInvalidParams},
		{name: "engine unavailable", uri: "redshift://test/public/users/schema", wantCode: jsonrpc.CodeInternalError, wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pool := &failingPool{}
			cs := connect(t, newServer(t, pool, catalog.Queries{}))
			_, err := cs.ReadResource(t.Context(), &mcp.ReadResourceParams{URI: tt.uri})
			require.Error(t, err)
			var rpcErr *jsonrpc.Error
			require.ErrorAs(t, err, &rpcErr)
			require.Equal(t, tt.wantCode, rpcErr.Code)
			require.Equal(t, tt.wantCalls, pool.calls.Load())
		})
	}
}

func TestMCP_ListResources_EngineUnavailable(t *testing.T) {
	t.Parallel()

	cs := connect(t, newServer(t, &failingPool{}, catalog.Queries{}))
	_, err := cs.ListResources(t.Context(), nil)
	var rpcErr *jsonrpc.Error
	require.ErrorAs(t, err, &rpcErr)
	require.EqualValues(t, jsonrpc.CodeInternalError, rpcErr.Code)
	require.Contains(t, rpcErr.Message, "warehouse unavailable")
}

func TestMCP_DecodeArguments(t *testing.T) {
	t.Parallel()

	args, err := decodeArguments(nil)
	require.NoError(t, err)
	require.Nil(t, args)

	args, err = decodeArguments([]byte(" null "))
	require.NoError(t, err)
	require.Nil(t, args)

	args, err = decodeArguments([]byte(`{"sql":"SELECT 1"}`))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"sql": "SELECT 1"}, args)

	_, err = decodeArguments([]byte(`["SELECT 1"]`))
	require.EqualError(t, err, "arguments must be a JSON object")
}
