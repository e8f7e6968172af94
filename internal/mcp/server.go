package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/litesql/rsmcp/internal/service"
)

const transportName = "mcp"

type Config struct {
	Logger  *slog.Logger
	Service *service.Service
	Version string
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.Service == nil {
		return fmt.Errorf("service is required")
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	return nil
}

type Server struct {
	log *slog.Logger
	svc *service.Service
	mcp *mcp.Server
}

// NewServer registers the tools and resource templates and installs the
// routing middleware.
//
// Registration is what clients see in tools/list and
// resources/templates/list. Calls, reads and listings are all routed by the
// middleware instead of the SDK's registry, so unknown tool names and
// addresses outside the templates get the catalog's own answers, and the
// resource listing reflects the warehouse at request time.
func NewServer(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate mcp config: %w", err)
	}
	s := &Server{
		log: cfg.Logger,
		svc: cfg.Service,
		mcp: mcp.NewServer(&mcp.Implementation{Name: "rsmcp", Version: cfg.Version}, &mcp.ServerOptions{
			Logger: cfg.Logger,
		}),
	}
	if err := s.registerTools(); err != nil {
		return nil, err
	}
	s.registerResourceTemplates()
	s.mcp.AddReceivingMiddleware(s.route)
	return s, nil
}

// MCP returns the underlying SDK server.
func (s *Server) MCP() *mcp.Server { return s.mcp }

func (s *Server) route(next mcp.MethodHandler) mcp.MethodHandler {
	return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
		switch method {
		case service.MethodListResources:
			if r, ok := req.(*mcp.ListResourcesRequest); ok {
				res, err := s.listResources(ctx, r)
				if err != nil {
					return nil, err
				}
				return res, nil
			}
		case service.MethodReadResource:
			if r, ok := req.(*mcp.ReadResourceRequest); ok {
				res, err := s.readResource(ctx, r)
				if err != nil {
					return nil, err
				}
				return res, nil
			}
		case service.MethodCallTool:
			if r, ok := req.(*mcp.CallToolRequest); ok {
				res, err := s.callTool(ctx, r)
				if err != nil {
					return nil, err
				}
				return res, nil
			}
		}
		return next(ctx, method, req)
	}
}

// RunStdio serves one session over stdin/stdout until the client
// disconnects or ctx is done.
func (s *Server) RunStdio(ctx context.Context) error {
	s.log.Info("mcp: serving on stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler serves the streamable HTTP transport. Sessions are stateless,
// so clients can call tools without an initialize round trip.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, &mcp.StreamableHTTPOptions{
		Stateless: true,
	})
}
