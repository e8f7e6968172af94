package mcp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/litesql/rsmcp/internal/catalog"
)

func (s *Server) registerResourceTemplates() {
	loc := s.svc.Locator()
	s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: loc.SchemaTemplate(),
		Name:        "schema-tables",
		Description: "Tables in a schema.",
		MIMEType:    catalog.MediaTypeJSON,
	}, s.readResource)
	s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: loc.TableTemplate(),
		Name:        "table",
		Description: "Table metadata: kind is schema (columns), sample (up to 5 rows, email and phone redacted) or statistics.",
		MIMEType:    catalog.MediaTypeJSON,
	}, s.readResource)
}

// listResources ignores the cursor: the listing is built fresh and returned
// whole on every call.
func (s *Server) listResources(ctx context.Context, _ *mcp.ListResourcesRequest) (*mcp.ListResourcesResult, error) {
	descs, err := s.svc.ListResources(ctx, transportName)
	if err != nil {
		return nil, rpcError(err)
	}
	res := &mcp.ListResourcesResult{Resources: make([]*mcp.Resource, 0, len(descs))}
	for _, d := range descs {
		res.Resources = append(res.Resources, &mcp.Resource{
			URI:      d.URI,
			Name:     d.Name,
			MIMEType: d.MIMEType,
		})
	}
	return res, nil
}

func (s *Server) readResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	rows, err := s.svc.ReadResource(ctx, transportName, uri)
	if err != nil {
		return nil, rpcError(err)
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInternalError, Message: "encode resource: " + err.Error()}
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: catalog.MediaTypeJSON,
			Text:     string(b),
		}},
	}, nil
}

// rpcError maps address errors to invalid params and everything else to an
// internal error, keeping the message.
func rpcError(err error) error {
	var addrErr *catalog.AddressError
	if errors.As(err, &addrErr) {
		return &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: err.Error()}
	}
	return &jsonrpc.Error{Code: jsonrpc.CodeInternalError, Message: err.Error()}
}
