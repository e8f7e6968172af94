package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/litesql/rsmcp/internal/catalog"
)

type QueryInput struct {
	SQL string `json:"sql" jsonschema:"The SQL to run. It executes in a read-only transaction that is always rolled back."`
}

type DescribeTableInput struct {
	Schema string `json:"schema" jsonschema:"The schema that contains the table."`
	Table  string `json:"table" jsonschema:"The table to describe."`
}

type FindColumnInput struct {
	Pattern string `json:"pattern" jsonschema:"Text to look for in column names, case-insensitive. LIKE wildcards keep their meaning."`
}

func inputSchema(tool catalog.Tool) (*jsonschema.Schema, error) {
	switch tool {
	case catalog.ToolQuery:
		return jsonschema.For[QueryInput](nil)
	case catalog.ToolDescribeTable:
		return jsonschema.For[DescribeTableInput](nil)
	case catalog.ToolFindColumn:
		return jsonschema.For[FindColumnInput](nil)
	}
	return nil, fmt.Errorf("no input schema for %s", tool)
}

func (s *Server) registerTools() error {
	for _, tool := range catalog.Tools {
		schema, err := inputSchema(tool)
		if err != nil {
			return fmt.Errorf("failed to create %s input schema: %w", tool, err)
		}
		s.mcp.AddTool(&mcp.Tool{
			Name:        tool.String(),
			Description: tool.Description(),
			InputSchema: schema,
		}, s.callTool)
	}
	return nil
}

// callTool hands the raw arguments to the dispatcher, which does its own
// validation; the schema is advisory.
func (s *Server) callTool(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decodeArguments(req.Params.Arguments)
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "Error: " + err.Error()}},
			IsError: true,
		}, nil
	}
	return toolResult(s.svc.CallTool(ctx, transportName, req.Params.Name, args)), nil
}

func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object")
	}
	return args, nil
}

func toolResult(res catalog.ToolResult) *mcp.CallToolResult {
	out := &mcp.CallToolResult{
		Content: make([]mcp.Content, 0, len(res.Content)),
		IsError: res.IsError,
	}
	for _, c := range res.Content {
		out.Content = append(out.Content, &mcp.TextContent{Text: c.Text})
	}
	return out
}
