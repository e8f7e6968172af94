package catalog

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Tool is one of the fixed set of invocable operations.
type Tool int

const (
	ToolQuery Tool = iota + 1
	ToolDescribeTable
	ToolFindColumn
)

// Tools lists every tool in registration order.
var Tools = []Tool{ToolQuery, ToolDescribeTable, ToolFindColumn}

func (t Tool) String() string {
	switch t {
	case ToolQuery:
		return "query"
	case ToolDescribeTable:
		return "describe_table"
	case ToolFindColumn:
		return "find_column"
	}
	return fmt.Sprintf("Tool(%d)", int(t))
}

// ParseTool maps a tool name to its Tool.
func ParseTool(name string) (Tool, bool) {
	for _, t := range Tools {
		if t.String() == name {
			return t, true
		}
	}
	return 0, false
}

// RequiredArgs lists the string arguments a call must carry.
func (t Tool) RequiredArgs() []string {
	switch t {
	case ToolQuery:
		return []string{"sql"}
	case ToolDescribeTable:
		return []string{"schema", "table"}
	case ToolFindColumn:
		return []string{"pattern"}
	}
	return nil
}

func (t Tool) Description() string {
	switch t {
	case ToolQuery:
		return "Run a SQL query in a read-only transaction that is always rolled back. Returns the result rows as JSON."
	case ToolDescribeTable:
		return "Describe a table: its columns with nullability, position, distribution key and sort key flags, plus size, row count and creation time."
	case ToolFindColumn:
		return "Find columns whose name contains a pattern, case-insensitively, across all schemas and tables."
	}
	return ""
}

// Content is one item of a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResult is the outcome of a tool call. Failures are reported through
// IsError, never as Go errors.
type ToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError"`
	// Err is the failure behind an error result. It is never serialized.
	Err error `json:"-"`
}

// Text returns the concatenated text content.
func (r ToolResult) Text() string {
	var b strings.Builder
	for _, c := range r.Content {
		b.WriteString(c.Text)
	}
	return b.String()
}

func textResult(payload any) ToolResult {
	b, err := json.Marshal(payload)
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}
	return ToolResult{Content: []Content{{Type: "text", Text: string(b)}}}
}

func errorResult(err error) ToolResult {
	return ToolResult{Content: []Content{{Type: "text", Text: "Error: " + err.Error()}}, IsError: true, Err: err}
}

// Unknown fills each field of a statistics summary that has no row.
const Unknown = "Unknown"

// TableDescription is the describe_table payload.
type TableDescription struct {
	Columns    []Row `json:"columns"`
	Statistics []Row `json:"statistics"`
}

// Invoke runs the named tool. Unknown tools, bad arguments and engine
// failures all come back as results with IsError set.
func (c *Catalog) Invoke(ctx context.Context, name string, args map[string]any) ToolResult {
	tool, ok := ParseTool(name)
	if !ok {
		return errorResult(fmt.Errorf("%w: %q", ErrUnknownTool, name))
	}
	strs, err := requireArgs(tool, args)
	if err != nil {
		return errorResult(err)
	}

	start := time.Now()
	var payload any
	switch tool {
	case ToolQuery:
		payload, err = c.RunReadOnly(ctx, strs["sql"])
	case ToolDescribeTable:
		payload, err = c.DescribeTable(ctx, strs["schema"], strs["table"])
	case ToolFindColumn:
		payload, err = c.FindColumn(ctx, strs["pattern"])
	}
	if err != nil {
		c.log.Info("tool: call failed", "tool", name, "error", err, "duration", time.Since(start))
		return errorResult(err)
	}
	c.log.Debug("tool: call succeeded", "tool", name, "duration", time.Since(start))
	return textResult(payload)
}

func requireArgs(tool Tool, args map[string]any) (map[string]string, error) {
	out := make(map[string]string)
	for _, key := range tool.RequiredArgs() {
		v, ok := args[key]
		if !ok || v == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingArgument, key)
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("argument %q must be a string", key)
		}
		out[key] = s
	}
	return out, nil
}

// DescribeTable returns the table's columns and a size, row count and
// creation time summary. A table without statistics gets a single summary
// row of Unknown values.
func (c *Catalog) DescribeTable(ctx context.Context, schema, table string) (TableDescription, error) {
	var desc TableDescription
	err := c.withConn(ctx, func(conn *pgxpool.Conn) error {
		columns, err := c.columns(ctx, conn, schema, table)
		if err != nil {
			return err
		}
		desc.Columns = make([]Row, 0, len(columns))
		for _, col := range columns {
			desc.Columns = append(desc.Columns, col.Row())
		}

		summary, err := queryResult(ctx, conn, "table statistics", c.queries.StatisticsSummary, schema, table)
		if err != nil {
			return err
		}
		desc.Statistics = summary.Rows
		if len(desc.Statistics) == 0 {
			desc.Statistics = []Row{{
				{Name: "size", Value: String(Unknown)},
				{Name: "tbl_rows", Value: String(Unknown)},
				{Name: "create_time", Value: String(Unknown)},
			}}
		}
		return nil
	})
	if err != nil {
		return TableDescription{}, err
	}
	return desc, nil
}

// FindColumn searches column names for pattern as a case-insensitive
// substring. The pattern is used as-is inside %...%, so LIKE wildcards in it
// keep their meaning. System schemas are skipped.
func (c *Catalog) FindColumn(ctx context.Context, pattern string) (QueryResult, error) {
	var res QueryResult
	err := c.withConn(ctx, func(conn *pgxpool.Conn) error {
		var err error
		res, err = queryResult(ctx, conn, "find column", c.queries.FindColumn, "%"+pattern+"%")
		return err
	})
	if err != nil {
		return QueryResult{}, err
	}
	res.Rows = slices.DeleteFunc(res.Rows, func(r Row) bool {
		return IsSystemSchema(field(r, "schema"))
	})
	slices.SortStableFunc(res.Rows, func(a, b Row) int {
		return cmp.Or(
			cmp.Compare(field(a, "schema"), field(b, "schema")),
			cmp.Compare(field(a, "table"), field(b, "table")),
			cmp.Compare(field(a, "column"), field(b, "column")),
		)
	})
	return res, nil
}

func field(r Row, name string) string {
	v, _ := r.Get(name)
	return v.String()
}

// IsEngineError reports whether err came from the SQL engine.
func IsEngineError(err error) bool {
	var ee *EngineError
	return errors.As(err, &ee)
}
