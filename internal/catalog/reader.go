package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReadURI parses uri and reads the resource it addresses.
func (c *Catalog) ReadURI(ctx context.Context, uri string) (QueryResult, error) {
	addr, err := c.locator.Parse(uri)
	if err != nil {
		return QueryResult{}, err
	}
	return c.ReadResource(ctx, addr)
}

// ReadResource fetches and shapes the resource at addr.
func (c *Catalog) ReadResource(ctx context.Context, addr Address) (QueryResult, error) {
	var res QueryResult
	err := c.withConn(ctx, func(conn *pgxpool.Conn) error {
		var err error
		switch a := addr.(type) {
		case SchemaListing:
			res, err = c.readSchema(ctx, conn, a.Schema)
		case TableResource:
			res, err = c.readTable(ctx, conn, a)
		default:
			err = &AddressError{URI: fmt.Sprint(addr), Err: ErrInvalidAddress}
		}
		return err
	})
	if err != nil {
		return QueryResult{}, err
	}
	return res, nil
}

// readSchema lists the tables of schema in the order ListResources uses.
func (c *Catalog) readSchema(ctx context.Context, q querier, schema string) (QueryResult, error) {
	tables, err := c.tables(ctx, q, schema)
	if err != nil {
		return QueryResult{}, err
	}
	res := QueryResult{Columns: []string{tableNameField}, Rows: make([]Row, 0, len(tables))}
	for _, table := range tables {
		res.Rows = append(res.Rows, Row{{Name: tableNameField, Value: String(table)}})
	}
	return res, nil
}

func (c *Catalog) readTable(ctx context.Context, q querier, a TableResource) (QueryResult, error) {
	switch a.Kind {
	case KindSchema:
		columns, err := c.columns(ctx, q, a.Schema, a.Table)
		if err != nil {
			return QueryResult{}, err
		}
		res := QueryResult{Columns: columnFields, Rows: make([]Row, 0, len(columns))}
		for _, col := range columns {
			res.Rows = append(res.Rows, col.Row())
		}
		return res, nil
	case KindSample:
		res, err := queryResult(ctx, q, "sample rows", sampleQuery(a.Schema, a.Table))
		if err != nil {
			return QueryResult{}, err
		}
		Redact(res.Rows)
		return res, nil
	case KindStatistics:
		stats, err := c.statistics(ctx, q, a.Schema, a.Table)
		if err != nil {
			return QueryResult{}, err
		}
		res := QueryResult{Columns: statisticsFields, Rows: make([]Row, 0, len(stats))}
		for _, s := range stats {
			res.Rows = append(res.Rows, s.Row())
		}
		return res, nil
	}
	return QueryResult{}, &AddressError{URI: c.locator.URI(a), Err: fmt.Errorf("%w: %s", ErrUnknownKind, a.Kind)}
}

const tableNameField = "table_name"

var (
	columnFields     = fieldNames(ColumnDescriptor{}.Row())
	statisticsFields = fieldNames(TableStatistics{}.Row())
)

func fieldNames(r Row) []string {
	names := make([]string, len(r))
	for i, f := range r {
		names[i] = f.Name
	}
	return names
}

// columns returns the table's columns ordered by ordinal position.
func (c *Catalog) columns(ctx context.Context, q querier, schema, table string) ([]ColumnDescriptor, error) {
	rows, err := q.Query(ctx, c.queries.Columns, schema, table)
	if err != nil {
		return nil, engineError("describe columns", err)
	}
	scanned, err := pgx.CollectRows(rows, pgx.RowToStructByName[columnRow])
	if err != nil {
		return nil, engineError("describe columns", err)
	}
	out := make([]ColumnDescriptor, len(scanned))
	for i, r := range scanned {
		out[i] = r.descriptor()
	}
	return out, nil
}

// statistics returns zero or more statistics rows; zero is not an error.
func (c *Catalog) statistics(ctx context.Context, q querier, schema, table string) ([]TableStatistics, error) {
	rows, err := q.Query(ctx, c.queries.Statistics, schema, table)
	if err != nil {
		return nil, engineError("table statistics", err)
	}
	stats, err := pgx.CollectRows(rows, pgx.RowToStructByName[TableStatistics])
	if err != nil {
		return nil, engineError("table statistics", err)
	}
	return stats, nil
}
