package catalog

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// collect drains rows into a QueryResult, keeping column order and names.
func collect(rows pgx.Rows) (QueryResult, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}

	res := QueryResult{Columns: columns, Rows: []Row{}}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return QueryResult{}, err
		}
		row := make(Row, len(values))
		for i, v := range values {
			row[i] = Field{Name: columns[i], Value: ValueOf(v)}
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return QueryResult{}, err
	}
	return res, nil
}

func queryResult(ctx context.Context, q querier, op, sql string, args ...any) (QueryResult, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return QueryResult{}, engineError(op, err)
	}
	res, err := collect(rows)
	if err != nil {
		return QueryResult{}, engineError(op, err)
	}
	return res, nil
}

func queryStrings(ctx context.Context, q querier, op, sql string, args ...any) ([]string, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, engineError(op, err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, engineError(op, err)
	}
	return names, nil
}

// truthy coerces the engine's representation of a boolean flag.
func truthy(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "t", "true", "y", "yes", "1":
			return true
		}
		return false
	}
	return nonZero(v)
}

// nonZero reports whether a numeric value, such as a sort key position, is
// anything but zero.
func nonZero(v any) bool {
	switch n := v.(type) {
	case nil:
		return false
	case bool:
		return n
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return err == nil && f != 0
	}
	val := ValueOf(v)
	if val.Kind() != NumberValue {
		return false
	}
	f, err := strconv.ParseFloat(val.String(), 64)
	return err == nil && f != 0
}
