package catalog

import "time"

// ColumnDescriptor describes one column of a table. It is built fresh on
// every request.
type ColumnDescriptor struct {
	Name              string
	Type              string
	Nullable          bool
	Position          int64
	Length            *int64
	Precision         *int64
	Scale             *int64
	Default           *string
	IsDistributionKey bool
	IsSortKey         bool
}

// Row renders the descriptor with stable field names.
func (d ColumnDescriptor) Row() Row {
	return Row{
		{Name: "column_name", Value: String(d.Name)},
		{Name: "data_type", Value: String(d.Type)},
		{Name: "is_nullable", Value: Bool(d.Nullable)},
		{Name: "ordinal_position", Value: ValueOf(d.Position)},
		{Name: "character_maximum_length", Value: optional(d.Length)},
		{Name: "numeric_precision", Value: optional(d.Precision)},
		{Name: "numeric_scale", Value: optional(d.Scale)},
		{Name: "column_default", Value: optional(d.Default)},
		{Name: "is_distkey", Value: Bool(d.IsDistributionKey)},
		{Name: "is_sortkey", Value: Bool(d.IsSortKey)},
	}
}

// columnRow is the shape of the Columns query.
type columnRow struct {
	Name      string  `db:"column_name"`
	Type      string  `db:"data_type"`
	Nullable  string  `db:"is_nullable"`
	Position  int64   `db:"ordinal_position"`
	Length    *int64  `db:"character_maximum_length"`
	Precision *int64  `db:"numeric_precision"`
	Scale     *int64  `db:"numeric_scale"`
	Default   *string `db:"column_default"`
	DistKey   any     `db:"distkey"`
	SortKey   any     `db:"sortkey"`
}

func (r columnRow) descriptor() ColumnDescriptor {
	return ColumnDescriptor{
		Name:              r.Name,
		Type:              r.Type,
		Nullable:          truthy(r.Nullable),
		Position:          r.Position,
		Length:            r.Length,
		Precision:         r.Precision,
		Scale:             r.Scale,
		Default:           r.Default,
		IsDistributionKey: truthy(r.DistKey),
		IsSortKey:         nonZero(r.SortKey),
	}
}

// TableStatistics is one row of the Statistics query. Its columns are a
// fixed contract with the catalog view; a view that returns other columns
// fails the read instead of being reshaped.
type TableStatistics struct {
	Database   *string    `db:"database"`
	Schema     *string    `db:"schema"`
	TableID    *int64     `db:"table_id"`
	Table      *string    `db:"table"`
	Size       *int64     `db:"size"`
	PctUsed    *float64   `db:"pct_used"`
	Rows       *int64     `db:"tbl_rows"`
	Encoded    *string    `db:"encoded"`
	DistStyle  *string    `db:"diststyle"`
	SortKey1   *string    `db:"sortkey1"`
	MaxVarchar *int64     `db:"max_varchar"`
	CreateTime *time.Time `db:"create_time"`
}

func (s TableStatistics) Row() Row {
	return Row{
		{Name: "database", Value: optional(s.Database)},
		{Name: "schema", Value: optional(s.Schema)},
		{Name: "table_id", Value: optional(s.TableID)},
		{Name: "table", Value: optional(s.Table)},
		{Name: "size", Value: optional(s.Size)},
		{Name: "pct_used", Value: optional(s.PctUsed)},
		{Name: "tbl_rows", Value: optional(s.Rows)},
		{Name: "encoded", Value: optional(s.Encoded)},
		{Name: "diststyle", Value: optional(s.DistStyle)},
		{Name: "sortkey1", Value: optional(s.SortKey1)},
		{Name: "max_varchar", Value: optional(s.MaxVarchar)},
		{Name: "create_time", Value: optional(s.CreateTime)},
	}
}

func optional[T any](p *T) Value {
	if p == nil {
		return Null()
	}
	return ValueOf(*p)
}
