package catalog

import "strings"

// Queries is the catalog SQL the enumerator, reader and dispatcher run. Every
// statement binds values as parameters:
//
//   - Schemas: no parameters; one text column with the schema name.
//   - Tables: $1 schema; one text column with the table name.
//   - Columns: $1 schema, $2 table; columns named as in columnRow.
//   - Statistics: $1 schema, $2 table; columns named as in TableStatistics.
//   - StatisticsSummary: $1 schema, $2 table; size, tbl_rows, create_time.
//   - FindColumn: $1 ILIKE pattern; schema, table, column, type.
type Queries struct {
	Schemas           string
	Tables            string
	Columns           string
	Statistics        string
	StatisticsSummary string
	FindColumn        string
}

// RedshiftQueries reads Redshift's catalog. Distribution and sort key flags
// come from the attisdistkey and attsortkeyord columns of pg_attribute;
// statistics come from svv_table_info, which has no row for empty tables.
var RedshiftQueries = Queries{
	Schemas: `SELECT nspname FROM pg_namespace ORDER BY nspname`,
	Tables: `SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		ORDER BY table_name`,
	Columns: `SELECT c.column_name, c.data_type, c.is_nullable, c.ordinal_position,
			c.character_maximum_length, c.numeric_precision, c.numeric_scale, c.column_default,
			COALESCE(a.attisdistkey, false) AS distkey,
			COALESCE(a.attsortkeyord, 0) AS sortkey
		FROM information_schema.columns c
		LEFT JOIN pg_namespace n ON n.nspname = c.table_schema
		LEFT JOIN pg_class t ON t.relnamespace = n.oid AND t.relname = c.table_name
		LEFT JOIN pg_attribute a ON a.attrelid = t.oid AND a.attname = c.column_name
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position`,
	Statistics: `SELECT "database", "schema", table_id::bigint AS table_id, "table",
			size, pct_used, tbl_rows, encoded, diststyle, sortkey1, max_varchar, create_time
		FROM svv_table_info
		WHERE "schema" = $1 AND "table" = $2`,
	StatisticsSummary: `SELECT size, tbl_rows, create_time
		FROM svv_table_info
		WHERE "schema" = $1 AND "table" = $2`,
	FindColumn: `SELECT table_schema AS "schema", table_name AS "table", column_name AS "column", data_type AS "type"
		FROM information_schema.columns
		WHERE column_name ILIKE $1
		ORDER BY table_schema, table_name, column_name`,
}

// PostgresQueries answers the same questions on plain PostgreSQL, which has
// no distribution or sort keys: the primary key stands in for the sort key
// and its first column for the distribution key.
var PostgresQueries = Queries{
	Schemas: `SELECT nspname::text FROM pg_namespace ORDER BY nspname`,
	Tables: `SELECT table_name::text
		FROM information_schema.tables
		WHERE table_schema = $1
		ORDER BY table_name`,
	Columns: `SELECT c.column_name::text, c.data_type::text, c.is_nullable::text, c.ordinal_position::bigint,
			c.character_maximum_length::bigint, c.numeric_precision::bigint, c.numeric_scale::bigint,
			c.column_default::text,
			(k.ordinal_position = 1) IS TRUE AS distkey,
			COALESCE(k.ordinal_position, 0)::int AS sortkey
		FROM information_schema.columns c
		LEFT JOIN information_schema.table_constraints tc
			ON tc.table_schema = c.table_schema AND tc.table_name = c.table_name AND tc.constraint_type = 'PRIMARY KEY'
		LEFT JOIN information_schema.key_column_usage k
			ON k.constraint_schema = tc.constraint_schema AND k.constraint_name = tc.constraint_name
			AND k.column_name = c.column_name
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position`,
	Statistics: `SELECT current_database()::text AS "database", n.nspname::text AS "schema",
			c.oid::bigint AS table_id, c.relname::text AS "table",
			(pg_total_relation_size(c.oid) / 1048576)::bigint AS size, NULL::numeric AS pct_used,
			GREATEST(c.reltuples, 0)::bigint AS tbl_rows, NULL::text AS encoded, NULL::text AS diststyle,
			NULL::text AS sortkey1, NULL::int AS max_varchar, NULL::timestamp AS create_time
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relname = $2 AND c.relkind = 'r'`,
	StatisticsSummary: `SELECT (pg_total_relation_size(c.oid) / 1048576)::bigint AS size,
			GREATEST(c.reltuples, 0)::bigint AS tbl_rows, NULL::timestamp AS create_time
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relname = $2 AND c.relkind = 'r'`,
	FindColumn: `SELECT table_schema::text AS "schema", table_name::text AS "table",
			column_name::text AS "column", data_type::text AS "type"
		FROM information_schema.columns
		WHERE column_name ILIKE $1
		ORDER BY table_schema, table_name, column_name`,
}

func (q Queries) missing() string {
	switch {
	case q.Schemas == "":
		return "schemas"
	case q.Tables == "":
		return "tables"
	case q.Columns == "":
		return "columns"
	case q.Statistics == "":
		return "statistics"
	case q.StatisticsSummary == "":
		return "statistics summary"
	case q.FindColumn == "":
		return "find column"
	}
	return ""
}

// System schemas are hidden from listings and column search. This is a
// denylist of the engine's own namespaces, not an access control: anything
// the connection's user can see and is not on the list is exposed.
var (
	systemSchemas = map[string]struct{}{
		"pg_catalog":         {},
		"information_schema": {},
		"pg_toast":           {},
		"catalog_history":    {},
	}
	systemSchemaPrefixes = []string{"pg_temp_", "pg_toast_temp_", "pg_internal", "pg_auto_copy"}
)

// IsSystemSchema reports whether name is one of the engine's own schemas.
func IsSystemSchema(name string) bool {
	if _, ok := systemSchemas[name]; ok {
		return true
	}
	for _, p := range systemSchemaPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
