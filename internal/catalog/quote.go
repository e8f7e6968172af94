package catalog

import (
	"strconv"

	"github.com/jackc/pgx/v5"
)

// SampleLimit caps the rows returned by a sample read.
const SampleLimit = 5

// QuoteIdentifier renders a schema-qualified name as a quoted identifier,
// doubling embedded quotes. The engine cannot bind identifiers as parameters,
// so this is the only place catalog names are interpolated into SQL text; it
// is used by the sample query alone.
func QuoteIdentifier(parts ...string) string {
	return pgx.Identifier(parts).Sanitize()
}

func sampleQuery(schema, table string) string {
	return "SELECT * FROM " + QuoteIdentifier(schema, table) + " LIMIT " + strconv.Itoa(SampleLimit)
}
