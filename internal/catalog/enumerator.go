package catalog

import (
	"context"
	"slices"

	"github.com/jackc/pgx/v5/pgxpool"
)

const MediaTypeJSON = "application/json"

// ResourceDescriptor is one entry of a resource listing.
type ResourceDescriptor struct {
	Address  Address
	URI      string
	Name     string
	MIMEType string
}

// ListResources lists every non-system schema followed by the schema, sample
// and statistics resources of each of its tables. Schemas and tables are in
// name order so repeated listings are identical. Any query failure fails the
// whole listing.
func (c *Catalog) ListResources(ctx context.Context) ([]ResourceDescriptor, error) {
	var out []ResourceDescriptor
	err := c.withConn(ctx, func(conn *pgxpool.Conn) error {
		schemas, err := c.schemas(ctx, conn)
		if err != nil {
			return err
		}
		for _, schema := range schemas {
			out = append(out, c.descriptor(SchemaListing{Schema: schema}))

			tables, err := c.tables(ctx, conn, schema)
			if err != nil {
				return err
			}
			for _, table := range tables {
				for _, kind := range Kinds {
					out = append(out, c.descriptor(TableResource{Schema: schema, Table: table, Kind: kind}))
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Catalog) descriptor(addr Address) ResourceDescriptor {
	var name string
	switch a := addr.(type) {
	case SchemaListing:
		name = a.Schema + " tables"
	case TableResource:
		name = a.Schema + "." + a.Table + " " + a.Kind.String()
	}
	return ResourceDescriptor{
		Address:  addr,
		URI:      c.locator.URI(addr),
		Name:     name,
		MIMEType: MediaTypeJSON,
	}
}

func (c *Catalog) schemas(ctx context.Context, q querier) ([]string, error) {
	names, err := queryStrings(ctx, q, "list schemas", c.queries.Schemas)
	if err != nil {
		return nil, err
	}
	names = slices.DeleteFunc(names, IsSystemSchema)
	slices.Sort(names)
	return slices.Compact(names), nil
}

func (c *Catalog) tables(ctx context.Context, q querier, schema string) ([]string, error) {
	names, err := queryStrings(ctx, q, "list tables", c.queries.Tables, schema)
	if err != nil {
		return nil, err
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}
