package connection

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/workbench/pkg/core"
)

// ListDatabases lists top level containers. For dialects without nested
// schemas, system databases are moved after user databases; each group
// keeps server order.
func (c *Connection) ListDatabases(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names, err := c.adapter.ListDatabases(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}

	return orderDatabases(c.adapter.Dialect(), names), nil
}

func orderDatabases(d *core.Dialect, names []string) []string {
	if d.DatabasesHaveSchemas || len(d.SystemSchemas) == 0 {
		return names
	}

	user := make([]string, 0, len(names))
	var system []string
	for _, n := range names {
		if d.IsSystemSchema(n) {
			system = append(system, n)
		} else {
			user = append(user, n)
		}
	}
	return append(user, system...)
}

// ListSchemas lists the schemas of database.
func (c *Connection) ListSchemas(ctx context.Context, database string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names, err := c.adapter.ListSchemas(ctx, database)
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}
	return names, nil
}

// ListObjects lists the objects of kind in schema.
func (c *Connection) ListObjects(ctx context.Context, schema string, kind core.ObjectType) ([]core.DatabaseObject, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.adapter.ListObjects(ctx, schema, kind)
}

// ListColumns lists the columns of a table or view.
func (c *Connection) ListColumns(ctx context.Context, schema, table string) ([]core.DatabaseObject, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.adapter.ListColumns(ctx, schema, table)
}

// ListIndexes lists the indexes of a table.
func (c *Connection) ListIndexes(ctx context.Context, schema, table string) ([]core.DatabaseObject, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.adapter.ListIndexes(ctx, schema, table)
}

// ListForeignKeys lists the foreign keys of a table.
func (c *Connection) ListForeignKeys(ctx context.Context, schema, table string) ([]core.DatabaseObject, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.adapter.ListForeignKeys(ctx, schema, table)
}
