package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/workbench/pkg/adapter"
	"github.com/leapstack-labs/workbench/pkg/core"
)

func connected(t *testing.T) *Adapter {
	t.Helper()
	adp := New(nil)
	require.NoError(t, adp.Connect(context.Background(), core.AdapterConfig{Path: ":memory:"}))
	t.Cleanup(func() { _ = adp.Close() })

	for _, stmt := range []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL UNIQUE, name TEXT DEFAULT 'anon')`,
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER NOT NULL REFERENCES users(id), total REAL)`,
		`CREATE INDEX idx_orders_user ON orders(user_id, total)`,
		`CREATE VIEW big_orders AS SELECT * FROM orders WHERE total > 100`,
		`CREATE TRIGGER orders_audit AFTER INSERT ON orders BEGIN SELECT 1; END`,
	} {
		_, err := adp.Execute(context.Background(), stmt, core.ExecOptions{})
		require.NoError(t, err, stmt)
	}
	return adp
}

func TestAdapter_Connect(t *testing.T) {
	t.Run("in-memory", func(t *testing.T) {
		adp := New(nil)
		require.NoError(t, adp.Connect(context.Background(), core.AdapterConfig{}))
		defer func() { _ = adp.Close() }()
		assert.True(t, adp.IsConnected())
		assert.NoError(t, adp.Ping(context.Background()))
	})

	t.Run("file-based", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.db")
		adp := New(nil)
		require.NoError(t, adp.Connect(context.Background(), core.AdapterConfig{Path: path}))
		defer func() { _ = adp.Close() }()

		_, err := adp.Execute(context.Background(), "CREATE TABLE t (id INTEGER)", core.ExecOptions{})
		require.NoError(t, err)
		_, err = os.Stat(path)
		assert.NoError(t, err)
	})
}

func TestAdapter_Execute(t *testing.T) {
	adp := connected(t)
	ctx := context.Background()

	res, err := adp.Execute(ctx, "INSERT INTO users (email) VALUES ('a@x.io'), ('b@x.io')", core.ExecOptions{})
	require.NoError(t, err)
	assert.Equal(t, core.ResultUpdate, res.Type)
	assert.Equal(t, int64(2), res.AffectedRows)
	assert.Equal(t, "2 row(s) affected", res.Message)

	res, err = adp.Execute(ctx, "SELECT id, email, name FROM users ORDER BY id", core.ExecOptions{})
	require.NoError(t, err)
	assert.Equal(t, core.ResultSet, res.Type)
	assert.Equal(t, []string{"id", "email", "name"}, res.ColumnNames())
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "a@x.io", res.Rows[0][1])
	assert.Equal(t, "anon", res.Rows[0][2])

	res, err = adp.Execute(ctx, "SELECT * FROM missing", core.ExecOptions{})
	require.Error(t, err)
	assert.Equal(t, core.ResultError, res.Type)
	assert.Contains(t, res.ErrorMessage, "no such table")
	assert.NotEmpty(t, res.ErrorCode)
}

func TestAdapter_ForeignKeysEnforced(t *testing.T) {
	adp := connected(t)

	res, err := adp.Execute(context.Background(), "INSERT INTO orders (user_id, total) VALUES (999, 1)", core.ExecOptions{})
	require.Error(t, err)
	assert.Contains(t, res.ErrorMessage, "FOREIGN KEY")
}

func TestAdapter_Catalog(t *testing.T) {
	adp := connected(t)
	ctx := context.Background()

	dbs, err := adp.ListDatabases(ctx)
	require.NoError(t, err)
	assert.Contains(t, dbs, "main")

	schemas, err := adp.ListSchemas(ctx, "main")
	require.NoError(t, err)
	assert.Empty(t, schemas)

	tables, err := adp.ListObjects(ctx, "main", core.ObjectTable)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "users"}, names(tables))

	views, err := adp.ListObjects(ctx, "main", core.ObjectView)
	require.NoError(t, err)
	assert.Equal(t, []string{"big_orders"}, names(views))

	triggers, err := adp.ListObjects(ctx, "main", core.ObjectTrigger)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders_audit"}, names(triggers))

	procs, err := adp.ListObjects(ctx, "main", core.ObjectProcedure)
	require.NoError(t, err)
	assert.Empty(t, procs)

	cols, err := adp.ListColumns(ctx, "main", "users")
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, "id", cols[0].Name)
	assert.Equal(t, "PRI", cols[0].Column.Key)
	assert.False(t, cols[1].Column.Nullable)
	assert.True(t, cols[2].Column.Nullable)
	assert.Equal(t, "'anon'", cols[2].Column.Default)

	idx, err := adp.ListIndexes(ctx, "main", "orders")
	require.NoError(t, err)
	require.Len(t, idx, 1)
	assert.Equal(t, "idx_orders_user", idx[0].Name)
	assert.Equal(t, "user_id, total", idx[0].Index.Columns)
	assert.False(t, idx[0].Index.Unique)

	fks, err := adp.ListForeignKeys(ctx, "main", "orders")
	require.NoError(t, err)
	require.Len(t, fks, 1)
	assert.Equal(t, "user_id", fks[0].ForeignKey.Column)
	assert.Equal(t, "users", fks[0].ForeignKey.ReferencedTable)
	assert.Equal(t, "id", fks[0].ForeignKey.ReferencedColumn)
}

func TestAdapter_NotConnected(t *testing.T) {
	adp := New(nil)
	ctx := context.Background()

	res, err := adp.Execute(ctx, "SELECT 1", core.ExecOptions{})
	assert.ErrorIs(t, err, adapter.ErrNotConnected)
	assert.Equal(t, core.ResultError, res.Type)

	_, err = adp.ListSchemas(ctx, "main")
	assert.ErrorIs(t, err, adapter.ErrNotConnected)
}

func names(objs []core.DatabaseObject) []string {
	out := make([]string, len(objs))
	for i, o := range objs {
		out[i] = o.Name
	}
	return out
}
