package commands

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/workbench/internal/cli/testutil"
	"github.com/leapstack-labs/workbench/internal/history"
)

func listHistory(t *testing.T, dir string, args ...string) []history.Entry {
	t.Helper()
	args = append([]string{"-o", "json"}, args...)
	res := testutil.Run(t, dir, nil, NewHistoryCommand(), args...)
	require.NoError(t, res.Err)

	var entries []history.Entry
	require.NoError(t, json.Unmarshal([]byte(res.Out), &entries), res.Out)
	return entries
}

func TestHistoryCommand(t *testing.T) {
	dir, profile := testutil.SetupConfigDir(t, "shop")

	res := testutil.Run(t, dir, nil, NewConnectionCommand(), "connection", "add", "copy",
		"--type", "sqlite", "--path", profile.Path)
	require.NoError(t, res.Err)

	for _, q := range []struct{ conn, sql string }{
		{"shop", "SELECT name FROM users"},
		{"shop", "SELECT * FROM missing"},
		{"copy", "SELECT COUNT(*) FROM orders"},
	} {
		_ = testutil.Run(t, dir, nil, NewQueryCommand(), "-c", q.conn, "query", "-f", "csv", q.sql)
	}

	t.Run("list", func(t *testing.T) {
		entries := listHistory(t, dir, "history")
		require.Len(t, entries, 3)
		assert.Equal(t, "SELECT COUNT(*) FROM orders", entries[0].SQL)
		assert.Equal(t, "copy", entries[0].Connection)
		assert.Equal(t, "error", string(entries[1].ResultType))
		assert.Contains(t, entries[1].Error, "no such table")
		assert.Equal(t, int64(3), entries[2].Rows)
	})

	t.Run("list limit", func(t *testing.T) {
		entries := listHistory(t, dir, "history", "list", "-n", "1")
		require.Len(t, entries, 1)
	})

	t.Run("list by connection", func(t *testing.T) {
		entries := listHistory(t, dir, "-c", "shop", "history")
		require.Len(t, entries, 2)
	})

	t.Run("search", func(t *testing.T) {
		entries := listHistory(t, dir, "history", "search", "from USERS")
		require.Len(t, entries, 1)
		assert.Equal(t, "SELECT name FROM users", entries[0].SQL)

		entries = listHistory(t, dir, "-c", "shop", "history", "search", "orders")
		assert.Empty(t, entries)
	})

	t.Run("markdown", func(t *testing.T) {
		res := testutil.Run(t, dir, nil, NewHistoryCommand(), "history")
		require.NoError(t, res.Err)
		assert.Contains(t, res.Out, "| SELECT name FROM users |")
	})

	t.Run("clear by connection", func(t *testing.T) {
		res := testutil.Run(t, dir, nil, NewHistoryCommand(), "-c", "copy", "history", "clear")
		require.NoError(t, res.Err)
		assert.Contains(t, res.Out, "Deleted 1 history entries")
		assert.Len(t, listHistory(t, dir, "history"), 2)
	})

	t.Run("clear all", func(t *testing.T) {
		res := testutil.Run(t, dir, nil, NewHistoryCommand(), "history", "clear")
		require.NoError(t, res.Err)
		assert.Contains(t, res.Out, "Deleted 2 history entries")

		res = testutil.Run(t, dir, nil, NewHistoryCommand(), "history")
		require.NoError(t, res.Err)
		assert.Contains(t, res.Out, "No history entries")
	})
}

func TestHistoryCommand_Disabled(t *testing.T) {
	dir, _ := testutil.SetupConfigDir(t, "shop")
	t.Setenv("WORKBENCH_HISTORY_ENABLED", "false")

	res := testutil.Run(t, dir, nil, NewHistoryCommand(), "history")
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "disabled")
}
