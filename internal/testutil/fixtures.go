package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite" // sqlite driver for seeding

	"github.com/leapstack-labs/workbench/pkg/core"
)

// ShopSchema is the fixture loaded by SQLiteProfile.
var ShopSchema = []string{
	`CREATE TABLE users (
		id INTEGER PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT DEFAULT 'anon'
	)`,
	`CREATE TABLE orders (
		id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id),
		total REAL NOT NULL
	)`,
	`CREATE INDEX idx_orders_user ON orders(user_id)`,
	`CREATE VIEW big_orders AS SELECT * FROM orders WHERE total > 100`,
	`CREATE TRIGGER orders_audit AFTER INSERT ON orders BEGIN SELECT 1; END`,
	`INSERT INTO users (id, email, name) VALUES
		(1, 'ada@example.com', 'Ada'),
		(2, 'linus@example.com', 'Linus'),
		(3, 'grace@example.com', 'Grace')`,
	`INSERT INTO orders (user_id, total) VALUES (1, 50), (1, 150), (2, 300), (3, 20)`,
}

// SQLiteProfile creates a SQLite database seeded with ShopSchema in a temp
// directory and returns a profile pointing at it.
func SQLiteProfile(t testing.TB, name string) core.ConnectionProfile {
	t.Helper()

	path := filepath.Join(t.TempDir(), name+".db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open fixture database: %v", err)
	}
	defer func() { _ = db.Close() }()

	for _, stmt := range ShopSchema {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed fixture database: %v", err)
		}
	}

	return core.ConnectionProfile{
		Name:         name,
		DatabaseType: core.SQLite,
		Path:         path,
	}
}
