package core

import (
	"fmt"
	"strings"
)

// DatabaseType identifies the database engine behind a connection profile.
type DatabaseType string

// Supported database types. The string values are the ones persisted in
// connections.json.
const (
	MySQL      DatabaseType = "mysql"
	PostgreSQL DatabaseType = "postgresql"
	SQLite     DatabaseType = "sqlite"
	DuckDB     DatabaseType = "duckdb"
)

// DatabaseTypes lists every supported type in display order.
var DatabaseTypes = []DatabaseType{MySQL, PostgreSQL, SQLite, DuckDB}

// ParseDatabaseType resolves a user supplied type name, accepting common aliases.
// An empty string resolves to MySQL.
func ParseDatabaseType(s string) (DatabaseType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mysql", "mariadb":
		return MySQL, nil
	case "postgresql", "postgres", "pg", "pgsql":
		return PostgreSQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "duckdb":
		return DuckDB, nil
	default:
		return "", fmt.Errorf("unsupported database type %q (supported: mysql, postgresql, sqlite, duckdb)", s)
	}
}

// IsFileBased reports whether the database lives in a local file rather than a server.
func (t DatabaseType) IsFileBased() bool {
	return t == SQLite || t == DuckDB
}

// DefaultPort returns the conventional server port for the type, or 0 for file databases.
func (t DatabaseType) DefaultPort() int {
	switch t {
	case MySQL:
		return 3306
	case PostgreSQL:
		return 5432
	default:
		return 0
	}
}

// String implements fmt.Stringer.
func (t DatabaseType) String() string {
	return string(t)
}
