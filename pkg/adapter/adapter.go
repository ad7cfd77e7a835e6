// Package adapter provides the database adapter contract used by the workbench.
//
// This package contains the public contract that all database adapters must implement.
// Concrete adapter implementations are in pkg/adapters/ subdirectories.
package adapter

import (
	"context"
	"errors"

	"github.com/leapstack-labs/workbench/pkg/core"
)

// Config is an alias for core.AdapterConfig.
type Config = core.AdapterConfig

// ErrNotConnected is returned when an operation needs an open connection.
var ErrNotConnected = errors.New("not connected to database")

// Adapter defines the interface that all database adapters must implement.
// It provides methods for connecting to databases, executing SQL, and
// browsing the catalog.
type Adapter interface {
	// Connect establishes a connection to the database using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database connection and releases resources.
	Close() error

	// IsConnected reports whether Connect succeeded and Close was not called.
	IsConnected() bool

	// Ping checks that the server is reachable.
	Ping(ctx context.Context) error

	// Execute runs a single statement. The result is never nil; for failures
	// it has type error and the error is returned as well.
	Execute(ctx context.Context, sql string, opts core.ExecOptions) (*core.QueryResult, error)

	// ListDatabases returns the top level containers of the server.
	ListDatabases(ctx context.Context) ([]string, error)

	// ListSchemas returns the schemas inside database.
	// Adapters without nested schemas return an empty list.
	ListSchemas(ctx context.Context, database string) ([]string, error)

	// ListObjects returns the objects of kind inside schema.
	ListObjects(ctx context.Context, schema string, kind core.ObjectType) ([]core.DatabaseObject, error)

	// ListColumns returns the columns of a table or view.
	ListColumns(ctx context.Context, schema, table string) ([]core.DatabaseObject, error)

	// ListIndexes returns the indexes of a table.
	ListIndexes(ctx context.Context, schema, table string) ([]core.DatabaseObject, error)

	// ListForeignKeys returns the foreign keys of a table.
	ListForeignKeys(ctx context.Context, schema, table string) ([]core.DatabaseObject, error)

	// Dialect returns the SQL dialect description for this adapter.
	Dialect() *core.Dialect
}
