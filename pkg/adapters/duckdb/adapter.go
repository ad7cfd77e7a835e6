package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver

	"github.com/leapstack-labs/workbench/pkg/adapter"
	"github.com/leapstack-labs/workbench/pkg/core"
)

// Adapter implements the adapter.Adapter interface for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{
			Logger:  logger,
			Catalog: catalog,
		},
	}
}

// Dialect returns the DuckDB dialect.
func (a *Adapter) Dialect() *core.Dialect {
	return Dialect
}

// Connect establishes a connection to DuckDB.
// Use ":memory:" or an empty path for an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	params, err := parseParams(cfg.Options)
	if err != nil {
		return err
	}

	dsn := cfg.Path
	if dsn == ":memory:" {
		dsn = ""
	}
	if params.ReadOnly && dsn != "" {
		dsn += "?access_mode=READ_ONLY"
	}

	a.Logger.Debug("opening duckdb database", slog.String("path", cfg.Path))

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	for _, stmt := range params.setupStatements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to apply duckdb option %q: %w", stmt, err)
		}
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// ListSchemas lists the schemas of a catalog. An empty name means the
// current catalog.
func (a *Adapter) ListSchemas(ctx context.Context, database string) ([]string, error) {
	return a.ListNames(ctx, a.DB, schemasQuery, database)
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
