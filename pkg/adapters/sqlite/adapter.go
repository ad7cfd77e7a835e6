package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"modernc.org/sqlite"

	"github.com/leapstack-labs/workbench/pkg/adapter"
	"github.com/leapstack-labs/workbench/pkg/core"
)

const memoryPath = ":memory:"

var sessionPragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
}

// Adapter implements the adapter.Adapter interface for SQLite.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new SQLite adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{
			Logger:    logger,
			Catalog:   catalog,
			ErrorCode: errorCode,
		},
	}
}

// Dialect returns the SQLite dialect.
func (a *Adapter) Dialect() *core.Dialect {
	return Dialect
}

// Connect opens the database file, creating it if needed.
// Use ":memory:" or an empty path for an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	path := cfg.Path
	if path == "" {
		path = memoryPath
	}

	a.Logger.Debug("opening sqlite database", slog.String("path", path))

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection keeps in-memory databases and session pragmas alive.
	db.SetMaxOpenConns(1)

	for _, pragma := range sessionPragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to configure sqlite: %w", err)
		}
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// ListSchemas returns nothing: attached databases are listed as databases.
func (a *Adapter) ListSchemas(_ context.Context, _ string) ([]string, error) {
	if a.DB == nil {
		return nil, adapter.ErrNotConnected
	}
	return []string{}, nil
}

// errorCode returns the SQLite extended result code.
func errorCode(err error) string {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return strconv.Itoa(se.Code())
	}
	return ""
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
