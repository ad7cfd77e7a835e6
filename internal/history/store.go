// Package history records executed statements in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // history database driver

	"github.com/leapstack-labs/workbench/pkg/core"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// DefaultMaxEntries is the retention limit used when none is configured.
const DefaultMaxEntries = 1000

// Entry is one executed statement.
type Entry struct {
	ID         string          `db:"id" json:"id"`
	Connection string          `db:"connection" json:"connection"`
	SQL        string          `db:"sql_text" json:"sql"`
	ResultType core.ResultType `db:"result_type" json:"result_type"`
	Rows       int64           `db:"row_count" json:"rows"`
	DurationMS int64           `db:"duration_ms" json:"duration_ms"`
	Error      string          `db:"error" json:"error,omitempty"`
	ExecutedAt int64           `db:"executed_at" json:"executed_at"`
}

// Time returns ExecutedAt as a time.Time.
func (e Entry) Time() time.Time {
	return time.UnixMilli(e.ExecutedAt)
}

// Duration returns the execution time.
func (e Entry) Duration() time.Duration {
	return time.Duration(e.DurationMS) * time.Millisecond
}

// EntryFromResult builds an entry for a statement and its result.
func EntryFromResult(connection, stmt string, r *core.QueryResult) Entry {
	e := Entry{
		Connection: connection,
		SQL:        strings.TrimSpace(stmt),
		ResultType: core.ResultError,
	}
	if r == nil {
		return e
	}
	e.ResultType = r.Type
	e.DurationMS = r.Duration.Milliseconds()
	e.Error = r.ErrorMessage
	switch r.Type {
	case core.ResultSet:
		e.Rows = int64(len(r.Rows))
	case core.ResultUpdate:
		e.Rows = r.AffectedRows
	}
	return e
}

// ListOptions narrows List.
type ListOptions struct {
	Connection string
	Limit      int
}

// Store is the history database.
type Store struct {
	db         *sqlx.DB
	maxEntries int
	logger     *slog.Logger
}

// Open opens (creating if needed) the history database at path and applies
// pending migrations. maxEntries <= 0 selects DefaultMaxEntries.
func Open(path string, maxEntries int, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Debug("history database opened", "path", path, "max_entries", maxEntries)
	return &Store{db: db, maxEntries: maxEntries, logger: logger}, nil
}

func migrate(db *sqlx.DB) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(string(goose.DialectSQLite3)); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		return fmt.Errorf("failed to run history migrations: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close history database: %w", err)
	}
	return nil
}

// Record inserts e, filling ID and ExecutedAt when unset, then prunes the
// oldest entries beyond the retention limit.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.ExecutedAt == 0 {
		e.ExecutedAt = time.Now().UnixMilli()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return e, fmt.Errorf("failed to begin history transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO query_history (id, connection, sql_text, result_type, row_count, duration_ms, error, executed_at)
		VALUES (:id, :connection, :sql_text, :result_type, :row_count, :duration_ms, :error, :executed_at)`, e)
	if err != nil {
		return e, fmt.Errorf("failed to record history entry: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM query_history WHERE id NOT IN (
			SELECT id FROM query_history ORDER BY executed_at DESC, rowid DESC LIMIT ?
		)`, s.maxEntries)
	if err != nil {
		return e, fmt.Errorf("failed to prune history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return e, fmt.Errorf("failed to commit history entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Debug("pruned history", "removed", n)
	}
	return e, nil
}

// RecordResults records one entry per result, using each result's statement.
func (s *Store) RecordResults(ctx context.Context, connection string, results []*core.QueryResult) error {
	for _, r := range results {
		if r == nil {
			continue
		}
		if _, err := s.Record(ctx, EntryFromResult(connection, r.Statement, r)); err != nil {
			return err
		}
	}
	return nil
}

// List returns entries newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	query := `SELECT * FROM query_history`
	var args []any
	if opts.Connection != "" {
		query += ` WHERE connection = ?`
		args = append(args, opts.Connection)
	}
	query += ` ORDER BY executed_at DESC, rowid DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	entries := []Entry{}
	if err := s.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return entries, nil
}

// Search returns entries whose SQL contains term, ignoring case, newest first.
func (s *Store) Search(ctx context.Context, term string, limit int) ([]Entry, error) {
	query := `SELECT * FROM query_history WHERE instr(lower(sql_text), lower(?)) > 0 ORDER BY executed_at DESC, rowid DESC`
	args := []any{term}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	entries := []Entry{}
	if err := s.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search history: %w", err)
	}
	return entries, nil
}

// Clear deletes the entries of connection, or every entry when connection is empty.
func (s *Store) Clear(ctx context.Context, connection string) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if connection == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM query_history`)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM query_history WHERE connection = ?`, connection)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM query_history`); err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return n, nil
}
