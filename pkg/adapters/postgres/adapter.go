package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"github.com/leapstack-labs/workbench/pkg/adapter"
	"github.com/leapstack-labs/workbench/pkg/core"
)

const (
	defaultDatabase = "postgres"
	connectTimeout  = 10
)

// Adapter implements the adapter.Adapter interface for PostgreSQL.
//
// Catalog calls accept "database.schema" references. Those run on a
// temporary connection to the named database, since a PostgreSQL session
// cannot see other databases.
type Adapter struct {
	adapter.BaseSQLAdapter

	openDB func(ctx context.Context, cfg adapter.Config) (*sql.DB, error)
}

// New creates a new PostgreSQL adapter instance.
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
		openDB: openDB,
	}
}

// Dialect returns the PostgreSQL dialect.
func (a *Adapter) Dialect() *core.Dialect {
	return Dialect
}

// Connect establishes a connection to PostgreSQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	if cfg.Database == "" {
		cfg.Database = defaultDatabase
	}

	a.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := a.openDB(ctx, cfg)
	if err != nil {
		return err
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

func openDB(ctx context.Context, cfg adapter.Config) (*sql.DB, error) {
	db, err := sql.Open("pgx", buildPostgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}

// buildPostgresDSN constructs a key=value connection string.
// String values are quoted so spaces and quotes in passwords survive.
func buildPostgresDSN(cfg adapter.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = core.PostgreSQL.DefaultPort()
	}
	database := cfg.Database
	if database == "" {
		database = defaultDatabase
	}
	sslmode := "disable"
	if cfg.UseSSL {
		sslmode = "require"
	}

	opts := make(map[string]string, len(cfg.Options))
	for k, v := range cfg.Options {
		opts[k] = v
	}
	if mode, ok := opts["sslmode"]; ok {
		sslmode = mode
		delete(opts, "sslmode")
	}

	parts := []string{
		"host=" + quoteValue(host),
		"port=" + strconv.Itoa(port),
		"dbname=" + quoteValue(database),
		"sslmode=" + sslmode,
		"connect_timeout=" + strconv.Itoa(connectTimeout),
	}
	if cfg.Username != "" {
		parts = append(parts, "user="+quoteValue(cfg.Username))
	}
	if cfg.Password != "" {
		parts = append(parts, "password="+quoteValue(cfg.Password))
	}

	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+quoteValue(opts[k]))
	}

	return strings.Join(parts, " ")
}

func quoteValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// errorCode returns the SQLSTATE of a server error.
func errorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func (a *Adapter) currentDatabase() string {
	if a.Cfg.Database != "" {
		return a.Cfg.Database
	}
	return defaultDatabase
}

// dbFor returns a connection to database, opening a temporary one when it
// is not the current database. The release func must always be called.
func (a *Adapter) dbFor(ctx context.Context, database string) (*sql.DB, func(), error) {
	if a.DB == nil {
		return nil, nil, adapter.ErrNotConnected
	}
	if database == "" || database == a.currentDatabase() {
		return a.DB, func() {}, nil
	}

	cfg := a.Cfg
	cfg.Database = database
	a.Logger.Debug("opening temporary connection", slog.String("database", database))

	db, err := a.openDB(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database %s: %w", database, err)
	}
	return db, func() { _ = db.Close() }, nil
}

// ListSchemas lists user schemas of database.
func (a *Adapter) ListSchemas(ctx context.Context, database string) ([]string, error) {
	db, release, err := a.dbFor(ctx, database)
	if err != nil {
		return nil, err
	}
	defer release()
	return a.ListNames(ctx, db, a.Catalog.Schemas)
}

// ListObjects lists objects of kind in a schema or "database.schema" reference.
func (a *Adapter) ListObjects(ctx context.Context, schemaRef string, kind core.ObjectType) ([]core.DatabaseObject, error) {
	database, schema := core.SplitSchemaRef(schemaRef)
	db, release, err := a.dbFor(ctx, database)
	if err != nil {
		return nil, err
	}
	defer release()

	objs, err := a.ListObjectsOn(ctx, db, schema, kind)
	return a.withDatabase(objs, database), err
}

// ListColumns lists the columns of a table in a schema or "database.schema" reference.
func (a *Adapter) ListColumns(ctx context.Context, schemaRef, table string) ([]core.DatabaseObject, error) {
	database, schema := core.SplitSchemaRef(schemaRef)
	db, release, err := a.dbFor(ctx, database)
	if err != nil {
		return nil, err
	}
	defer release()

	cols, err := a.ListColumnsOn(ctx, db, schema, table)
	return a.withDatabase(cols, database), err
}

// ListIndexes lists the indexes of a table in a schema or "database.schema" reference.
func (a *Adapter) ListIndexes(ctx context.Context, schemaRef, table string) ([]core.DatabaseObject, error) {
	database, schema := core.SplitSchemaRef(schemaRef)
	db, release, err := a.dbFor(ctx, database)
	if err != nil {
		return nil, err
	}
	defer release()

	idx, err := a.ListIndexesOn(ctx, db, schema, table)
	return a.withDatabase(idx, database), err
}

// ListForeignKeys lists the foreign keys of a table in a schema or "database.schema" reference.
func (a *Adapter) ListForeignKeys(ctx context.Context, schemaRef, table string) ([]core.DatabaseObject, error) {
	database, schema := core.SplitSchemaRef(schemaRef)
	db, release, err := a.dbFor(ctx, database)
	if err != nil {
		return nil, err
	}
	defer release()

	fks, err := a.ListForeignKeysOn(ctx, db, schema, table)
	return a.withDatabase(fks, database), err
}

func (a *Adapter) withDatabase(objs []core.DatabaseObject, database string) []core.DatabaseObject {
	if database == "" {
		database = a.currentDatabase()
	}
	for i := range objs {
		objs[i].Database = database
	}
	return objs
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
