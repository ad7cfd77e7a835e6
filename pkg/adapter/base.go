package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/workbench/pkg/core"
	"github.com/leapstack-labs/workbench/pkg/sqlscript"
)

// Catalog holds the dialect specific catalog queries used by BaseSQLAdapter.
// All queries take bound parameters only.
type Catalog struct {
	// Databases takes no parameters and returns one name column.
	Databases string

	// Schemas takes no parameters and returns one name column.
	Schemas string

	// Objects maps an object kind to a query taking the schema and
	// returning one name column. Kinds without a query are unsupported.
	Objects map[core.ObjectType]string

	// Columns takes schema and table and returns
	// name, data type, nullable (YES/NO), key, default, extra.
	Columns string

	// Indexes takes schema and table and returns name, columns, unique.
	Indexes string

	// ForeignKeys takes schema and table and returns
	// name, column, referenced schema, referenced table, referenced column.
	ForeignKeys string
}

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// Close, Execute and catalog implementations.
type BaseSQLAdapter struct {
	DB      *sql.DB
	Cfg     core.AdapterConfig
	Logger  *slog.Logger
	Catalog Catalog

	// ErrorCode extracts a driver specific error code. Optional.
	ErrorCode func(error) string
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		err := b.DB.Close()
		b.DB = nil
		return err
	}
	return nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// Ping checks the connection.
func (b *BaseSQLAdapter) Ping(ctx context.Context) error {
	if b.DB == nil {
		return ErrNotConnected
	}
	if err := b.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Execute runs a single statement and describes its outcome.
func (b *BaseSQLAdapter) Execute(ctx context.Context, query string, opts core.ExecOptions) (*core.QueryResult, error) {
	start := time.Now()
	if b.DB == nil {
		return &core.QueryResult{
			Type:         core.ResultError,
			Statement:    query,
			ErrorMessage: ErrNotConnected.Error(),
		}, ErrNotConnected
	}

	if !opts.NoFetch && sqlscript.Classify(query) != sqlscript.KindExec {
		return b.executeQuery(ctx, query, opts.MaxRows, start)
	}

	res, err := b.DB.ExecContext(ctx, query)
	if err != nil {
		return b.errorResult(query, start, err), err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		affected = 0
	}
	return &core.QueryResult{
		Type:         core.ResultUpdate,
		Statement:    query,
		AffectedRows: affected,
		Duration:     time.Since(start),
		Message:      fmt.Sprintf("%d row(s) affected", affected),
	}, nil
}

func (b *BaseSQLAdapter) executeQuery(ctx context.Context, query string, maxRows int, start time.Time) (*core.QueryResult, error) {
	rows, err := b.DB.QueryContext(ctx, query)
	if err != nil {
		return b.errorResult(query, start, err), err
	}
	defer func() { _ = rows.Close() }()

	result := &core.QueryResult{Type: core.ResultSet, Statement: query}

	types, err := rows.ColumnTypes()
	if err != nil {
		return b.errorResult(query, start, err), err
	}
	if len(types) == 0 {
		// CALL and other unclassified statements that produced no result set.
		if err := rows.Close(); err != nil {
			return b.errorResult(query, start, err), err
		}
		return &core.QueryResult{
			Type:      core.ResultUpdate,
			Statement: query,
			Duration:  time.Since(start),
			Message:   "Statement executed",
		}, nil
	}
	for _, ct := range types {
		nullable, _ := ct.Nullable()
		result.Columns = append(result.Columns, core.ResultColumn{
			Name:     ct.Name(),
			Type:     ct.DatabaseTypeName(),
			Nullable: nullable,
		})
	}

	for rows.Next() {
		if maxRows > 0 && len(result.Rows) >= maxRows {
			result.Truncated = true
			break
		}
		values := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return b.errorResult(query, start, err), err
		}
		for i, v := range values {
			if raw, ok := v.([]byte); ok {
				values[i] = string(raw)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return b.errorResult(query, start, err), err
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (b *BaseSQLAdapter) errorResult(query string, start time.Time, err error) *core.QueryResult {
	res := &core.QueryResult{
		Type:         core.ResultError,
		Statement:    query,
		Duration:     time.Since(start),
		ErrorMessage: err.Error(),
	}
	if b.ErrorCode != nil {
		res.ErrorCode = b.ErrorCode(err)
	}
	if b.Logger != nil {
		b.Logger.Debug("statement failed", "error", err, "code", res.ErrorCode)
	}
	return res
}

// ListDatabases runs the catalog's database query.
func (b *BaseSQLAdapter) ListDatabases(ctx context.Context) ([]string, error) {
	return b.ListNames(ctx, b.DB, b.Catalog.Databases)
}

// ListSchemas runs the catalog's schema query against the current database.
func (b *BaseSQLAdapter) ListSchemas(ctx context.Context, _ string) ([]string, error) {
	return b.ListNames(ctx, b.DB, b.Catalog.Schemas)
}

// ListObjects lists objects of kind in schema. Unsupported kinds yield an empty list.
func (b *BaseSQLAdapter) ListObjects(ctx context.Context, schema string, kind core.ObjectType) ([]core.DatabaseObject, error) {
	return b.ListObjectsOn(ctx, b.DB, schema, kind)
}

// ListColumns lists the columns of a table.
func (b *BaseSQLAdapter) ListColumns(ctx context.Context, schema, table string) ([]core.DatabaseObject, error) {
	return b.ListColumnsOn(ctx, b.DB, schema, table)
}

// ListIndexes lists the indexes of a table.
func (b *BaseSQLAdapter) ListIndexes(ctx context.Context, schema, table string) ([]core.DatabaseObject, error) {
	return b.ListIndexesOn(ctx, b.DB, schema, table)
}

// ListForeignKeys lists the foreign keys of a table.
func (b *BaseSQLAdapter) ListForeignKeys(ctx context.Context, schema, table string) ([]core.DatabaseObject, error) {
	return b.ListForeignKeysOn(ctx, b.DB, schema, table)
}

// ListNames runs query on db and collects the first column.
// An empty query yields an empty list.
func (b *BaseSQLAdapter) ListNames(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	if db == nil {
		return nil, ErrNotConnected
	}
	if query == "" {
		return []string{}, nil
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan catalog row: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalog rows: %w", err)
	}
	return names, nil
}

// ListObjectsOn is ListObjects against an explicit connection.
func (b *BaseSQLAdapter) ListObjectsOn(ctx context.Context, db *sql.DB, schema string, kind core.ObjectType) ([]core.DatabaseObject, error) {
	names, err := b.ListNames(ctx, db, b.Catalog.Objects[kind], schema)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s in %s: %w", kind.Plural(), schema, err)
	}
	objects := make([]core.DatabaseObject, 0, len(names))
	for _, name := range names {
		objects = append(objects, core.DatabaseObject{
			Name:   name,
			Type:   kind,
			Parent: schema,
			Schema: schema,
		})
	}
	return objects, nil
}

// ListColumnsOn is ListColumns against an explicit connection.
func (b *BaseSQLAdapter) ListColumnsOn(ctx context.Context, db *sql.DB, schema, table string) ([]core.DatabaseObject, error) {
	if db == nil {
		return nil, ErrNotConnected
	}
	columns := []core.DatabaseObject{}
	if b.Catalog.Columns == "" {
		return columns, nil
	}

	rows, err := db.QueryContext(ctx, b.Catalog.Columns, schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var name, dataType, nullable, key, def, extra sql.NullString
		if err := rows.Scan(&name, &dataType, &nullable, &key, &def, &extra); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		columns = append(columns, core.DatabaseObject{
			Name:   name.String,
			Type:   core.ObjectColumn,
			Parent: table,
			Schema: schema,
			Column: &core.ColumnDetail{
				DataType: dataType.String,
				Nullable: nullable.String == "YES",
				Key:      key.String,
				Default:  def.String,
				Extra:    extra.String,
				Position: len(columns) + 1,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	return columns, nil
}

// ListIndexesOn is ListIndexes against an explicit connection.
func (b *BaseSQLAdapter) ListIndexesOn(ctx context.Context, db *sql.DB, schema, table string) ([]core.DatabaseObject, error) {
	if db == nil {
		return nil, ErrNotConnected
	}
	indexes := []core.DatabaseObject{}
	if b.Catalog.Indexes == "" {
		return indexes, nil
	}

	rows, err := db.QueryContext(ctx, b.Catalog.Indexes, schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query index metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var name, cols sql.NullString
		var unique bool
		if err := rows.Scan(&name, &cols, &unique); err != nil {
			return nil, fmt.Errorf("failed to scan index metadata: %w", err)
		}
		indexes = append(indexes, core.DatabaseObject{
			Name:   name.String,
			Type:   core.ObjectIndex,
			Parent: table,
			Schema: schema,
			Index:  &core.IndexDetail{Columns: cols.String, Unique: unique},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating index metadata: %w", err)
	}
	return indexes, nil
}

// ListForeignKeysOn is ListForeignKeys against an explicit connection.
func (b *BaseSQLAdapter) ListForeignKeysOn(ctx context.Context, db *sql.DB, schema, table string) ([]core.DatabaseObject, error) {
	if db == nil {
		return nil, ErrNotConnected
	}
	keys := []core.DatabaseObject{}
	if b.Catalog.ForeignKeys == "" {
		return keys, nil
	}

	rows, err := db.QueryContext(ctx, b.Catalog.ForeignKeys, schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query foreign key metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var name, col, refSchema, refTable, refCol sql.NullString
		if err := rows.Scan(&name, &col, &refSchema, &refTable, &refCol); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key metadata: %w", err)
		}
		keys = append(keys, core.DatabaseObject{
			Name:   name.String,
			Type:   core.ObjectForeignKey,
			Parent: table,
			Schema: schema,
			ForeignKey: &core.ForeignKeyDetail{
				Column:           col.String,
				ReferencedSchema: refSchema.String,
				ReferencedTable:  refTable.String,
				ReferencedColumn: refCol.String,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating foreign key metadata: %w", err)
	}
	return keys, nil
}
