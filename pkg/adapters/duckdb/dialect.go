package duckdb

import (
	"fmt"

	"github.com/leapstack-labs/workbench/pkg/adapter"
	"github.com/leapstack-labs/workbench/pkg/core"
)

// Dialect describes DuckDB. Attached catalogs hold schemas.
var Dialect = &core.Dialect{
	Name:                 string(core.DuckDB),
	Quote:                `"`,
	Placeholder:          core.PlaceholderQuestion,
	DefaultSchema:        "main",
	DatabasesHaveSchemas: true,
	CrossDatabaseNames:   true,
	ObjectKinds: []core.ObjectType{
		core.ObjectTable,
		core.ObjectView,
		core.ObjectFunction,
	},
	SystemSchemas: []string{"information_schema", "pg_catalog"},
	DollarQuotes:  true,
}

// inSchema matches $1 against "catalog.schema" or a schema of the current catalog.
func inSchema(catalogCol, schemaCol string) string {
	return fmt.Sprintf("(%[1]s || '.' || %[2]s = $1 OR (%[2]s = $1 AND %[1]s = current_database()))", catalogCol, schemaCol)
}

var catalog = adapter.Catalog{
	Databases: `SELECT database_name FROM duckdb_databases() WHERE NOT internal ORDER BY database_name`,
	Objects: map[core.ObjectType]string{
		core.ObjectTable: `SELECT table_name FROM information_schema.tables
			WHERE ` + inSchema("table_catalog", "table_schema") + ` AND table_type = 'BASE TABLE'
			ORDER BY table_name`,
		core.ObjectView: `SELECT table_name FROM information_schema.tables
			WHERE ` + inSchema("table_catalog", "table_schema") + ` AND table_type = 'VIEW'
			ORDER BY table_name`,
		core.ObjectFunction: `SELECT DISTINCT function_name FROM duckdb_functions()
			WHERE NOT internal AND ` + inSchema("database_name", "schema_name") + `
			ORDER BY function_name`,
	},
	Columns: `SELECT column_name, data_type, is_nullable, '', column_default, ''
		FROM information_schema.columns
		WHERE ` + inSchema("table_catalog", "table_schema") + ` AND table_name = $2
		ORDER BY ordinal_position`,
	Indexes: `SELECT index_name, CAST(expressions AS VARCHAR), is_unique
		FROM duckdb_indexes()
		WHERE ` + inSchema("database_name", "schema_name") + ` AND table_name = $2
		ORDER BY index_name`,
	ForeignKeys: `SELECT constraint_name,
			array_to_string(constraint_column_names, ', '),
			schema_name,
			referenced_table,
			array_to_string(referenced_column_names, ', ')
		FROM duckdb_constraints()
		WHERE constraint_type = 'FOREIGN KEY'
			AND ` + inSchema("database_name", "schema_name") + ` AND table_name = $2
		ORDER BY constraint_name`,
}

const schemasQuery = `SELECT schema_name FROM information_schema.schemata
	WHERE catalog_name = COALESCE(NULLIF($1, ''), current_database())
	ORDER BY schema_name`
