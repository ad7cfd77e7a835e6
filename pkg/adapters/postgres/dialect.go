package postgres

import (
	"github.com/leapstack-labs/workbench/pkg/adapter"
	"github.com/leapstack-labs/workbench/pkg/core"
)

// Dialect describes PostgreSQL. A server holds databases, which hold schemas.
var Dialect = &core.Dialect{
	Name:                 string(core.PostgreSQL),
	Quote:                `"`,
	Placeholder:          core.PlaceholderDollar,
	DefaultSchema:        "public",
	DatabasesHaveSchemas: true,
	DefaultDatabase:      defaultDatabase,
	ObjectKinds: []core.ObjectType{
		core.ObjectTable,
		core.ObjectView,
		core.ObjectProcedure,
		core.ObjectFunction,
		core.ObjectTrigger,
	},
	SystemSchemas: []string{"information_schema", "pg_catalog", "pg_toast"},
	DollarQuotes:  true,
}

var catalog = adapter.Catalog{
	Databases: `SELECT datname FROM pg_database WHERE datistemplate = false ORDER BY datname`,
	Schemas: `SELECT schema_name FROM information_schema.schemata
		WHERE schema_name NOT IN ('information_schema', 'pg_catalog', 'pg_toast')
			AND schema_name NOT LIKE 'pg\_temp\_%'
			AND schema_name NOT LIKE 'pg\_toast\_temp\_%'
		ORDER BY schema_name`,
	Objects: map[core.ObjectType]string{
		core.ObjectTable: `SELECT table_name FROM information_schema.tables
			WHERE table_schema = $1 AND table_type = 'BASE TABLE'
			ORDER BY table_name`,
		core.ObjectView: `SELECT table_name FROM information_schema.views
			WHERE table_schema = $1
			ORDER BY table_name`,
		core.ObjectProcedure: `SELECT DISTINCT routine_name FROM information_schema.routines
			WHERE routine_schema = $1 AND routine_type = 'PROCEDURE'
			ORDER BY routine_name`,
		core.ObjectFunction: `SELECT DISTINCT routine_name FROM information_schema.routines
			WHERE routine_schema = $1 AND routine_type = 'FUNCTION'
			ORDER BY routine_name`,
		core.ObjectTrigger: `SELECT DISTINCT trigger_name FROM information_schema.triggers
			WHERE trigger_schema = $1
			ORDER BY trigger_name`,
	},
	Columns: `SELECT c.column_name, c.data_type, c.is_nullable,
			CASE WHEN EXISTS (
				SELECT 1
				FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage kcu
					ON kcu.constraint_name = tc.constraint_name
					AND kcu.table_schema = tc.table_schema
					AND kcu.table_name = tc.table_name
				WHERE tc.constraint_type = 'PRIMARY KEY'
					AND tc.table_schema = c.table_schema
					AND tc.table_name = c.table_name
					AND kcu.column_name = c.column_name
			) THEN 'PRI' ELSE '' END,
			c.column_default,
			CASE WHEN c.is_identity = 'YES' THEN 'identity' ELSE '' END
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position`,
	Indexes: `SELECT i.relname,
			string_agg(a.attname, ', ' ORDER BY array_position(ix.indkey::int2[], a.attnum)),
			ix.indisunique
		FROM pg_index ix
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		WHERE n.nspname = $1 AND t.relname = $2
		GROUP BY i.relname, ix.indisunique
		ORDER BY i.relname`,
	ForeignKeys: `SELECT tc.constraint_name, kcu.column_name,
			ccu.table_schema, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_name = tc.constraint_name
			AND kcu.table_schema = tc.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.constraint_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = $1 AND tc.table_name = $2
		ORDER BY tc.constraint_name, kcu.ordinal_position`,
}
