package mysql

import (
	"github.com/leapstack-labs/workbench/pkg/adapter"
	"github.com/leapstack-labs/workbench/pkg/core"
)

// Dialect describes MySQL. Databases and schemas are the same thing.
var Dialect = &core.Dialect{
	Name:        string(core.MySQL),
	Quote:       "`",
	Placeholder: core.PlaceholderQuestion,
	ObjectKinds: []core.ObjectType{
		core.ObjectTable,
		core.ObjectView,
		core.ObjectProcedure,
		core.ObjectFunction,
		core.ObjectTrigger,
	},
	SystemSchemas:    []string{"information_schema", "mysql", "performance_schema", "sys"},
	HashComments:     true,
	BackslashEscapes: true,
}

var catalog = adapter.Catalog{
	Databases: "SHOW DATABASES",
	Objects: map[core.ObjectType]string{
		core.ObjectTable: `SELECT table_name FROM information_schema.tables
			WHERE table_schema = ? AND table_type = 'BASE TABLE'
			ORDER BY table_name`,
		core.ObjectView: `SELECT table_name FROM information_schema.views
			WHERE table_schema = ?
			ORDER BY table_name`,
		core.ObjectProcedure: `SELECT routine_name FROM information_schema.routines
			WHERE routine_schema = ? AND routine_type = 'PROCEDURE'
			ORDER BY routine_name`,
		core.ObjectFunction: `SELECT routine_name FROM information_schema.routines
			WHERE routine_schema = ? AND routine_type = 'FUNCTION'
			ORDER BY routine_name`,
		core.ObjectTrigger: `SELECT trigger_name FROM information_schema.triggers
			WHERE trigger_schema = ?
			ORDER BY trigger_name`,
	},
	Columns: `SELECT column_name, column_type, is_nullable, column_key, column_default, extra
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`,
	Indexes: `SELECT index_name,
			GROUP_CONCAT(column_name ORDER BY seq_in_index SEPARATOR ', '),
			MIN(non_unique) = 0
		FROM information_schema.statistics
		WHERE table_schema = ? AND table_name = ?
		GROUP BY index_name
		ORDER BY index_name`,
	ForeignKeys: `SELECT constraint_name, column_name,
			referenced_table_schema, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ? AND table_name = ? AND referenced_table_name IS NOT NULL
		ORDER BY constraint_name, ordinal_position`,
}
