package sqlite

import (
	"github.com/leapstack-labs/workbench/pkg/adapter"
	"github.com/leapstack-labs/workbench/pkg/core"
)

// Dialect describes SQLite. Attached databases act as schemas. Triggers are
// listed for main only, since each attached database keeps its own
// sqlite_master.
var Dialect = &core.Dialect{
	Name:          string(core.SQLite),
	Quote:         `"`,
	Placeholder:   core.PlaceholderQuestion,
	DefaultSchema: "main",
	ObjectKinds: []core.ObjectType{
		core.ObjectTable,
		core.ObjectView,
		core.ObjectTrigger,
	},
	SystemSchemas: []string{"temp"},
}

// Catalog queries use the table-valued pragma functions, whose hidden
// arg and schema columns can be bound like any other column.
var catalog = adapter.Catalog{
	Databases: `SELECT name FROM pragma_database_list ORDER BY seq`,
	Objects: map[core.ObjectType]string{
		core.ObjectTable: `SELECT name FROM pragma_table_list
			WHERE schema = ? AND type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\'
			ORDER BY name`,
		core.ObjectView: `SELECT name FROM pragma_table_list
			WHERE schema = ? AND type = 'view'
			ORDER BY name`,
		core.ObjectTrigger: `SELECT name FROM sqlite_master
			WHERE type = 'trigger' AND ? = 'main'
			ORDER BY name`,
	},
	Columns: `SELECT name, type,
			CASE WHEN "notnull" = 0 AND pk = 0 THEN 'YES' ELSE 'NO' END,
			CASE WHEN pk > 0 THEN 'PRI' ELSE '' END,
			dflt_value,
			''
		FROM pragma_table_info
		WHERE schema = ? AND arg = ?
		ORDER BY cid`,
	Indexes: `SELECT il.name,
			(SELECT group_concat(ii.name, ', ') FROM pragma_index_info(il.name) AS ii),
			il."unique"
		FROM pragma_index_list AS il
		WHERE il.schema = ? AND il.arg = ?
		ORDER BY il.name`,
	ForeignKeys: `SELECT 'fk_' || id, "from", schema, "table", "to"
		FROM pragma_foreign_key_list
		WHERE schema = ? AND arg = ?
		ORDER BY id, seq`,
}
