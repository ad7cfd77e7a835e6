package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/workbench/internal/cli/output"
	"github.com/leapstack-labs/workbench/internal/connection"
	"github.com/leapstack-labs/workbench/pkg/core"
)

// NewDatabasesCommand creates the databases command.
func NewDatabasesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "databases",
		Short: "List databases of the selected connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			conn, err := cc.Connect(cmd.Context())
			if err != nil {
				return err
			}
			names, err := conn.ListDatabases(cmd.Context())
			if err != nil {
				return err
			}
			return writeNames(cc.Renderer, "database", names)
		},
	}
}

// NewSchemasCommand creates the schemas command.
func NewSchemasCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schemas [DATABASE]",
		Short: "List schemas of a database",
		Long: `List the schemas of a database. Without DATABASE the connection's
default database is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			conn, err := cc.Connect(cmd.Context())
			if err != nil {
				return err
			}
			database := conn.Profile().DefaultSchema
			if len(args) == 1 {
				database = args[0]
			}
			if database == "" {
				database = conn.Dialect().DefaultSchema
			}
			names, err := conn.ListSchemas(cmd.Context(), database)
			if err != nil {
				return err
			}
			return writeNames(cc.Renderer, "schema", names)
		},
	}
}

func writeNames(r *output.Renderer, header string, names []string) error {
	if r.EffectiveMode() == output.ModeJSON {
		if names == nil {
			names = []string{}
		}
		return r.JSON(names)
	}
	rows := make([][]string, len(names))
	for i, n := range names {
		rows[i] = []string{n}
	}
	return output.WriteTable(r.Writer(), []string{header}, rows, output.FormatFor(r.EffectiveMode()))
}

// NewTablesCommand creates the tables command.
func NewTablesCommand() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "tables [SCHEMA]",
		Short: "List tables, views, routines or triggers of a schema",
		Example: `  workbench tables
  workbench -c pg tables app.public --kind view`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			objType, ok := core.ParseObjectKind(kind)
			if !ok {
				return fmt.Errorf("unknown kind %q (expected table, view, procedure, function or trigger)", kind)
			}

			conn, err := cc.Connect(cmd.Context())
			if err != nil {
				return err
			}
			d := conn.Dialect()
			if !d.SupportsKind(objType) {
				return fmt.Errorf("%s does not list %s", d.Name, objType.Plural())
			}

			schema := d.DefaultSchema
			if len(args) == 1 {
				schema = args[0]
			}
			objs, err := conn.ListObjects(cmd.Context(), schema, objType)
			if err != nil {
				return err
			}

			r := cc.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				if objs == nil {
					objs = []core.DatabaseObject{}
				}
				return r.JSON(objs)
			}
			rows := make([][]string, len(objs))
			for i, o := range objs {
				rows[i] = []string{o.Name, string(o.Type), o.Comment}
			}
			return output.WriteTable(r.Writer(), []string{"name", "type", "comment"}, rows, output.FormatFor(r.EffectiveMode()))
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "table", "Object kind: table, view, procedure, function, trigger")
	_ = cmd.RegisterFlagCompletionFunc("kind", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		kinds := make([]string, len(core.SchemaObjectKinds))
		for i, k := range core.SchemaObjectKinds {
			kinds[i] = string(k)
		}
		return kinds, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

// tableDescription is the JSON shape of the describe command.
type tableDescription struct {
	Schema      string                `json:"schema"`
	Table       string                `json:"table"`
	Columns     []core.DatabaseObject `json:"columns"`
	Indexes     []core.DatabaseObject `json:"indexes"`
	ForeignKeys []core.DatabaseObject `json:"foreign_keys"`
}

// NewDescribeCommand creates the describe command.
func NewDescribeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "describe [SCHEMA.]TABLE",
		Aliases: []string{"desc"},
		Short:   "Show columns, indexes and foreign keys of a table",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			conn, err := cc.Connect(cmd.Context())
			if err != nil {
				return err
			}
			desc, err := describeTable(cmd.Context(), conn, args[0])
			if err != nil {
				return err
			}
			return writeDescription(cc.Renderer, desc)
		},
	}
}

func describeTable(ctx context.Context, conn *connection.Connection, ref string) (*tableDescription, error) {
	schema, table := core.ParseQualifiedName(ref, conn.Dialect())

	var err error
	desc := &tableDescription{Schema: schema, Table: table}
	if desc.Columns, err = conn.ListColumns(ctx, schema, table); err != nil {
		return nil, err
	}
	if len(desc.Columns) == 0 {
		return nil, fmt.Errorf("table %q not found in schema %q", table, schema)
	}
	if desc.Indexes, err = conn.ListIndexes(ctx, schema, table); err != nil {
		return nil, err
	}
	if desc.ForeignKeys, err = conn.ListForeignKeys(ctx, schema, table); err != nil {
		return nil, err
	}
	return desc, nil
}

func writeDescription(r *output.Renderer, desc *tableDescription) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(desc)
	}
	format := output.FormatFor(r.EffectiveMode())
	w := r.Writer()

	r.Header(1, "table "+desc.Schema+"."+desc.Table)
	r.Header(2, "columns")
	rows := make([][]string, len(desc.Columns))
	for i, c := range desc.Columns {
		col := c.Column
		if col == nil {
			col = &core.ColumnDetail{}
		}
		nullable := "NO"
		if col.Nullable {
			nullable = "YES"
		}
		rows[i] = []string{c.Name, col.DataType, nullable, col.Key, col.Default, col.Extra}
	}
	if err := output.WriteTable(w, []string{"name", "type", "nullable", "key", "default", "extra"}, rows, format); err != nil {
		return err
	}

	if len(desc.Indexes) > 0 {
		r.Println()
		r.Header(2, "indexes")
		rows = nil
		for _, ix := range desc.Indexes {
			if ix.Index == nil {
				continue
			}
			unique := ""
			if ix.Index.Unique {
				unique = "UNIQUE"
			}
			rows = append(rows, []string{ix.Name, ix.Index.Columns, unique})
		}
		if err := output.WriteTable(w, []string{"name", "columns", "unique"}, rows, format); err != nil {
			return err
		}
	}

	if len(desc.ForeignKeys) > 0 {
		r.Println()
		r.Header(2, "foreign keys")
		rows = nil
		for _, fk := range desc.ForeignKeys {
			if fk.ForeignKey == nil {
				continue
			}
			target := fk.ForeignKey.ReferencedTable
			if fk.ForeignKey.ReferencedSchema != "" {
				target = fk.ForeignKey.ReferencedSchema + "." + target
			}
			rows = append(rows, []string{fk.Name, fk.ForeignKey.Column, fmt.Sprintf("%s(%s)", target, fk.ForeignKey.ReferencedColumn)})
		}
		if err := output.WriteTable(w, []string{"name", "column", "references"}, rows, format); err != nil {
			return err
		}
	}
	return nil
}
