package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/workbench/internal/browser"
	"github.com/leapstack-labs/workbench/internal/cli/output"
	"github.com/leapstack-labs/workbench/internal/connection"
	"github.com/leapstack-labs/workbench/pkg/core"
)

// SelectOptions holds options for the select command.
type SelectOptions struct {
	Limit  int
	Run    bool
	Format string
}

// NewSelectCommand creates the select command.
func NewSelectCommand() *cobra.Command {
	opts := &SelectOptions{}

	cmd := &cobra.Command{
		Use:   "select [SCHEMA.]TABLE",
		Short: "Print or run a SELECT over a table",
		Example: `  workbench select main.users
  workbench select users --limit 10 --run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelect(cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Row limit (default: default_result_limit)")
	cmd.Flags().BoolVar(&opts.Run, "run", false, "Execute the statement and print the rows")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format with --run: table, json, csv, md, yaml")
	return cmd
}

func runSelect(cmd *cobra.Command, ref string, opts *SelectOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	conn, err := cc.Connect(cmd.Context())
	if err != nil {
		return err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = cc.Cfg.DefaultResultLimit
	}
	stmt, err := browser.SelectQuery(conn.Dialect(), relationNode(conn, ref, core.ObjectTable), limit, conn.Database())
	if err != nil {
		return err
	}

	if !opts.Run {
		cc.Renderer.Println(stmt)
		return nil
	}

	format, err := cc.Format(opts.Format)
	if err != nil {
		return err
	}
	results, err := conn.ExecuteScript(cmd.Context(), stmt, connection.ScriptOptions{})
	cc.Record(cmd.Context(), conn.Name(), results)
	if werr := output.WriteResults(cc.Renderer.Writer(), results, format); werr != nil {
		return werr
	}
	return err
}
