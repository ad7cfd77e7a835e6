package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/leapstack-labs/workbench/internal/cli/output"
	"github.com/leapstack-labs/workbench/internal/connection"
	"github.com/leapstack-labs/workbench/pkg/core"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format          string
	Input           string
	At              int
	MaxRows         int
	ContinueOnError bool
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Run SQL against the selected connection",
		Long: `Run a SQL script against the selected connection.

The script is split into statements which run in order; execution stops at
the first failure unless --continue-on-error is set. With --at only the
statement containing the byte offset runs.

SQL is read from the arguments, from --input, or from stdin when it is
piped. Without any of these on a terminal the interactive shell starts.
Every statement is recorded in the query history.`,
		Example: `  # Execute SQL directly
  workbench -c local query "SELECT * FROM users"

  # Run a script file as CSV
  workbench query -i migrate.sql -f csv

  # Run only the statement under the cursor
  workbench query -i scratch.sql --at 120

  # Pipe SQL
  echo "SELECT 1;" | workbench query -f json

  # Interactive mode
  workbench query`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: table, json, csv, md, yaml")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")
	cmd.Flags().IntVar(&opts.At, "at", -1, "Run only the statement containing this byte offset")
	cmd.Flags().IntVar(&opts.MaxRows, "max-rows", 0, "Rows kept per result set (default: default_result_limit)")
	cmd.Flags().BoolVar(&opts.ContinueOnError, "continue-on-error", false, "Keep running after a failed statement")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		formats := make([]string, len(output.Formats))
		for i, f := range output.Formats {
			formats[i] = string(f)
		}
		return formats, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	format, err := cc.Format(opts.Format)
	if err != nil {
		return err
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = cc.Cfg.DefaultResultLimit
	}

	// Determine SQL source
	var script string
	in := cmd.InOrStdin()
	switch {
	case len(args) > 0:
		script = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		script = string(content)
	case !isTerminal(in):
		content, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		script = string(content)
	default:
		// No input, TTY detected - enter REPL mode
		conn, err := cc.Connect(cmd.Context())
		if err != nil {
			return err
		}
		return runQueryREPL(cmd, cc, conn, format, opts)
	}

	if strings.TrimSpace(script) == "" {
		return fmt.Errorf("no SQL to run")
	}

	conn, err := cc.Connect(cmd.Context())
	if err != nil {
		return err
	}
	results, err := executeQuery(cmd.Context(), conn, script, opts)
	cc.Record(cmd.Context(), conn.Name(), results)
	if werr := output.WriteResults(cc.Renderer.Writer(), results, format); werr != nil {
		return werr
	}
	return err
}

func executeQuery(ctx context.Context, conn *connection.Connection, script string, opts *QueryOptions) ([]*core.QueryResult, error) {
	exec := core.ExecOptions{MaxRows: opts.MaxRows}
	if opts.At >= 0 {
		res, err := conn.ExecuteAt(ctx, script, opts.At, exec)
		if res == nil {
			return nil, err
		}
		return []*core.QueryResult{res}, err
	}
	return conn.ExecuteScript(ctx, script, connection.ScriptOptions{
		ExecOptions:     exec,
		ContinueOnError: opts.ContinueOnError,
	})
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
