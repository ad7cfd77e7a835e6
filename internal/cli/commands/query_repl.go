package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/workbench/internal/cli/output"
	"github.com/leapstack-labs/workbench/internal/connection"
	"github.com/leapstack-labs/workbench/internal/history"
	"github.com/leapstack-labs/workbench/pkg/core"
	"github.com/leapstack-labs/workbench/pkg/sqlscript"
)

const (
	continuationPrompt = "    ...> "
	replHistoryLimit   = 20
)

// repl is the state of an interactive session.
type repl struct {
	cc     *CommandContext
	conn   *connection.Connection
	out    io.Writer
	errOut io.Writer
	format output.Format
	opts   *QueryOptions
	prompt string

	buf    strings.Builder
	delim  string
	tables []string
}

func newREPL(cmd *cobra.Command, cc *CommandContext, conn *connection.Connection, format output.Format, opts *QueryOptions) *repl {
	prompt := cc.Cfg.REPL.Prompt
	if prompt == "" {
		prompt = "workbench> "
	}
	return &repl{
		cc:     cc,
		conn:   conn,
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
		format: format,
		opts:   opts,
		prompt: prompt,
	}
}

func runQueryREPL(cmd *cobra.Command, cc *CommandContext, conn *connection.Connection, format output.Format, opts *QueryOptions) error {
	ctx := cmd.Context()
	r := newREPL(cmd, cc, conn, format, opts)
	r.loadTables(ctx)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          r.prompt,
		HistoryFile:     cc.Cfg.REPL.HistoryFile,
		AutoComplete:    r.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	p := conn.Profile()
	_, _ = fmt.Fprintf(r.out, "Connected to %s (%s %s)\n", p.Name, p.DatabaseType, p.Address())
	_, _ = fmt.Fprintln(r.out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(r.out)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			r.buf.Reset()
			rl.SetPrompt(r.prompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		prompt, quit := r.handleLine(ctx, line)
		if quit {
			break
		}
		rl.SetPrompt(prompt)
	}
	return nil
}

// handleLine processes one input line and returns the next prompt.
func (r *repl) handleLine(ctx context.Context, line string) (prompt string, quit bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return r.currentPrompt(), false
	}

	// Handle dot-commands
	if r.buf.Len() == 0 && strings.HasPrefix(trimmed, ".") {
		return r.prompt, r.dotCommand(ctx, trimmed)
	}

	// Accumulate lines until the buffer ends at a statement boundary
	r.buf.WriteString(line)
	r.buf.WriteString("\n")
	lex := sqlscript.OptionsFor(r.conn.Dialect())
	lex.Delimiter = r.delim
	scan := sqlscript.Scan(r.buf.String(), lex)
	if scan.Pending != "" {
		return continuationPrompt, false
	}

	script := r.buf.String()
	r.buf.Reset()
	delim := r.delim
	r.delim = scan.Delimiter
	if len(scan.Statements) == 0 {
		return r.prompt, false
	}
	r.execute(ctx, script, delim)
	_, _ = fmt.Fprintln(r.out)
	return r.prompt, false
}

func (r *repl) currentPrompt() string {
	if r.buf.Len() > 0 {
		return continuationPrompt
	}
	return r.prompt
}

func (r *repl) execute(ctx context.Context, script, delim string) {
	results, err := r.conn.ExecuteScript(ctx, script, connection.ScriptOptions{
		ExecOptions:     core.ExecOptions{MaxRows: r.opts.MaxRows},
		ContinueOnError: r.opts.ContinueOnError,
		Delimiter:       delim,
	})
	r.cc.Record(ctx, r.conn.Name(), results)
	if werr := output.WriteResults(r.out, results, r.format); werr != nil {
		r.printErr(werr)
	}
	if err != nil {
		r.cc.Logger.Debug("repl statement failed", "error", err)
	}

	for _, res := range results {
		if res == nil || res.IsError() {
			continue
		}
		switch sqlscript.FirstKeyword(res.Statement) {
		case "CREATE", "DROP", "ALTER", "RENAME":
			r.loadTables(ctx)
			return
		}
	}
}

func (r *repl) printErr(err error) {
	_, _ = fmt.Fprintf(r.errOut, "Error: %v\n", err)
}

// dotCommand runs a dot-command and reports whether the session should end.
func (r *repl) dotCommand(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(r.out)

	case ".databases":
		names, err := r.conn.ListDatabases(ctx)
		if err != nil {
			r.printErr(err)
			return false
		}
		r.writeTable([]string{"database"}, toRows(names))

	case ".tables":
		schema := r.conn.Dialect().DefaultSchema
		if len(args) > 0 {
			schema = args[0]
		}
		objs, err := r.listRelations(ctx, schema)
		if err != nil {
			r.printErr(err)
			return false
		}
		rows := make([][]string, len(objs))
		for i, o := range objs {
			rows[i] = []string{o.Name, string(o.Type)}
		}
		r.writeTable([]string{"name", "type"}, rows)

	case ".describe", ".schema":
		if len(args) < 1 {
			_, _ = fmt.Fprintln(r.errOut, "Usage: .describe [schema.]table")
			return false
		}
		desc, err := describeTable(ctx, r.conn, args[0])
		if err != nil {
			r.printErr(err)
			return false
		}
		mode := output.ModeText
		switch r.format {
		case output.FormatMarkdown:
			mode = output.ModeMarkdown
		case output.FormatJSON:
			mode = output.ModeJSON
		}
		if err := writeDescription(output.NewRendererWithTTY(r.out, r.errOut, false, mode), desc); err != nil {
			r.printErr(err)
		}

	case ".history":
		r.showHistory(ctx, args)

	case ".clear":
		_, _ = fmt.Fprint(r.out, "\033[H\033[2J")

	default:
		_, _ = fmt.Fprintf(r.errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func (r *repl) showHistory(ctx context.Context, args []string) {
	limit := replHistoryLimit
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			_, _ = fmt.Fprintln(r.errOut, "Usage: .history [count]")
			return
		}
		limit = n
	}

	h, err := r.cc.History()
	if err != nil {
		r.printErr(err)
		return
	}
	if h == nil {
		_, _ = fmt.Fprintln(r.errOut, "History is disabled")
		return
	}
	entries, err := h.List(ctx, history.ListOptions{Connection: r.conn.Name(), Limit: limit})
	if err != nil {
		r.printErr(err)
		return
	}
	r.writeTable(historyHeaders, historyRows(entries))
}

func (r *repl) writeTable(headers []string, rows [][]string) {
	if err := output.WriteTable(r.out, headers, rows, r.format); err != nil {
		r.printErr(err)
	}
}

func (r *repl) listRelations(ctx context.Context, schema string) ([]core.DatabaseObject, error) {
	var out []core.DatabaseObject
	for _, kind := range []core.ObjectType{core.ObjectTable, core.ObjectView} {
		if !r.conn.Dialect().SupportsKind(kind) {
			continue
		}
		objs, err := r.conn.ListObjects(ctx, schema, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, objs...)
	}
	return out, nil
}

// loadTables refreshes the completion candidates from the default schema.
func (r *repl) loadTables(ctx context.Context) {
	schema := r.conn.Profile().DefaultSchema
	if schema == "" || r.conn.Dialect().DatabasesHaveSchemas {
		schema = r.conn.Dialect().DefaultSchema
	}
	objs, err := r.listRelations(ctx, schema)
	if err != nil {
		// Completion is optional; the shell works without it.
		r.cc.Logger.Debug("failed to load completion candidates", "error", err)
		return
	}
	r.tables = r.tables[:0]
	for _, o := range objs {
		r.tables = append(r.tables, o.Name)
	}
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help              Show this help message
  .databases         List databases
  .tables [schema]   List tables and views
  .describe <table>  Show columns, indexes and foreign keys
  .history [count]   Show recent statements on this connection
  .clear             Clear the screen
  .quit / .exit      Exit the REPL

Tips:
  - SQL statements must end with a semicolon (;)
  - Use arrow keys to navigate history
  - Tab completion works for table names and keywords
`
	_, _ = fmt.Fprintln(w, help)
}

var sqlKeywords = []string{
	"SELECT", "FROM", "WHERE", "GROUP BY", "ORDER BY", "HAVING", "LIMIT",
	"INSERT INTO", "VALUES", "UPDATE", "SET", "DELETE FROM", "JOIN", "LEFT JOIN",
	"CREATE TABLE", "DROP TABLE", "ALTER TABLE", "EXPLAIN",
}

// completer completes dot-commands at the start of a line and table names
// or keywords everywhere else.
func (r *repl) completer() readline.AutoCompleter {
	tableNames := func(string) []string { return r.tables }
	dot := readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".databases"),
		readline.PcItem(".tables"),
		readline.PcItem(".describe", readline.PcItemDynamic(tableNames)),
		readline.PcItem(".history"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
	return completerFunc(func(line []rune, pos int) ([][]rune, int) {
		if strings.HasPrefix(strings.TrimSpace(string(line[:pos])), ".") {
			return dot.Do(line, pos)
		}
		return completeWord(line, pos, append(append([]string(nil), r.tables...), sqlKeywords...))
	})
}

type completerFunc func(line []rune, pos int) ([][]rune, int)

func (f completerFunc) Do(line []rune, pos int) ([][]rune, int) { return f(line, pos) }

// completeWord completes the word ending at pos against candidates,
// ignoring case.
func completeWord(line []rune, pos int, candidates []string) ([][]rune, int) {
	start := pos
	for start > 0 && isWordRune(line[start-1]) {
		start--
	}
	prefix := string(line[start:pos])
	if prefix == "" {
		return nil, 0
	}

	var out [][]rune
	for _, c := range candidates {
		if len(c) > len(prefix) && strings.EqualFold(c[:len(prefix)], prefix) {
			out = append(out, []rune(c[len(prefix):]))
		}
	}
	return out, len([]rune(prefix))
}

func isWordRune(r rune) bool {
	return r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'
}

func toRows(names []string) [][]string {
	rows := make([][]string, len(names))
	for i, n := range names {
		rows[i] = []string{n}
	}
	return rows
}

var historyHeaders = []string{"executed", "connection", "type", "rows", "duration", "sql"}

func historyRows(entries []history.Entry) [][]string {
	rows := make([][]string, len(entries))
	for i, e := range entries {
		sql := strings.Join(strings.Fields(e.SQL), " ")
		if e.Error != "" {
			sql += "  -- " + e.Error
		}
		rows[i] = []string{
			e.Time().Local().Format(time.DateTime),
			e.Connection,
			string(e.ResultType),
			strconv.FormatInt(e.Rows, 10),
			e.Duration().String(),
			sql,
		}
	}
	return rows
}
