package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/list"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/workbench/pkg/core"
)

// Format is a result set encoding.
type Format string

// Result formats.
const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatYAML     Format = "yaml"
)

// Formats lists the accepted result formats.
var Formats = []Format{FormatTable, FormatJSON, FormatCSV, FormatMarkdown, FormatYAML}

// ParseFormat resolves a format name. An empty name resolves to table.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "table", "text":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown format %q (expected table, json, csv, md or yaml)", s)
}

// FormatFor picks the default result format for a renderer mode.
func FormatFor(m Mode) Format {
	switch m {
	case ModeJSON:
		return FormatJSON
	case ModeMarkdown:
		return FormatMarkdown
	default:
		return FormatTable
	}
}

// resultDoc is the JSON and YAML shape of a statement result.
type resultDoc struct {
	Statement    string           `json:"statement,omitempty" yaml:"statement,omitempty"`
	Type         core.ResultType  `json:"type" yaml:"type"`
	Columns      []string         `json:"columns,omitempty" yaml:"columns,omitempty"`
	Rows         []map[string]any `json:"rows,omitempty" yaml:"rows,omitempty"`
	AffectedRows int64            `json:"affected_rows,omitempty" yaml:"affected_rows,omitempty"`
	Message      string           `json:"message,omitempty" yaml:"message,omitempty"`
	Error        string           `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorCode    string           `json:"error_code,omitempty" yaml:"error_code,omitempty"`
	Truncated    bool             `json:"truncated,omitempty" yaml:"truncated,omitempty"`
	DurationMS   int64            `json:"duration_ms" yaml:"duration_ms"`
}

func toDoc(r *core.QueryResult) resultDoc {
	d := resultDoc{
		Statement:    r.Statement,
		Type:         r.Type,
		AffectedRows: r.AffectedRows,
		Message:      r.Message,
		Error:        r.ErrorMessage,
		ErrorCode:    r.ErrorCode,
		Truncated:    r.Truncated,
		DurationMS:   r.Duration.Milliseconds(),
	}
	if r.Type == core.ResultSet {
		d.Columns = r.ColumnNames()
		d.Rows = r.RowMaps()
		for _, row := range d.Rows {
			for k, v := range row {
				row[k] = plainValue(v)
			}
		}
	}
	return d
}

// WriteResults writes every result in format f. Table, CSV and markdown
// output separate results with a blank line.
func WriteResults(w io.Writer, results []*core.QueryResult, f Format) error {
	switch f {
	case FormatJSON, FormatYAML:
		docs := make([]resultDoc, 0, len(results))
		for _, r := range results {
			if r != nil {
				docs = append(docs, toDoc(r))
			}
		}
		if f == FormatYAML {
			enc := yaml.NewEncoder(w)
			enc.SetIndent(2)
			if err := enc.Encode(docs); err != nil {
				return err
			}
			return enc.Close()
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(docs)
	}

	first := true
	for _, r := range results {
		if r == nil {
			continue
		}
		if !first {
			_, _ = fmt.Fprintln(w)
		}
		first = false
		if err := WriteResult(w, r, f); err != nil {
			return err
		}
	}
	return nil
}

// WriteResult writes a single statement result.
func WriteResult(w io.Writer, r *core.QueryResult, f Format) error {
	switch f {
	case FormatJSON, FormatYAML:
		return WriteResults(w, []*core.QueryResult{r}, f)
	}

	switch r.Type {
	case core.ResultError:
		_, err := fmt.Fprintf(w, "ERROR: %s\n", errorText(r))
		return err
	case core.ResultUpdate, core.ResultMessage:
		msg := r.Message
		if msg == "" {
			msg = fmt.Sprintf("%d row(s) affected", r.AffectedRows)
		}
		_, err := fmt.Fprintf(w, "%s (%s)\n", msg, formatDuration(r.Duration))
		return err
	}

	if f == FormatCSV {
		rows := make([][]string, len(r.Rows))
		for i, row := range r.Rows {
			rows[i] = make([]string, len(row))
			for j, v := range row {
				rows[i][j] = FormatValue(v)
			}
		}
		return writeCSV(w, r.ColumnNames(), rows)
	}

	t := newTable(w, r.ColumnNames())
	for _, row := range r.Rows {
		tr := make(table.Row, len(row))
		for i, v := range row {
			tr[i] = FormatValue(v)
		}
		t.AppendRow(tr)
	}

	switch f {
	case FormatMarkdown:
		t.RenderMarkdown()
		_, _ = fmt.Fprintln(w)
	default:
		if len(r.Rows) == 0 {
			_, _ = fmt.Fprintln(w, "(0 rows)")
			return nil
		}
		t.Render()
	}

	suffix := ""
	if r.Truncated {
		suffix = ", truncated"
	}
	_, err := fmt.Fprintf(w, "(%d rows, %s%s)\n", len(r.Rows), formatDuration(r.Duration), suffix)
	return err
}

func errorText(r *core.QueryResult) string {
	if r.ErrorCode != "" {
		return fmt.Sprintf("[%s] %s", r.ErrorCode, r.ErrorMessage)
	}
	return r.ErrorMessage
}

// WriteTable renders headers and rows as a table in format f. JSON and YAML
// emit a list of objects keyed by header.
func WriteTable(w io.Writer, headers []string, rows [][]string, f Format) error {
	switch f {
	case FormatJSON, FormatYAML:
		objs := make([]map[string]string, len(rows))
		for i, row := range rows {
			m := make(map[string]string, len(headers))
			for j, h := range headers {
				if j < len(row) {
					m[h] = row[j]
				}
			}
			objs[i] = m
		}
		if f == FormatYAML {
			return yaml.NewEncoder(w).Encode(objs)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(objs)
	}

	if f == FormatCSV {
		return writeCSV(w, headers, rows)
	}

	t := newTable(w, headers)
	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, v := range row {
			tr[i] = v
		}
		t.AppendRow(tr)
	}
	switch f {
	case FormatMarkdown:
		t.RenderMarkdown()
	default:
		t.Render()
	}
	return nil
}

// writeCSV writes RFC 4180 CSV.
func writeCSV(w io.Writer, headers []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

func newTable(w io.Writer, headers []string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	t.AppendHeader(header)
	return t
}

// TreeItem is one line of a rendered tree.
type TreeItem struct {
	Text     string
	Children []TreeItem
}

// WriteTree renders items as a connected tree, or as a nested markdown list.
func WriteTree(w io.Writer, items []TreeItem, markdown bool) {
	l := list.NewWriter()
	l.SetOutputMirror(w)
	if markdown {
		l.SetStyle(list.StyleMarkdown)
	} else {
		l.SetStyle(list.StyleConnectedLight)
	}
	var add func([]TreeItem)
	add = func(items []TreeItem) {
		for _, it := range items {
			l.AppendItem(it.Text)
			if len(it.Children) > 0 {
				l.Indent()
				add(it.Children)
				l.UnIndent()
			}
		}
	}
	add(items)
	if markdown {
		l.RenderMarkdown()
	} else {
		l.Render()
	}
}

// FormatValue renders a cell value. NULL is shown for nil.
func FormatValue(v any) string {
	switch val := plainValue(v).(type) {
	case nil:
		return "NULL"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

func plainValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	}
	return v
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return d.String()
	}
	return d.Round(time.Millisecond).String()
}
