package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/workbench/pkg/core"
)

func newTestRenderer(mode Mode, tty bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, tty, mode), out, errOut
}

func TestRenderer_EffectiveMode(t *testing.T) {
	tests := []struct {
		mode Mode
		tty  bool
		want Mode
	}{
		{ModeAuto, true, ModeText},
		{ModeAuto, false, ModeMarkdown},
		{"", false, ModeMarkdown},
		{ModeText, false, ModeText},
		{ModeJSON, true, ModeJSON},
		{ModeMarkdown, true, ModeMarkdown},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			r, _, _ := newTestRenderer(tt.mode, tt.tty)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestRenderer_Markdown(t *testing.T) {
	r, out, _ := newTestRenderer(ModeAuto, false)

	r.Header(1, "connection details")
	r.KeyValues([][2]string{{"Name", "local"}, {"Type", "sqlite"}})

	assert.Equal(t, "# Connection details\n\n- **Name:** local\n- **Type:** sqlite\n", out.String())
}

func TestRenderer_TextWithoutTTYHasNoANSI(t *testing.T) {
	r, out, errOut := newTestRenderer(ModeText, false)

	r.Header(2, "columns")
	r.Success("Connection successful")
	r.Warn("careful")

	assert.Equal(t, "Columns\nConnection successful\n", out.String())
	assert.Equal(t, "warning: careful\n", errOut.String())
	assert.NotContains(t, out.String(), "\x1b[")
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Foreign keys", titleCase("foreign keys"))
	assert.Equal(t, "Table main.orders", titleCase("table main.orders"))
	assert.Equal(t, "SQL", titleCase("SQL"))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"": FormatTable, "table": FormatTable, "JSON": FormatJSON, "csv": FormatCSV,
		"markdown": FormatMarkdown, "md": FormatMarkdown, "yml": FormatYAML,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func sampleResult() *core.QueryResult {
	return &core.QueryResult{
		Type:      core.ResultSet,
		Statement: "SELECT id, name FROM users",
		Columns:   []core.ResultColumn{{Name: "id"}, {Name: "name"}},
		Rows: [][]any{
			{int64(1), "Ada, Countess"},
			{int64(2), nil},
		},
		Duration: 3 * time.Millisecond,
	}
}

func TestWriteResult_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResult(&buf, sampleResult(), FormatTable))

	out := buf.String()
	assert.Contains(t, out, "│ ID │ NAME")
	assert.Contains(t, out, "Ada, Countess")
	assert.Contains(t, out, "NULL")
	assert.Contains(t, out, "(2 rows, 3ms)")
}

func TestWriteResult_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResult(&buf, sampleResult(), FormatCSV))

	assert.Equal(t, "id,name\n1,\"Ada, Countess\"\n2,NULL\n", buf.String())
}

func TestWriteResult_Markdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResult(&buf, sampleResult(), FormatMarkdown))

	lines := strings.Split(buf.String(), "\n")
	assert.Equal(t, "| id | name |", lines[0])
	assert.Equal(t, "| 1 | Ada, Countess |", lines[2])
}

func TestWriteResult_NonResultSets(t *testing.T) {
	tests := []struct {
		name string
		res  *core.QueryResult
		want string
	}{
		{
			name: "update",
			res:  &core.QueryResult{Type: core.ResultUpdate, AffectedRows: 4, Message: "4 row(s) affected", Duration: 2 * time.Millisecond},
			want: "4 row(s) affected (2ms)\n",
		},
		{
			name: "error with code",
			res:  &core.QueryResult{Type: core.ResultError, ErrorMessage: "no such table: t", ErrorCode: "1"},
			want: "ERROR: [1] no such table: t\n",
		},
		{
			name: "empty set",
			res:  &core.QueryResult{Type: core.ResultSet, Columns: []core.ResultColumn{{Name: "x"}}},
			want: "(0 rows)\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteResult(&buf, tt.res, FormatTable))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestWriteResults_JSONAndYAML(t *testing.T) {
	results := []*core.QueryResult{
		sampleResult(),
		nil,
		{Type: core.ResultUpdate, Statement: "DELETE FROM t", AffectedRows: 1},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteResults(&buf, results, FormatJSON))

	var docs []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &docs))
	require.Len(t, docs, 2)
	assert.Equal(t, "resultset", docs[0]["type"])
	assert.Equal(t, []any{"id", "name"}, docs[0]["columns"])
	rows := docs[0]["rows"].([]any)
	assert.Equal(t, "Ada, Countess", rows[0].(map[string]any)["name"])
	assert.Nil(t, rows[1].(map[string]any)["name"])
	assert.Equal(t, float64(1), docs[1]["affected_rows"])

	buf.Reset()
	require.NoError(t, WriteResults(&buf, results, FormatYAML))
	var ydocs []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &ydocs))
	require.Len(t, ydocs, 2)
	assert.Equal(t, "DELETE FROM t", ydocs[1]["statement"])
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, []string{"name", "type"}, [][]string{{"users", "table"}}, FormatCSV))
	assert.Equal(t, "name,type\nusers,table\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteTable(&buf, []string{"name", "type"}, [][]string{{"users", "table"}}, FormatJSON))
	assert.JSONEq(t, `[{"name":"users","type":"table"}]`, buf.String())
}

func TestWriteTree(t *testing.T) {
	items := []TreeItem{{
		Text: "shop",
		Children: []TreeItem{
			{Text: "main", Children: []TreeItem{{Text: "Tables"}}},
		},
	}}

	var buf bytes.Buffer
	WriteTree(&buf, items, true)
	assert.Equal(t, "  * shop\n    * main\n      * Tables\n", buf.String())

	buf.Reset()
	WriteTree(&buf, items, false)
	out := buf.String()
	assert.Contains(t, out, "shop")
	assert.Contains(t, out, "Tables")
	assert.Equal(t, 3, strings.Count(out, "\n"))
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "NULL", FormatValue(nil))
	assert.Equal(t, "abc", FormatValue([]byte("abc")))
	assert.Equal(t, "2024-01-02T03:04:05Z", FormatValue(ts))
	assert.Equal(t, "1.5", FormatValue(1.5))
}
