package sqlscript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texts(stmts []Statement) []string {
	out := make([]string, len(stmts))
	for i, s := range stmts {
		out[i] = s.Text
	}
	return out
}

func TestSplit(t *testing.T) {
	mysql := Options{HashComments: true, BackslashEscapes: true}
	pg := Options{DollarQuotes: true}

	tests := []struct {
		name   string
		script string
		opts   Options
		want   []string
	}{
		{
			name:   "simple",
			script: "SELECT 1; SELECT 2;",
			want:   []string{"SELECT 1", "SELECT 2"},
		},
		{
			name:   "no trailing terminator",
			script: "SELECT 1;\n  SELECT 2  ",
			want:   []string{"SELECT 1", "SELECT 2"},
		},
		{
			name:   "semicolon inside strings and identifiers",
			script: "SELECT ';', \"a;b\", `c;d`; SELECT 'it''s;'",
			want:   []string{"SELECT ';', \"a;b\", `c;d`", "SELECT 'it''s;'"},
		},
		{
			name:   "backslash escapes in mysql",
			script: `SELECT 'a\';b'; SELECT 2`,
			opts:   mysql,
			want:   []string{`SELECT 'a\';b'`, "SELECT 2"},
		},
		{
			name:   "comments",
			script: "-- first; still comment\nSELECT 1; /* a; b */ SELECT 2;",
			want:   []string{"-- first; still comment\nSELECT 1", "/* a; b */ SELECT 2"},
		},
		{
			name:   "hash comments only for mysql",
			script: "# note; here\nSELECT 1;",
			opts:   mysql,
			want:   []string{"# note; here\nSELECT 1"},
		},
		{
			name:   "comment-only statements dropped",
			script: "SELECT 1;\n-- trailing comment\n;  ;",
			want:   []string{"SELECT 1"},
		},
		{
			name:   "dollar quoting",
			script: "CREATE FUNCTION f() RETURNS int AS $body$ SELECT 1; $body$ LANGUAGE sql; SELECT $$;$$",
			opts:   pg,
			want: []string{
				"CREATE FUNCTION f() RETURNS int AS $body$ SELECT 1; $body$ LANGUAGE sql",
				"SELECT $$;$$",
			},
		},
		{
			name:   "positional parameters are not dollar quotes",
			script: "SELECT $1; SELECT $2",
			opts:   pg,
			want:   []string{"SELECT $1", "SELECT $2"},
		},
		{
			name: "delimiter directive",
			script: "DELIMITER //\n" +
				"CREATE PROCEDURE p() BEGIN SELECT 1; SELECT 2; END//\n" +
				"DELIMITER ;\n" +
				"CALL p();",
			opts: mysql,
			want: []string{
				"CREATE PROCEDURE p() BEGIN SELECT 1; SELECT 2; END",
				"CALL p()",
			},
		},
		{
			name: "sqlite trigger body",
			script: "CREATE TRIGGER tr AFTER INSERT ON t BEGIN UPDATE c SET n = n + 1; END;\n" +
				"SELECT 1;",
			want: []string{
				"CREATE TRIGGER tr AFTER INSERT ON t BEGIN UPDATE c SET n = n + 1; END",
				"SELECT 1",
			},
		},
		{
			name: "temp trigger with case inside the body",
			script: "create temp trigger tr after update on t begin\n" +
				"  update c set n = case when new.x > 0 then 1 else 0 end;\n" +
				"  delete from log;\n" +
				"end;\n" +
				"select 2",
			want: []string{
				"create temp trigger tr after update on t begin\n" +
					"  update c set n = case when new.x > 0 then 1 else 0 end;\n" +
					"  delete from log;\n" +
					"end",
				"select 2",
			},
		},
		{
			name: "postgres begin atomic",
			script: "CREATE FUNCTION add(a int, b int) RETURNS int LANGUAGE sql\n" +
				"BEGIN ATOMIC SELECT a + b; END;\nSELECT add(1, 2);",
			opts: pg,
			want: []string{
				"CREATE FUNCTION add(a int, b int) RETURNS int LANGUAGE sql\nBEGIN ATOMIC SELECT a + b; END",
				"SELECT add(1, 2)",
			},
		},
		{
			name: "mysql procedure without delimiter",
			script: "CREATE PROCEDURE p() BEGIN IF 1 THEN SELECT 1; END IF; SELECT 2; END;\n" +
				"CALL p();",
			opts: mysql,
			want: []string{
				"CREATE PROCEDURE p() BEGIN IF 1 THEN SELECT 1; END IF; SELECT 2; END",
				"CALL p()",
			},
		},
		{
			name:   "transaction begin is not a block",
			script: "BEGIN; UPDATE t SET a = 1; COMMIT;",
			want:   []string{"BEGIN", "UPDATE t SET a = 1", "COMMIT"},
		},
		{
			name:   "empty",
			script: "  \n ",
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.script, tt.opts)
			assert.Equal(t, tt.want, texts(got))
		})
	}
}

func TestSplit_Offsets(t *testing.T) {
	script := "SELECT 1;\n\n  UPDATE t SET a = 1;"
	stmts := Split(script, Options{})
	require.Len(t, stmts, 2)

	for _, s := range stmts {
		assert.Equal(t, s.Text, script[s.Start:s.End])
	}
	assert.Equal(t, 0, stmts[0].Start)
	assert.Equal(t, 13, stmts[1].Start)
}

func TestStatementAt(t *testing.T) {
	script := "SELECT 1;\nSELECT 2;\n\nSELECT 3"

	tests := []struct {
		name   string
		offset int
		want   string
	}{
		{name: "inside first", offset: 3, want: "SELECT 1"},
		{name: "on terminator resolves to preceding", offset: 8, want: "SELECT 1"},
		{name: "inside second", offset: 12, want: "SELECT 2"},
		{name: "blank line between resolves to preceding", offset: 20, want: "SELECT 2"},
		{name: "inside last", offset: 24, want: "SELECT 3"},
		{name: "past end", offset: 1000, want: "SELECT 3"},
		{name: "negative", offset: -1, want: "SELECT 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, ok := StatementAt(script, tt.offset, Options{})
			require.True(t, ok)
			assert.Equal(t, tt.want, stmt.Text)
		})
	}

	_, ok := StatementAt("  -- nothing\n", 0, Options{})
	assert.False(t, ok)
}

func TestScan(t *testing.T) {
	mysql := Options{HashComments: true, BackslashEscapes: true}

	tests := []struct {
		name      string
		script    string
		opts      Options
		stmts     []string
		pending   string
		delimiter string
	}{
		{name: "terminated", script: "SELECT 1;\n", stmts: []string{"SELECT 1"}, delimiter: ";"},
		{name: "unterminated", script: "SELECT 1;\nSELECT", stmts: []string{"SELECT 1"}, pending: "SELECT", delimiter: ";"},
		{name: "semicolon in open string", script: "SELECT 'a;\n", stmts: []string{}, pending: "SELECT 'a;", delimiter: ";"},
		{name: "semicolon in line comment", script: "SELECT 1 -- done;\n", stmts: []string{}, pending: "SELECT 1 -- done;", delimiter: ";"},
		{name: "open block comment", script: "/* note;\n", stmts: []string{}, pending: "/* note;", delimiter: ";"},
		{name: "comment only", script: "-- nothing here;\n", stmts: []string{}, delimiter: ";"},
		{name: "open trigger body", script: "CREATE TRIGGER tr AFTER INSERT ON t BEGIN SELECT 1;", stmts: []string{},
			pending: "CREATE TRIGGER tr AFTER INSERT ON t BEGIN SELECT 1;", delimiter: ";"},
		{name: "delimiter directive alone", script: "DELIMITER //\n", opts: mysql, stmts: []string{}, delimiter: "//"},
		{
			name:      "body under custom delimiter",
			script:    "CREATE PROCEDURE p() BEGIN SELECT 1; END //",
			opts:      Options{HashComments: true, Delimiter: "//"},
			stmts:     []string{"CREATE PROCEDURE p() BEGIN SELECT 1; END"},
			delimiter: "//",
		},
		{
			name:      "custom delimiter waits past inner semicolons",
			script:    "CREATE PROCEDURE p() BEGIN SELECT 1;",
			opts:      Options{Delimiter: "//"},
			stmts:     []string{},
			pending:   "CREATE PROCEDURE p() BEGIN SELECT 1;",
			delimiter: "//",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Scan(tt.script, tt.opts)
			assert.Equal(t, tt.stmts, texts(res.Statements))
			assert.Equal(t, tt.pending, res.Pending)
			assert.Equal(t, tt.delimiter, res.Delimiter)
			assert.Equal(t, tt.pending == "", Complete(tt.script, tt.opts))
		})
	}
}
