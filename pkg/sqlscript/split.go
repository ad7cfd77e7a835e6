package sqlscript

import (
	"strings"

	"github.com/leapstack-labs/workbench/pkg/core"
)

// Statement is one statement of a script.
type Statement struct {
	// Text is the statement without surrounding whitespace or terminator.
	Text string
	// Start and End are byte offsets of Text within the script.
	Start int
	End   int
}

// Options switches dialect specific lexing rules.
type Options struct {
	// HashComments treats # as a line comment (MySQL).
	HashComments bool
	// BackslashEscapes lets a backslash escape the next character in strings (MySQL).
	BackslashEscapes bool
	// DollarQuotes enables $tag$ ... $tag$ string literals (PostgreSQL, DuckDB).
	DollarQuotes bool
	// Delimiter is the initial statement terminator. Empty means ";".
	Delimiter string
}

// OptionsFor returns the lexer options of a dialect.
func OptionsFor(d *core.Dialect) Options {
	if d == nil {
		return Options{}
	}
	return Options{
		HashComments:     d.HashComments,
		BackslashEscapes: d.BackslashEscapes,
		DollarQuotes:     d.DollarQuotes,
	}
}

const delimiterDirective = "delimiter"

// Result is the outcome of Scan.
type Result struct {
	Statements []Statement
	// Pending is the trimmed text after the last terminator. It is empty
	// when only whitespace and comments follow.
	Pending string
	// Delimiter is the terminator in effect at the end of the script.
	Delimiter string
}

// Split breaks script into statements. Statements containing only
// whitespace or comments are dropped. A trailing statement without a
// terminator is included.
func Split(script string, opts Options) []Statement {
	res, tail := scan(script, opts)
	return appendStatement(res.Statements, script, tail, len(script), opts)
}

// Complete reports whether script ends at a statement boundary: nothing
// but whitespace or comments follows the last terminator, and no string,
// comment or BEGIN ... END block is left open.
func Complete(script string, opts Options) bool {
	return Scan(script, opts).Pending == ""
}

// Scan splits script like Split but keeps an unterminated tail apart, so
// interactive callers can wait for more input.
func Scan(script string, opts Options) Result {
	res, _ := scan(script, opts)
	return res
}

// scan also returns the offset where the unterminated tail starts.
func scan(script string, opts Options) (Result, int) {
	var out []Statement
	delim := opts.Delimiter
	if delim == "" {
		delim = ";"
	}
	start := 0
	n := len(script)
	var (
		blk  blockState
		open bool
	)

	for i := 0; i < n; {
		if isDelimiterDirective(script, i) && isTrivia(script[start:i], opts) {
			lineEnd := strings.IndexByte(script[i:], '\n')
			if lineEnd < 0 {
				lineEnd = n
			} else {
				lineEnd += i
			}
			if d := strings.TrimSpace(script[i+len(delimiterDirective) : lineEnd]); d != "" {
				delim = d
			}
			i = lineEnd
			start = i
			blk = blockState{}
			continue
		}

		if strings.HasPrefix(script[i:], delim) && (delim != ";" || blk.depth == 0) {
			out = appendStatement(out, script, start, i, opts)
			i += len(delim)
			start = i
			blk = blockState{}
			continue
		}

		if next, ok := skipToken(script, i, opts); ok {
			if next == n && strings.HasPrefix(script[i:], "/*") && (n-i < 4 || !strings.HasSuffix(script, "*/")) {
				open = true
			}
			i = next
			continue
		}

		if isIdentChar(script[i]) && (i == 0 || !isIdentChar(script[i-1])) {
			j := i
			for j < n && isIdentChar(script[j]) {
				j++
			}
			blk.word(strings.ToUpper(script[i:j]), script[j:], opts)
			i = j
			continue
		}
		i++
	}

	res := Result{Statements: out, Delimiter: delim}
	tail := strings.TrimSpace(script[start:])
	if tail != "" && (open || !isTrivia(tail, opts)) {
		res.Pending = tail
	}
	return res, start
}

// blockState follows BEGIN ... END bodies of a statement, inside which a
// semicolon does not end the statement. Bodies open in CREATE TRIGGER,
// PROCEDURE, FUNCTION and EVENT statements, and at any BEGIN ATOMIC.
type blockState struct {
	words   int
	create  bool
	routine bool
	depth   int
}

func (b *blockState) word(w, rest string, opts Options) {
	b.words++
	switch {
	case b.words == 1:
		b.create = w == "CREATE"
	case b.create && b.depth == 0 && (w == "TRIGGER" || w == "PROCEDURE" || w == "FUNCTION" || w == "EVENT"):
		b.routine = true
	case w == "BEGIN":
		if b.routine || nextWord(rest, opts) == "ATOMIC" {
			b.depth++
		}
	case w == "CASE" && b.depth > 0:
		b.depth++
	case w == "END" && b.depth > 0:
		switch nextWord(rest, opts) {
		case "IF", "LOOP", "WHILE", "REPEAT":
		default:
			b.depth--
		}
	}
}

// nextWord returns the upper-cased word at the start of s after whitespace
// and comments.
func nextWord(s string, opts Options) string {
	i := 0
	for i < len(s) {
		if isSpace(s[i]) {
			i++
			continue
		}
		c := s[i]
		isComment := (c == '-' && i+1 < len(s) && s[i+1] == '-') ||
			(c == '#' && opts.HashComments) ||
			(c == '/' && i+1 < len(s) && s[i+1] == '*')
		if !isComment {
			break
		}
		i, _ = skipToken(s, i, opts)
	}
	j := i
	for j < len(s) && isIdentChar(s[j]) {
		j++
	}
	return strings.ToUpper(s[i:j])
}

// StatementAt returns the statement containing offset. An offset between
// statements resolves to the preceding statement, and one before the first
// statement to the first.
func StatementAt(script string, offset int, opts Options) (Statement, bool) {
	stmts := Split(script, opts)
	if len(stmts) == 0 {
		return Statement{}, false
	}
	best := stmts[0]
	for _, s := range stmts {
		if s.Start > offset {
			break
		}
		best = s
	}
	return best, true
}

func appendStatement(out []Statement, script string, start, end int, opts Options) []Statement {
	raw := script[start:end]
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || isTrivia(trimmed, opts) {
		return out
	}
	lead := strings.Index(raw, trimmed)
	return append(out, Statement{
		Text:  trimmed,
		Start: start + lead,
		End:   start + lead + len(trimmed),
	})
}

func isDelimiterDirective(s string, i int) bool {
	end := i + len(delimiterDirective)
	if end >= len(s) || !strings.EqualFold(s[i:end], delimiterDirective) {
		return false
	}
	if i > 0 && !isSpace(s[i-1]) {
		return false
	}
	return s[end] == ' ' || s[end] == '\t'
}

// skipToken skips a quoted string or comment starting at i.
func skipToken(s string, i int, opts Options) (int, bool) {
	c := s[i]
	switch {
	case c == '\'' || c == '"':
		return skipQuoted(s, i, c, opts.BackslashEscapes), true
	case c == '`':
		return skipQuoted(s, i, c, false), true
	case c == '-' && i+1 < len(s) && s[i+1] == '-':
		return skipLine(s, i), true
	case c == '#' && opts.HashComments:
		return skipLine(s, i), true
	case c == '/' && i+1 < len(s) && s[i+1] == '*':
		end := strings.Index(s[i+2:], "*/")
		if end < 0 {
			return len(s), true
		}
		return i + 2 + end + 2, true
	case c == '$' && opts.DollarQuotes:
		tag, ok := dollarTag(s, i)
		if !ok {
			return i, false
		}
		body := i + len(tag)
		end := strings.Index(s[body:], tag)
		if end < 0 {
			return len(s), true
		}
		return body + end + len(tag), true
	}
	return i, false
}

func skipQuoted(s string, i int, q byte, backslash bool) int {
	for j := i + 1; j < len(s); j++ {
		switch {
		case backslash && s[j] == '\\':
			j++
		case s[j] == q:
			if j+1 < len(s) && s[j+1] == q {
				j++
				continue
			}
			return j + 1
		}
	}
	return len(s)
}

func skipLine(s string, i int) int {
	end := strings.IndexByte(s[i:], '\n')
	if end < 0 {
		return len(s)
	}
	return i + end + 1
}

// dollarTag returns the $tag$ opener at i. Tags cannot start with a digit,
// which keeps $1 parameters out.
func dollarTag(s string, i int) (string, bool) {
	j := i + 1
	for j < len(s) && isIdentChar(s[j]) {
		if j == i+1 && s[j] >= '0' && s[j] <= '9' {
			return "", false
		}
		j++
	}
	if j < len(s) && s[j] == '$' {
		return s[i : j+1], true
	}
	return "", false
}

// isTrivia reports whether s holds only whitespace and comments.
func isTrivia(s string, opts Options) bool {
	for i := 0; i < len(s); {
		c := s[i]
		if isSpace(c) {
			i++
			continue
		}
		isComment := (c == '-' && i+1 < len(s) && s[i+1] == '-') ||
			(c == '#' && opts.HashComments) ||
			(c == '/' && i+1 < len(s) && s[i+1] == '*')
		if !isComment {
			return false
		}
		i, _ = skipToken(s, i, opts)
	}
	return true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
