package sqlscript

import "strings"

// Kind is the result shape a statement is expected to have.
type Kind int

const (
	// KindUnknown statements may or may not return rows; callers query
	// them and look at the columns the driver reports.
	KindUnknown Kind = iota
	// KindRows statements return a result set.
	KindRows
	// KindExec statements return an affected-row count.
	KindExec
)

var rowKeywords = map[string]bool{
	"SELECT":    true,
	"WITH":      true,
	"SHOW":      true,
	"DESCRIBE":  true,
	"DESC":      true,
	"EXPLAIN":   true,
	"VALUES":    true,
	"TABLE":     true,
	"PRAGMA":    true,
	"FROM":      true,
	"SUMMARIZE": true,
	"PIVOT":     true,
	"UNPIVOT":   true,
	"FETCH":     true,
	"CHECK":     true,
	"CHECKSUM":  true,
	"OPTIMIZE":  true,
	"REPAIR":    true,
	"HELP":      true,
}

var execKeywords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true, "REPLACE": true, "UPSERT": true,
	"CREATE": true, "DROP": true, "ALTER": true, "TRUNCATE": true, "RENAME": true, "COMMENT": true,
	"GRANT": true, "REVOKE": true, "SET": true, "RESET": true, "USE": true,
	"BEGIN": true, "START": true, "COMMIT": true, "END": true, "ROLLBACK": true,
	"SAVEPOINT": true, "RELEASE": true, "LOCK": true, "UNLOCK": true,
	"VACUUM": true, "REINDEX": true, "CLUSTER": true, "CHECKPOINT": true,
	"ATTACH": true, "DETACH": true, "INSTALL": true, "LOAD": true, "COPY": true,
	"DECLARE": true, "CLOSE": true, "DISCARD": true, "LISTEN": true, "NOTIFY": true,
	"PREPARE": true, "DEALLOCATE": true, "FLUSH": true, "KILL": true, "DO": true,
}

// FirstKeyword returns the upper-cased first word of stmt, skipping leading
// whitespace, comments and opening parentheses.
func FirstKeyword(stmt string) string {
	opts := Options{HashComments: true}
	i := 0
	for i < len(stmt) {
		c := stmt[i]
		if isSpace(c) || c == '(' {
			i++
			continue
		}
		next, ok := skipToken(stmt, i, opts)
		if ok && c != '\'' && c != '"' && c != '`' {
			i = next
			continue
		}
		break
	}
	j := i
	for j < len(stmt) && isIdentChar(stmt[j]) {
		j++
	}
	return strings.ToUpper(stmt[i:j])
}

// Classify reports the result shape of stmt. Statements with a top-level
// RETURNING clause return rows whatever their first keyword.
func Classify(stmt string) Kind {
	kw := FirstKeyword(stmt)
	switch {
	case rowKeywords[kw]:
		return KindRows
	case hasTopLevelWord(stmt, "RETURNING"):
		return KindRows
	case execKeywords[kw]:
		return KindExec
	default:
		return KindUnknown
	}
}

// ReturnsRows reports whether stmt is known to produce a result set.
func ReturnsRows(stmt string) bool {
	return Classify(stmt) == KindRows
}

// hasTopLevelWord looks for word outside strings, comments and parentheses.
func hasTopLevelWord(stmt, word string) bool {
	opts := Options{DollarQuotes: true}
	depth := 0
	for i := 0; i < len(stmt); {
		c := stmt[i]
		if next, ok := skipToken(stmt, i, opts); ok {
			i = next
			continue
		}
		switch {
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case isIdentChar(c):
			j := i
			for j < len(stmt) && isIdentChar(stmt[j]) {
				j++
			}
			if depth == 0 && strings.EqualFold(stmt[i:j], word) {
				return true
			}
			i = j
			continue
		}
		i++
	}
	return false
}
