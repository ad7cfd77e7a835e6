package core

import (
	"strconv"
	"strings"
)

// PlaceholderStyle defines how query parameters are formatted.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for all parameters (MySQL, SQLite, DuckDB).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, etc. for parameters (PostgreSQL).
	PlaceholderDollar
)

// Dialect is the static description of a database's SQL surface as far as
// the workbench needs it.
type Dialect struct {
	// Name is the dialect identifier (e.g., "mysql", "postgresql").
	Name string

	// Quote is the identifier quote character.
	Quote string

	// Placeholder defines how query parameters are formatted.
	Placeholder PlaceholderStyle

	// DefaultSchema is used when a table reference carries no schema.
	DefaultSchema string

	// DatabasesHaveSchemas is true when top level containers are databases
	// that in turn hold schemas (PostgreSQL).
	DatabasesHaveSchemas bool

	// CrossDatabaseNames is true when a statement may name objects of
	// other databases as database.schema.table (DuckDB catalogs).
	CrossDatabaseNames bool

	// DefaultDatabase is the database a session opens when the profile
	// names none.
	DefaultDatabase string

	// ObjectKinds lists the object folders shown under a schema.
	ObjectKinds []ObjectType

	// SystemSchemas are listed after user schemas.
	SystemSchemas []string

	// Lexer switches used when splitting scripts into statements.
	HashComments     bool
	BackslashEscapes bool
	DollarQuotes     bool
}

// QuoteIdent quotes an identifier, doubling any embedded quote characters.
func (d *Dialect) QuoteIdent(name string) string {
	q := d.Quote
	if q == "" {
		q = `"`
	}
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// QualifiedName quotes and joins non-empty name parts with dots.
func (d *Dialect) QualifiedName(parts ...string) string {
	quoted := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		quoted = append(quoted, d.QuoteIdent(p))
	}
	return strings.Join(quoted, ".")
}

// FormatPlaceholder returns the parameter placeholder for position n (1-based).
func (d *Dialect) FormatPlaceholder(n int) string {
	if d.Placeholder == PlaceholderDollar {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// SupportsKind reports whether objects of kind are listed under a schema.
func (d *Dialect) SupportsKind(kind ObjectType) bool {
	for _, k := range d.ObjectKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// IsSystemSchema reports whether name is one of the dialect's system schemas.
func (d *Dialect) IsSystemSchema(name string) bool {
	for _, s := range d.SystemSchemas {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// SplitSchemaRef splits a "database.schema" reference.
// A reference without a dot yields an empty database.
func SplitSchemaRef(ref string) (database, schema string) {
	if i := strings.Index(ref, "."); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return "", ref
}

// ParseQualifiedName splits a "schema.table" reference, falling back to the
// dialect's default schema.
func ParseQualifiedName(ref string, d *Dialect) (schema, name string) {
	if i := strings.LastIndex(ref, "."); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	if d != nil {
		return d.DefaultSchema, ref
	}
	return "", ref
}
