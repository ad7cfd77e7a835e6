package core

// ObjectType classifies nodes of the schema browser and catalog listings.
type ObjectType string

// Object types.
const (
	ObjectConnection ObjectType = "connection"
	ObjectDatabase   ObjectType = "database"
	ObjectSchema     ObjectType = "schema"
	ObjectTable      ObjectType = "table"
	ObjectView       ObjectType = "view"
	ObjectProcedure  ObjectType = "procedure"
	ObjectFunction   ObjectType = "function"
	ObjectTrigger    ObjectType = "trigger"
	ObjectColumn     ObjectType = "column"
	ObjectIndex      ObjectType = "index"
	ObjectForeignKey ObjectType = "foreign_key"
	ObjectFolder     ObjectType = "folder"
)

// SchemaObjectKinds are the kinds that can be listed directly under a schema.
var SchemaObjectKinds = []ObjectType{
	ObjectTable,
	ObjectView,
	ObjectProcedure,
	ObjectFunction,
	ObjectTrigger,
}

// ParseObjectKind resolves a schema-level object kind, accepting plurals.
func ParseObjectKind(s string) (ObjectType, bool) {
	switch s {
	case "table", "tables":
		return ObjectTable, true
	case "view", "views":
		return ObjectView, true
	case "procedure", "procedures", "proc":
		return ObjectProcedure, true
	case "function", "functions", "func":
		return ObjectFunction, true
	case "trigger", "triggers":
		return ObjectTrigger, true
	}
	return "", false
}

// Plural returns the folder label for an object type.
func (t ObjectType) Plural() string {
	switch t {
	case ObjectForeignKey:
		return "foreign keys"
	case ObjectIndex:
		return "indexes"
	default:
		return string(t) + "s"
	}
}

// DatabaseObject represents a database object (schema, table, column, etc.).
type DatabaseObject struct {
	Name     string     `json:"name"`
	Type     ObjectType `json:"type"`
	Parent   string     `json:"parent,omitempty"`
	Schema   string     `json:"schema,omitempty"`
	Database string     `json:"database,omitempty"`
	Comment  string     `json:"comment,omitempty"`

	Column     *ColumnDetail     `json:"column,omitempty"`
	Index      *IndexDetail      `json:"index,omitempty"`
	ForeignKey *ForeignKeyDetail `json:"foreign_key,omitempty"`
}

// ColumnDetail describes a table column.
type ColumnDetail struct {
	DataType string `json:"data_type"`
	Nullable bool   `json:"nullable"`
	Key      string `json:"key,omitempty"`
	Default  string `json:"default,omitempty"`
	Extra    string `json:"extra,omitempty"`
	Position int    `json:"position"`
}

// IndexDetail describes an index on a table.
type IndexDetail struct {
	Columns string `json:"columns"`
	Unique  bool   `json:"unique"`
}

// ForeignKeyDetail describes one column of a foreign key constraint.
type ForeignKeyDetail struct {
	Column           string `json:"column"`
	ReferencedSchema string `json:"referenced_schema,omitempty"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}
