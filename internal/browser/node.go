// Package browser builds the lazily loaded schema tree shown by the tree
// command, the terminal browser and the HTTP API.
package browser

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/workbench/pkg/core"
)

// Node is one entry of the schema tree.
//
// Schema holds a "database.schema" reference when the schema lives under a
// database node, so it can be handed back to the catalog unchanged.
type Node struct {
	Type       core.ObjectType `json:"type"`
	Name       string          `json:"name"`
	Connection string          `json:"connection,omitempty"`
	Database   string          `json:"database,omitempty"`
	Schema     string          `json:"schema,omitempty"`
	Table      string          `json:"table,omitempty"`

	// Kind is the object type a folder holds.
	Kind core.ObjectType `json:"kind,omitempty"`

	// Object carries column, index and foreign key details for leaves.
	Object *core.DatabaseObject `json:"object,omitempty"`

	Children []*Node `json:"children,omitempty"`
	Parent   *Node   `json:"-"`
	Loaded   bool    `json:"loaded"`
	Hidden   bool    `json:"hidden,omitempty"`
	Err      error   `json:"-"`
}

// NewConnectionNode returns the root node of a connection's tree.
func NewConnectionNode(name string) *Node {
	return &Node{Type: core.ObjectConnection, Name: name, Connection: name}
}

var titler = cases.Title(language.English)

func folderLabel(kind core.ObjectType) string {
	return titler.String(kind.Plural())
}

// IsLeaf reports whether the node never has children.
func (n *Node) IsLeaf() bool {
	switch n.Type {
	case core.ObjectColumn, core.ObjectIndex, core.ObjectForeignKey,
		core.ObjectProcedure, core.ObjectFunction, core.ObjectTrigger:
		return true
	}
	return false
}

// IsRelation reports whether the node is a table or a view.
func (n *Node) IsRelation() bool {
	return n.Type == core.ObjectTable || n.Type == core.ObjectView
}

// SchemaName returns the plain schema name, without any database prefix.
func (n *Node) SchemaName() string {
	_, s := core.SplitSchemaRef(n.Schema)
	return s
}

// Path returns the names from the root down to n.
func (n *Node) Path() []string {
	var path []string
	for cur := n; cur != nil; cur = cur.Parent {
		path = append(path, cur.Name)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// VisibleChildren returns the children not hidden by a filter.
func (n *Node) VisibleChildren() []*Node {
	out := make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		if !c.Hidden {
			out = append(out, c)
		}
	}
	return out
}

// Detail is a one line description of a leaf, or "" for other nodes.
func (n *Node) Detail() string {
	if n.Object == nil {
		return ""
	}
	switch {
	case n.Object.Column != nil:
		c := n.Object.Column
		parts := []string{c.DataType}
		if !c.Nullable {
			parts = append(parts, "NOT NULL")
		}
		if c.Key != "" {
			parts = append(parts, c.Key)
		}
		if c.Default != "" {
			parts = append(parts, "DEFAULT "+c.Default)
		}
		if c.Extra != "" {
			parts = append(parts, c.Extra)
		}
		return strings.Join(parts, " ")
	case n.Object.Index != nil:
		s := "(" + n.Object.Index.Columns + ")"
		if n.Object.Index.Unique {
			s += " UNIQUE"
		}
		return s
	case n.Object.ForeignKey != nil:
		fk := n.Object.ForeignKey
		target := fk.ReferencedTable
		if fk.ReferencedSchema != "" {
			target = fk.ReferencedSchema + "." + target
		}
		return fmt.Sprintf("%s -> %s(%s)", fk.Column, target, fk.ReferencedColumn)
	}
	return ""
}

// Walk visits n and its loaded descendants depth first. Returning false
// from fn skips the node's children.
func Walk(n *Node, fn func(n *Node, depth int) bool) {
	walk(n, 0, fn)
}

func walk(n *Node, depth int, fn func(*Node, int) bool) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		walk(c, depth+1, fn)
	}
}

// Find follows child names from root and returns the node reached, or nil.
// Only loaded children are searched.
func Find(root *Node, path ...string) *Node {
	cur := root
	for _, name := range path {
		var next *Node
		for _, c := range cur.Children {
			if c.Name == name {
				next = c
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

// Filter hides nodes that neither match text nor have a matching
// descendant. Matching is a case-insensitive substring test on names and
// only covers loaded nodes. The root always stays visible. It returns the
// number of matching nodes; an empty text clears the filter and returns 0.
func Filter(root *Node, text string) int {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		Walk(root, func(n *Node, _ int) bool {
			n.Hidden = false
			return true
		})
		return 0
	}

	matches := 0
	var visit func(n *Node) bool
	visit = func(n *Node) bool {
		self := strings.Contains(strings.ToLower(n.Name), needle)
		if self {
			matches++
		}
		keep := self
		for _, c := range n.Children {
			if visit(c) {
				keep = true
			}
		}
		n.Hidden = !keep
		return keep
	}
	for _, c := range root.Children {
		visit(c)
	}
	root.Hidden = false
	return matches
}

// DefaultSelectLimit is the row limit used by SelectQuery when none is given.
const DefaultSelectLimit = 1000

// ErrOtherDatabase is returned by SelectQuery for a relation that the
// session connected to current cannot reach.
var ErrOtherDatabase = errors.New("table is in another database")

// SelectQuery builds a SELECT over a table or view node. current is the
// database the session is connected to. Relations under another database
// node are qualified with their database when the dialect allows it and
// rejected with ErrOtherDatabase otherwise.
func SelectQuery(d *core.Dialect, n *Node, limit int, current string) (string, error) {
	if n == nil || !n.IsRelation() {
		return "", fmt.Errorf("select requires a table or view")
	}
	if limit <= 0 {
		limit = DefaultSelectLimit
	}

	database, schema := core.SplitSchemaRef(n.Schema)
	if database == "" {
		database = n.Database
	}
	if !d.DatabasesHaveSchemas {
		database = ""
	}

	var name string
	switch {
	case database == "" || database == current && !d.CrossDatabaseNames:
		name = d.QualifiedName(schema, n.Table)
	case d.CrossDatabaseNames:
		name = d.QualifiedName(database, schema, n.Table)
	default:
		return "", fmt.Errorf("%w: %s.%s is in %q but the connection uses %q", ErrOtherDatabase, schema, n.Table, database, current)
	}
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d;", name, limit), nil
}
