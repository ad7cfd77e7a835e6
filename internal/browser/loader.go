package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/workbench/pkg/core"
)

// expandConcurrency bounds the catalog queries ExpandAll runs at once.
const expandConcurrency = 4

// Catalog is the part of a live connection the loader reads from.
type Catalog interface {
	Dialect() *core.Dialect
	ListDatabases(ctx context.Context) ([]string, error)
	ListSchemas(ctx context.Context, database string) ([]string, error)
	ListObjects(ctx context.Context, schema string, kind core.ObjectType) ([]core.DatabaseObject, error)
	ListColumns(ctx context.Context, schema, table string) ([]core.DatabaseObject, error)
	ListIndexes(ctx context.Context, schema, table string) ([]core.DatabaseObject, error)
	ListForeignKeys(ctx context.Context, schema, table string) ([]core.DatabaseObject, error)
}

// Loader fills in node children from a catalog.
type Loader struct {
	catalog Catalog
	logger  *slog.Logger
}

// NewLoader returns a loader reading from catalog.
func NewLoader(catalog Catalog, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{catalog: catalog, logger: logger}
}

// Expand loads the children of n once. A failure is kept on n.Err and n
// stays unloaded so a later call retries.
func (l *Loader) Expand(ctx context.Context, n *Node) error {
	if n.Loaded {
		return nil
	}
	if n.IsLeaf() {
		n.Loaded = true
		return nil
	}

	children, err := l.children(ctx, n)
	if err != nil {
		n.Err = err
		n.Loaded = false
		l.logger.Debug("failed to expand node", "type", n.Type, "name", n.Name, "error", err)
		return fmt.Errorf("failed to load %s %q: %w", n.Type, n.Name, err)
	}

	for _, c := range children {
		c.Parent = n
		c.Connection = n.Connection
	}
	n.Children = children
	n.Loaded = true
	n.Err = nil
	return nil
}

// Refresh drops the children of n and loads them again.
func (l *Loader) Refresh(ctx context.Context, n *Node) error {
	n.Children = nil
	n.Loaded = false
	return l.Expand(ctx, n)
}

// ExpandAll expands n and its descendants level by level, down to depth
// levels below n (depth <= 0 means no limit). Nodes of a level load
// concurrently; a failure does not stop its siblings and all failures are
// joined into the returned error.
func (l *Loader) ExpandAll(ctx context.Context, n *Node, depth int) error {
	var (
		mu   sync.Mutex
		errs []error
	)

	level := []*Node{n}
	for d := 0; len(level) > 0 && (depth <= 0 || d < depth); d++ {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		var g errgroup.Group
		g.SetLimit(expandConcurrency)
		for _, node := range level {
			g.Go(func() error {
				if err := l.Expand(ctx, node); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()

		var next []*Node
		for _, node := range level {
			for _, c := range node.Children {
				if !c.IsLeaf() {
					next = append(next, c)
				}
			}
		}
		level = next
	}

	return errors.Join(errs...)
}

func (l *Loader) children(ctx context.Context, n *Node) ([]*Node, error) {
	d := l.catalog.Dialect()

	switch n.Type {
	case core.ObjectConnection:
		names, err := l.catalog.ListDatabases(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]*Node, 0, len(names))
		for _, name := range names {
			if d.DatabasesHaveSchemas {
				out = append(out, &Node{Type: core.ObjectDatabase, Name: name, Database: name})
			} else {
				out = append(out, &Node{Type: core.ObjectSchema, Name: name, Schema: name})
			}
		}
		return out, nil

	case core.ObjectDatabase:
		names, err := l.catalog.ListSchemas(ctx, n.Database)
		if err != nil {
			return nil, err
		}
		out := make([]*Node, 0, len(names))
		for _, name := range names {
			out = append(out, &Node{
				Type:     core.ObjectSchema,
				Name:     name,
				Database: n.Database,
				Schema:   n.Database + "." + name,
			})
		}
		return out, nil

	case core.ObjectSchema:
		out := make([]*Node, 0, len(d.ObjectKinds))
		for _, kind := range d.ObjectKinds {
			out = append(out, n.folder(kind, ""))
		}
		return out, nil

	case core.ObjectTable, core.ObjectView:
		out := []*Node{n.folder(core.ObjectColumn, n.Table)}
		if n.Type == core.ObjectTable {
			out = append(out,
				n.folder(core.ObjectIndex, n.Table),
				n.folder(core.ObjectForeignKey, n.Table))
		}
		return out, nil

	case core.ObjectFolder:
		return l.folderChildren(ctx, n)
	}

	return nil, fmt.Errorf("cannot expand %s nodes", n.Type)
}

func (n *Node) folder(kind core.ObjectType, table string) *Node {
	return &Node{
		Type:     core.ObjectFolder,
		Name:     folderLabel(kind),
		Kind:     kind,
		Database: n.Database,
		Schema:   n.Schema,
		Table:    table,
	}
}

func (l *Loader) folderChildren(ctx context.Context, n *Node) ([]*Node, error) {
	var (
		objs []core.DatabaseObject
		err  error
	)
	switch n.Kind {
	case core.ObjectColumn:
		objs, err = l.catalog.ListColumns(ctx, n.Schema, n.Table)
	case core.ObjectIndex:
		objs, err = l.catalog.ListIndexes(ctx, n.Schema, n.Table)
	case core.ObjectForeignKey:
		objs, err = l.catalog.ListForeignKeys(ctx, n.Schema, n.Table)
	default:
		objs, err = l.catalog.ListObjects(ctx, n.Schema, n.Kind)
	}
	if err != nil {
		return nil, err
	}

	out := make([]*Node, 0, len(objs))
	for i := range objs {
		obj := objs[i]
		child := &Node{
			Type:     obj.Type,
			Name:     obj.Name,
			Database: n.Database,
			Schema:   n.Schema,
			Table:    n.Table,
			Object:   &obj,
		}
		if child.Type == "" {
			child.Type = n.Kind
		}
		if child.IsRelation() {
			child.Table = obj.Name
		}
		out = append(out, child)
	}
	return out, nil
}
