package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/workbench/internal/browser"
	"github.com/leapstack-labs/workbench/internal/cli/output"
)

const defaultTreeDepth = 3

// TreeOptions holds options for the tree command.
type TreeOptions struct {
	Depth  int
	Filter string
}

// NewTreeCommand creates the tree command.
func NewTreeCommand() *cobra.Command {
	opts := &TreeOptions{}

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the schema tree of the selected connection",
		Long: `Print the schema tree of the selected connection.

The tree is loaded level by level down to --depth levels below the
connection. --filter keeps nodes whose name contains the text, along with
their ancestors.`,
		Example: `  workbench tree
  workbench tree --depth 5 --filter user_id`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTree(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Depth, "depth", defaultTreeDepth, "Levels to load below the connection (0 loads everything)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "Only show nodes matching the text")
	return cmd
}

func runTree(cmd *cobra.Command, opts *TreeOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	conn, err := cc.Connect(cmd.Context())
	if err != nil {
		return err
	}

	root := browser.NewConnectionNode(conn.Name())
	loader := browser.NewLoader(conn, cc.Logger)
	if err := loader.ExpandAll(cmd.Context(), root, opts.Depth); err != nil {
		// Failed nodes carry their error and are still printed.
		cc.Renderer.Warn(err.Error())
	}
	if opts.Filter != "" {
		if browser.Filter(root, opts.Filter) == 0 {
			cc.Renderer.Muted(fmt.Sprintf("No objects match %q", opts.Filter))
			return nil
		}
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(prune(root))
	}
	output.WriteTree(r.Writer(), []output.TreeItem{treeItem(root)}, r.EffectiveMode() == output.ModeMarkdown)
	return nil
}

func treeItem(n *browser.Node) output.TreeItem {
	text := n.Name
	if d := n.Detail(); d != "" {
		text += "  " + d
	}
	if n.Err != nil {
		text += "  (error: " + n.Err.Error() + ")"
	}
	children := n.VisibleChildren()
	item := output.TreeItem{Text: text, Children: make([]output.TreeItem, 0, len(children))}
	for _, c := range children {
		item.Children = append(item.Children, treeItem(c))
	}
	return item
}

// prune copies n without hidden descendants.
func prune(n *browser.Node) *browser.Node {
	cp := *n
	cp.Children = nil
	for _, c := range n.VisibleChildren() {
		cp.Children = append(cp.Children, prune(c))
	}
	return &cp
}
