package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/workbench/internal/browser"
	"github.com/leapstack-labs/workbench/internal/tui"
)

// NewBrowseCommand creates the browse command.
func NewBrowseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse the schema tree interactively",
		Long: `Open the terminal schema browser for the selected connection.

Keys: up/down (k/j) move, enter/right expand, left collapse, / filter,
esc clear filter, s build a SELECT, r refresh, q quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			conn, err := cc.Connect(cmd.Context())
			if err != nil {
				return err
			}

			loader := browser.NewLoader(conn, cc.Logger)
			root := browser.NewConnectionNode(conn.Name())
			return tui.Run(cmd.Context(), loader, conn.Dialect(), root, tui.Options{
				SelectLimit: cc.Cfg.DefaultResultLimit,
				Database:    conn.Database(),
			})
		},
	}
}
