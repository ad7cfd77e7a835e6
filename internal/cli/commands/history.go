package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/workbench/internal/cli/output"
	"github.com/leapstack-labs/workbench/internal/history"
)

const defaultHistoryLimit = 50

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show, search or clear the query history",
		Long: `Show the most recent statements, newest first.

With --connection only that connection's statements are shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistoryList(cmd, limit)
		},
	}
	cmd.PersistentFlags().IntVarP(&limit, "limit", "n", defaultHistoryLimit, "Maximum entries to show")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List recent statements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistoryList(cmd, limit)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "search TERM",
		Short: "Find statements containing TERM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd, func(cc *CommandContext, h *history.Store) error {
				entries, err := h.Search(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				if cc.Cfg.Connection != "" {
					entries = filterConnection(entries, cc.Cfg.Connection)
				}
				return writeHistory(cc.Renderer, entries)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete history entries (all, or only --connection's)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withHistory(cmd, func(cc *CommandContext, h *history.Store) error {
				n, err := h.Clear(cmd.Context(), cc.Cfg.Connection)
				if err != nil {
					return err
				}
				cc.Renderer.Success(fmt.Sprintf("Deleted %d history entries", n))
				return nil
			})
		},
	})
	return cmd
}

func withHistory(cmd *cobra.Command, fn func(*CommandContext, *history.Store) error) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	h, err := cc.History()
	if err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("query history is disabled (history_enabled: false)")
	}
	return fn(cc, h)
}

func runHistoryList(cmd *cobra.Command, limit int) error {
	return withHistory(cmd, func(cc *CommandContext, h *history.Store) error {
		entries, err := h.List(cmd.Context(), history.ListOptions{Connection: cc.Cfg.Connection, Limit: limit})
		if err != nil {
			return err
		}
		return writeHistory(cc.Renderer, entries)
	})
}

func filterConnection(entries []history.Entry, name string) []history.Entry {
	out := entries[:0]
	for _, e := range entries {
		if e.Connection == name {
			out = append(out, e)
		}
	}
	return out
}

func writeHistory(r *output.Renderer, entries []history.Entry) error {
	if r.EffectiveMode() == output.ModeJSON {
		if entries == nil {
			entries = []history.Entry{}
		}
		return r.JSON(entries)
	}
	if len(entries) == 0 {
		r.Muted("No history entries")
		return nil
	}
	return output.WriteTable(r.Writer(), historyHeaders, historyRows(entries), output.FormatFor(r.EffectiveMode()))
}
