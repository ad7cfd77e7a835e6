package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/workbench/internal/browser"
	"github.com/leapstack-labs/workbench/internal/cli/config"
	"github.com/leapstack-labs/workbench/internal/cli/output"
	"github.com/leapstack-labs/workbench/internal/connection"
	"github.com/leapstack-labs/workbench/internal/history"
	"github.com/leapstack-labs/workbench/internal/profiles"
	"github.com/leapstack-labs/workbench/pkg/core"
)

// errNoConnection is returned when a command needs a connection and none
// was selected.
var errNoConnection = errors.New("no connection selected: pass --connection or set connection in the config")

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
	Profiles *profiles.Store
	Manager  *connection.Manager

	history *history.Store
}

// NewCommandContext creates a CommandContext for cmd.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		var err error
		if cfg, err = config.Load("", nil); err != nil {
			return nil, nil, err
		}
	}
	logger := config.GetLogger(cmd.Context())

	store := profiles.NewStore(cfg.ConnectionsFile)
	cc := &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
		Profiles: store,
		Manager:  connection.NewManager(store, logger),
	}

	cleanup := func() {
		if err := cc.Manager.DisconnectAll(); err != nil {
			logger.Warn("failed to close connections", "error", err)
		}
		if cc.history != nil {
			if err := cc.history.Close(); err != nil {
				logger.Warn("failed to close history", "error", err)
			}
		}
	}
	return cc, cleanup, nil
}

// ConnectionName returns the selected connection. With no selection and a
// single saved profile, that profile is used.
func (c *CommandContext) ConnectionName() (string, error) {
	if c.Cfg.Connection != "" {
		return c.Cfg.Connection, nil
	}
	list, err := c.Profiles.List()
	if err != nil {
		return "", err
	}
	if len(list) == 1 {
		return list[0].Name, nil
	}
	return "", errNoConnection
}

// Connect opens the selected connection.
func (c *CommandContext) Connect(ctx context.Context) (*connection.Connection, error) {
	name, err := c.ConnectionName()
	if err != nil {
		return nil, err
	}
	return c.Manager.Connect(ctx, name)
}

// History opens the history store. It returns nil when history is disabled.
func (c *CommandContext) History() (*history.Store, error) {
	if !c.Cfg.HistoryEnabled {
		return nil, nil
	}
	if c.history == nil {
		h, err := history.Open(c.Cfg.HistoryPath, c.Cfg.MaxQueryHistory, c.Logger)
		if err != nil {
			return nil, err
		}
		c.history = h
	}
	return c.history, nil
}

// Record stores results in history, logging failures instead of returning
// them so a broken history database never fails a query.
func (c *CommandContext) Record(ctx context.Context, conn string, results []*core.QueryResult) {
	h, err := c.History()
	if err == nil && h != nil {
		err = h.RecordResults(ctx, conn, results)
	}
	if err != nil {
		c.Logger.Warn("failed to record history", "connection", conn, "error", err)
	}
}

// Format resolves an explicit --format value, falling back to the
// renderer's mode.
func (c *CommandContext) Format(flag string) (output.Format, error) {
	if flag == "" {
		return output.FormatFor(c.Renderer.EffectiveMode()), nil
	}
	return output.ParseFormat(flag)
}

// relationNode builds a browser node for a "schema.table" reference.
func relationNode(conn *connection.Connection, ref string, kind core.ObjectType) *browser.Node {
	schema, table := core.ParseQualifiedName(ref, conn.Dialect())
	return &browser.Node{
		Type:       kind,
		Name:       table,
		Connection: conn.Name(),
		Schema:     schema,
		Table:      table,
	}
}

// CompleteConnectionNames completes saved profile names.
func CompleteConnectionNames(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	cfg, err := config.Load("", cmd.Root().PersistentFlags())
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	list, err := profiles.NewStore(cfg.ConnectionsFile).List()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	names := make([]string, len(list))
	for i, p := range list {
		names[i] = p.Name
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

func printErr(cmd *cobra.Command, err error) {
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
}
