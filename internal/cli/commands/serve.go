package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/workbench/internal/api"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local HTTP API",
		Long: `Serve the JSON HTTP API for saved connections, schema browsing, query
execution and history. The server stops on SIGINT or SIGTERM.`,
		Example: `  workbench serve
  workbench serve --addr 127.0.0.1:9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if addr == "" {
				addr = cc.Cfg.Server.Addr
			}
			h, err := cc.History()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := api.NewServer(api.Config{
				Addr:     addr,
				Manager:  cc.Manager,
				Profiles: cc.Profiles,
				History:  h,
				MaxRows:  cc.Cfg.DefaultResultLimit,
				Logger:   cc.Logger,
			})
			cc.Renderer.Println("Serving API on http://" + addr)
			return srv.Serve(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: server.addr)")
	return cmd
}
