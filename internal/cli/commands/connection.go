package commands

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/workbench/internal/cli/output"
	"github.com/leapstack-labs/workbench/internal/connection"
	"github.com/leapstack-labs/workbench/internal/profiles"
	"github.com/leapstack-labs/workbench/pkg/core"
)

// NewConnectionCommand creates the connection command and its subcommands.
func NewConnectionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "connection",
		Aliases: []string{"conn"},
		Short:   "Manage saved connection profiles",
		Long: `Manage the connection profiles saved in connections.json.

Host, user and password fields may reference environment variables as
${NAME}; they are expanded when a connection is opened.`,
	}

	cmd.AddCommand(newConnectionAddCommand())
	cmd.AddCommand(newConnectionListCommand())
	cmd.AddCommand(newConnectionShowCommand())
	cmd.AddCommand(newConnectionRemoveCommand())
	cmd.AddCommand(newConnectionTestCommand())
	return cmd
}

type connectionAddOptions struct {
	profile core.ConnectionProfile
	dbType  string
	replace bool
	test    bool
}

func newConnectionAddCommand() *cobra.Command {
	opts := &connectionAddOptions{}

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Save a connection profile",
		Example: `  workbench connection add local --type sqlite --path ./app.db
  workbench connection add prod --type postgres --host db.internal --user app \
      --password '${PROD_DB_PASSWORD}' --database app --ssh-host bastion --ssh-user ops`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnectionAdd(cmd, args[0], opts)
		},
	}

	p := &opts.profile
	f := cmd.Flags()
	f.StringVar(&opts.dbType, "type", "mysql", "Database type: mysql, postgresql, sqlite, duckdb")
	f.StringVar(&p.Host, "host", "", "Server host (default: localhost)")
	f.IntVar(&p.Port, "port", 0, "Server port (default: the type's standard port)")
	f.StringVar(&p.Username, "user", "", "User name")
	f.StringVar(&p.Password, "password", "", "Password, may be ${ENV_VAR}")
	f.StringVar(&p.DefaultSchema, "database", "", "Default database or schema")
	f.BoolVar(&p.UseSSL, "ssl", false, "Require TLS")
	f.StringVar(&p.Path, "path", "", "Database file for sqlite and duckdb")
	f.StringVar(&p.SSHHostname, "ssh-host", "", "SSH bastion host")
	f.IntVar(&p.SSHPort, "ssh-port", 0, "SSH port (default: 22)")
	f.StringVar(&p.SSHUsername, "ssh-user", "", "SSH user")
	f.StringVar(&p.SSHPassword, "ssh-password", "", "SSH password")
	f.StringVar(&p.SSHKeyFile, "ssh-key", "", "SSH private key file")
	f.StringToStringVar(&p.Options, "option", nil, "Driver option as key=value (repeatable)")
	f.BoolVar(&opts.replace, "replace", false, "Replace an existing profile with the same name")
	f.BoolVar(&opts.test, "test", false, "Test the connection before saving")

	_ = cmd.RegisterFlagCompletionFunc("type", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		types := make([]string, len(core.DatabaseTypes))
		for i, t := range core.DatabaseTypes {
			types[i] = string(t)
		}
		return types, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func runConnectionAdd(cmd *cobra.Command, name string, opts *connectionAddOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	dbType, err := core.ParseDatabaseType(opts.dbType)
	if err != nil {
		return err
	}
	p := opts.profile
	p.Name = name
	p.DatabaseType = dbType
	p.ApplyDefaults()
	if err := p.Validate(); err != nil {
		return err
	}

	if opts.test {
		if err := connection.TestProfile(cmd.Context(), profiles.Resolve(p), cc.Logger); err != nil {
			return err
		}
	}

	if opts.replace {
		err = cc.Profiles.Upsert(p)
	} else {
		err = cc.Profiles.Add(p)
	}
	if errors.Is(err, profiles.ErrProfileExists) {
		return fmt.Errorf("%w (use --replace to overwrite)", err)
	}
	if err != nil {
		return err
	}

	cc.Logger.Info("connection saved", "name", p.Name, "type", string(p.DatabaseType))
	cc.Renderer.Success(fmt.Sprintf("Saved connection %q", p.Name))
	return nil
}

func newConnectionListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved connections",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			list, err := cc.Profiles.List()
			if err != nil {
				return err
			}

			r := cc.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				redacted := make([]core.ConnectionProfile, len(list))
				for i, p := range list {
					redacted[i] = p.Redacted()
				}
				return r.JSON(redacted)
			}
			if len(list) == 0 {
				r.Muted("No connections saved. Add one with: workbench connection add NAME")
				return nil
			}

			rows := make([][]string, len(list))
			for i, p := range list {
				def := ""
				if p.Name == cc.Cfg.Connection {
					def = "*"
				}
				ssh := ""
				if p.UsesSSH() {
					ssh = p.SSHUsername + "@" + p.SSHHostname
				}
				rows[i] = []string{def, p.Name, string(p.DatabaseType), p.Address(), p.Username, ssh}
			}
			return output.WriteTable(r.Writer(), []string{"", "name", "type", "address", "user", "ssh"}, rows, output.FormatFor(r.EffectiveMode()))
		},
	}
}

func newConnectionShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "show NAME",
		Short:             "Show a saved connection with secrets redacted",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: CompleteConnectionNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			p, err := cc.Profiles.Get(args[0])
			if err != nil {
				return err
			}
			p = p.Redacted()

			r := cc.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(p)
			}

			r.Header(1, "connection "+p.Name)
			pairs := [][2]string{
				{"Type", string(p.DatabaseType)},
				{"Address", p.Address()},
			}
			if !p.DatabaseType.IsFileBased() {
				pairs = append(pairs,
					[2]string{"User", p.Username},
					[2]string{"Password", p.Password},
					[2]string{"Database", p.DefaultSchema},
					[2]string{"SSL", strconv.FormatBool(p.UseSSL)},
				)
			}
			if p.UsesSSH() {
				pairs = append(pairs,
					[2]string{"SSH", fmt.Sprintf("%s@%s:%d", p.SSHUsername, p.SSHHostname, p.SSHPort)},
					[2]string{"SSH key", p.SSHKeyFile},
					[2]string{"SSH password", p.SSHPassword},
				)
			}
			for _, k := range slices.Sorted(maps.Keys(p.Options)) {
				pairs = append(pairs, [2]string{"Option " + k, p.Options[k]})
			}
			r.KeyValues(pairs)
			return nil
		},
	}
}

func newConnectionRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "remove NAME",
		Aliases:           []string{"rm"},
		Short:             "Remove a saved connection",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: CompleteConnectionNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := cc.Profiles.Remove(args[0]); err != nil {
				return err
			}
			cc.Logger.Info("connection removed", "name", args[0])
			cc.Renderer.Success(fmt.Sprintf("Removed connection %q", args[0]))
			return nil
		},
	}
}

func newConnectionTestCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "test [NAME]",
		Short:             "Open a connection and run a test query",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: CompleteConnectionNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			name := ""
			if len(args) == 1 {
				name = args[0]
			} else if name, err = cc.ConnectionName(); err != nil {
				return err
			}

			p, err := cc.Profiles.Resolve(name)
			if err != nil {
				return err
			}
			if err := connection.TestProfile(cmd.Context(), p, cc.Logger); err != nil {
				return err
			}
			cc.Renderer.Success("Connection successful")
			return nil
		},
	}
}
