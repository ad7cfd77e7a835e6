// Package connection manages live database connections opened from saved
// profiles, including SSH tunnelling and script execution.
package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/leapstack-labs/workbench/internal/tunnel"
	"github.com/leapstack-labs/workbench/pkg/adapter"
	"github.com/leapstack-labs/workbench/pkg/core"
	"github.com/leapstack-labs/workbench/pkg/sqlscript"
)

// Profile options understood by the SSH tunnel.
const (
	OptionSSHKeyPassphrase = "ssh_key_passphrase"
	OptionSSHKnownHosts    = "ssh_known_hosts"
)

const testQuery = "SELECT 1 AS test"

// Connection is a profile bound to an adapter and, when configured, an SSH tunnel.
type Connection struct {
	mu      sync.RWMutex
	profile core.ConnectionProfile
	adapter adapter.Adapter
	tunnel  *tunnel.Tunnel
	logger  *slog.Logger
}

// New validates profile and creates a disconnected Connection for it.
func New(profile core.ConnectionProfile, logger *slog.Logger) (*Connection, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	profile.ApplyDefaults()
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	adp, err := adapter.NewAdapter(profile.AdapterConfig(), logger)
	if err != nil {
		return nil, err
	}

	return &Connection{
		profile: profile,
		adapter: adp,
		logger:  logger.With(slog.String("connection", profile.Name)),
	}, nil
}

// Profile returns the profile the connection was created from.
func (c *Connection) Profile() core.ConnectionProfile {
	return c.profile
}

// Name returns the profile name.
func (c *Connection) Name() string {
	return c.profile.Name
}

// Database returns the database the session opens: the profile's database
// for dialects whose databases hold schemas, or the dialect default.
func (c *Connection) Database() string {
	d := c.Dialect()
	if !d.DatabasesHaveSchemas {
		return ""
	}
	if c.profile.DefaultSchema != "" {
		return c.profile.DefaultSchema
	}
	return d.DefaultDatabase
}

// Dialect returns the adapter's dialect.
func (c *Connection) Dialect() *core.Dialect {
	return c.adapter.Dialect()
}

// IsConnected reports whether the adapter holds an open connection.
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.adapter.IsConnected()
}

// Connect opens the tunnel, if any, and then the database connection.
// Connecting an open connection does nothing.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.adapter.IsConnected() {
		return nil
	}

	cfg := c.profile.AdapterConfig()
	if c.profile.UsesSSH() {
		tun, err := tunnel.Start(ctx, c.tunnelConfig(), c.logger)
		if err != nil {
			return fmt.Errorf("connection %q: %w", c.profile.Name, err)
		}
		c.tunnel = tun
		cfg.Host = "127.0.0.1"
		cfg.Port = tun.LocalPort()
	}

	if err := c.adapter.Connect(ctx, cfg); err != nil {
		c.closeTunnel()
		return fmt.Errorf("connection %q: %w", c.profile.Name, err)
	}

	c.logger.Info("connected",
		slog.String("type", string(c.profile.DatabaseType)),
		slog.String("address", c.profile.Address()),
		slog.Bool("ssh", c.tunnel != nil))
	return nil
}

func (c *Connection) tunnelConfig() tunnel.Config {
	return tunnel.Config{
		Host:           c.profile.SSHHostname,
		Port:           c.profile.SSHPort,
		User:           c.profile.SSHUsername,
		Password:       c.profile.SSHPassword,
		KeyFile:        expandHome(c.profile.SSHKeyFile),
		KeyPassphrase:  c.profile.Options[OptionSSHKeyPassphrase],
		KnownHostsFile: expandHome(c.profile.Options[OptionSSHKnownHosts]),
		RemoteHost:     c.profile.Host,
		RemotePort:     c.profile.Port,
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func (c *Connection) closeTunnel() {
	if c.tunnel == nil {
		return
	}
	if err := c.tunnel.Close(); err != nil {
		c.logger.Warn("failed to close ssh tunnel", "error", err)
	}
	c.tunnel = nil
}

// Disconnect closes the database connection and then the tunnel.
// It is safe to call on a closed connection.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	wasConnected := c.adapter.IsConnected()
	err := c.adapter.Close()
	c.closeTunnel()
	if wasConnected {
		c.logger.Info("disconnected")
	}
	if err != nil {
		return fmt.Errorf("failed to close connection %q: %w", c.profile.Name, err)
	}
	return nil
}

// Execute runs one statement. See adapter.Adapter.Execute.
func (c *Connection) Execute(ctx context.Context, sql string, opts core.ExecOptions) (*core.QueryResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	res, err := c.adapter.Execute(ctx, sql, opts)
	if err != nil {
		c.logger.Debug("statement failed", "error", err)
	}
	return res, err
}

// ScriptOptions controls ExecuteScript.
type ScriptOptions struct {
	core.ExecOptions

	// ContinueOnError keeps executing after a failed statement.
	ContinueOnError bool

	// Delimiter is the initial statement terminator, as left by an earlier
	// DELIMITER directive. Empty means ";".
	Delimiter string
}

// ExecuteScript splits script with the dialect's lexer rules and runs each
// statement in order, returning one result per executed statement.
// Execution stops at the first failure unless ContinueOnError is set; the
// returned error joins every failure.
func (c *Connection) ExecuteScript(ctx context.Context, script string, opts ScriptOptions) ([]*core.QueryResult, error) {
	lex := sqlscript.OptionsFor(c.Dialect())
	lex.Delimiter = opts.Delimiter
	stmts := sqlscript.Split(script, lex)
	results := make([]*core.QueryResult, 0, len(stmts))

	var errs []error
	for i, stmt := range stmts {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := c.Execute(ctx, stmt.Text, opts.ExecOptions)
		results = append(results, res)
		if err != nil {
			errs = append(errs, fmt.Errorf("statement %d: %w", i+1, err))
			if !opts.ContinueOnError {
				break
			}
		}
	}
	return results, errors.Join(errs...)
}

// ExecuteAt runs only the statement of script containing the byte offset.
func (c *Connection) ExecuteAt(ctx context.Context, script string, offset int, opts core.ExecOptions) (*core.QueryResult, error) {
	stmt, ok := sqlscript.StatementAt(script, offset, sqlscript.OptionsFor(c.Dialect()))
	if !ok {
		return nil, fmt.Errorf("no statement at offset %d", offset)
	}
	return c.Execute(ctx, stmt.Text, opts)
}

// Test runs a trivial query on the open connection.
func (c *Connection) Test(ctx context.Context) error {
	if _, err := c.Execute(ctx, testQuery, core.ExecOptions{}); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// TestProfile opens a throwaway connection for profile, runs the test query
// and disconnects.
func TestProfile(ctx context.Context, profile core.ConnectionProfile, logger *slog.Logger) error {
	conn, err := New(profile, logger)
	if err != nil {
		return err
	}
	if err := conn.Connect(ctx); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	defer func() { _ = conn.Disconnect() }()

	return conn.Test(ctx)
}
