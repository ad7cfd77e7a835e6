package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("config", "", "")
	flags.String("config-dir", "", "")
	flags.StringP("connection", "c", "", "")
	flags.StringP("output", "o", "", "")
	flags.BoolP("verbose", "v", false, "")
	flags.String("log-level", "", "")
	return flags
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WORKBENCH_CONFIG_DIR", dir)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.ConfigDir)
	assert.Equal(t, filepath.Join(dir, DefaultConnectionsFile), cfg.ConnectionsFile)
	assert.Equal(t, filepath.Join(dir, DefaultHistoryPath), cfg.HistoryPath)
	assert.Equal(t, filepath.Join(dir, "logs", "workbench.log"), cfg.LogFile)
	assert.Equal(t, filepath.Join(dir, DefaultREPLHistoryFile), cfg.REPL.HistoryFile)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.Equal(t, DefaultMaxQueryHistory, cfg.MaxQueryHistory)
	assert.Equal(t, DefaultResultLimit, cfg.DefaultResultLimit)
	assert.Equal(t, DefaultServerAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultREPLPrompt, cfg.REPL.Prompt)
	assert.True(t, cfg.HistoryEnabled)
	assert.Empty(t, cfg.FileUsed)
}

func TestLoad_CreatesConfigDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "wb")
	t.Setenv("WORKBENCH_CONFIG_DIR", dir)

	_, err := Load("", nil)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WORKBENCH_CONFIG_DIR", dir)

	yaml := `connection: from-file
output: markdown
log_level: debug
max_query_history: 50
server:
  addr: 127.0.0.1:9000
repl:
  prompt: "sql> "
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(yaml), 0o600))

	t.Run("file over defaults", func(t *testing.T) {
		cfg, err := Load("", nil)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, DefaultConfigFile), cfg.FileUsed)
		assert.Equal(t, "from-file", cfg.Connection)
		assert.Equal(t, "markdown", cfg.OutputFormat)
		assert.Equal(t, 50, cfg.MaxQueryHistory)
		assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
		assert.Equal(t, "sql> ", cfg.REPL.Prompt)
	})

	t.Run("env over file", func(t *testing.T) {
		t.Setenv("WORKBENCH_CONNECTION", "from-env")
		t.Setenv("WORKBENCH_SERVER__ADDR", "127.0.0.1:9100")
		t.Setenv("WORKBENCH_MAX_QUERY_HISTORY", "7")

		cfg, err := Load("", nil)
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.Connection)
		assert.Equal(t, "127.0.0.1:9100", cfg.Server.Addr)
		assert.Equal(t, 7, cfg.MaxQueryHistory)
		assert.Equal(t, "markdown", cfg.OutputFormat)
	})

	t.Run("flags over env", func(t *testing.T) {
		t.Setenv("WORKBENCH_CONNECTION", "from-env")

		flags := testFlags()
		require.NoError(t, flags.Parse([]string{"-c", "from-flag", "--log-level", "warn", "-v"}))

		cfg, err := Load("", flags)
		require.NoError(t, err)
		assert.Equal(t, "from-flag", cfg.Connection)
		assert.Equal(t, "warn", cfg.LogLevel)
		assert.True(t, cfg.Verbose)
	})

	t.Run("unchanged flags keep lower layers", func(t *testing.T) {
		cfg, err := Load("", testFlags())
		require.NoError(t, err)
		assert.Equal(t, "from-file", cfg.Connection)
		assert.Equal(t, "debug", cfg.LogLevel)
	})
}

func TestLoad_ExplicitConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WORKBENCH_CONFIG_DIR", dir)

	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("connection: custom\nhistory_path: /tmp/wb-history.db\n"), 0o600))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.FileUsed)
	assert.Equal(t, "custom", cfg.Connection)
	assert.Equal(t, "/tmp/wb-history.db", cfg.HistoryPath)
}

func TestLoad_ConfigDirFlag(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WORKBENCH_CONFIG_DIR", t.TempDir())

	flags := testFlags()
	require.NoError(t, flags.Parse([]string{"--config-dir", dir}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.ConfigDir)
	assert.Equal(t, filepath.Join(dir, DefaultConnectionsFile), cfg.ConnectionsFile)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WORKBENCH_CONFIG_DIR", dir)
	env := "WORKBENCH_CONNECTION=from-dotenv\nWB_TEST_DB_PASSWORD=s3cret\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("WB_TEST_DB_PASSWORD") })

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Connection)
	assert.Equal(t, "s3cret", os.Getenv("WB_TEST_DB_PASSWORD"))

	t.Run("process env wins", func(t *testing.T) {
		t.Setenv("WORKBENCH_CONNECTION", "from-env")
		cfg, err := Load("", nil)
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.Connection)
	})
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WORKBENCH_CONFIG_DIR", dir)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("connection: [unclosed"), 0o600))

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			OutputFormat:       "auto",
			LogLevel:           "info",
			MaxQueryHistory:    10,
			DefaultResultLimit: 10,
			Server:             ServerConfig{Addr: DefaultServerAddr},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "upper case level", mutate: func(c *Config) { c.LogLevel = "DEBUG" }},
		{name: "bad output", mutate: func(c *Config) { c.OutputFormat = "xml" }, wantErr: "invalid output"},
		{name: "bad level", mutate: func(c *Config) { c.LogLevel = "trace" }, wantErr: "invalid log_level"},
		{name: "zero history", mutate: func(c *Config) { c.MaxQueryHistory = 0 }, wantErr: "max_query_history"},
		{name: "negative limit", mutate: func(c *Config) { c.DefaultResultLimit = -1 }, wantErr: "default_result_limit"},
		{name: "missing addr", mutate: func(c *Config) { c.Server.Addr = "" }, wantErr: "server.addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "server.addr", envKey("WORKBENCH_SERVER__ADDR"))
	assert.Equal(t, "max_query_history", envKey("WORKBENCH_MAX_QUERY_HISTORY"))
	assert.Equal(t, "", envKey("HOME"))
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, FromContext(ctx))
	assert.NotNil(t, GetLogger(ctx))

	cfg := &Config{Connection: "x"}
	ctx = WithConfig(ctx, cfg)
	assert.Same(t, cfg, FromContext(ctx))
}
