// Package config loads the workbench CLI configuration.
//
// Values are layered with koanf, highest precedence first: command line
// flags, WORKBENCH_* environment variables, a .env file, the YAML config
// file and built-in defaults.
package config

// Config holds all CLI configuration options.
type Config struct {
	ConfigDir          string       `koanf:"config_dir"`
	ConnectionsFile    string       `koanf:"connections_file"`
	HistoryPath        string       `koanf:"history_path"`
	HistoryEnabled     bool         `koanf:"history_enabled"`
	MaxQueryHistory    int          `koanf:"max_query_history"`
	DefaultResultLimit int          `koanf:"default_result_limit"`
	LogFile            string       `koanf:"log_file"`
	LogLevel           string       `koanf:"log_level"`
	Connection         string       `koanf:"connection"`
	OutputFormat       string       `koanf:"output"`
	Verbose            bool         `koanf:"verbose"`
	Server             ServerConfig `koanf:"server"`
	REPL               REPLConfig   `koanf:"repl"`

	// FileUsed is the config file that was read, if any.
	FileUsed string `koanf:"-"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// REPLConfig configures the interactive query shell.
type REPLConfig struct {
	Prompt      string `koanf:"prompt"`
	HistoryFile string `koanf:"history_file"`
}

// Default configuration values.
const (
	DefaultConfigDir          = "~/.workbench"
	DefaultConfigFile         = "workbench.yaml"
	DefaultConnectionsFile    = "connections.json"
	DefaultHistoryPath        = "history.db"
	DefaultLogFile            = "logs/workbench.log"
	DefaultLogLevel           = "info"
	DefaultMaxQueryHistory    = 1000
	DefaultResultLimit        = 1000
	DefaultOutput             = "auto" // TTY=text, otherwise markdown
	DefaultServerAddr         = "127.0.0.1:8765"
	DefaultREPLPrompt         = "workbench> "
	DefaultREPLHistoryFile    = "repl_history"
	EnvPrefix                 = "WORKBENCH_"
	envNestingSeparator       = "__"
	dotEnvFile                = ".env"
	configDirPermissions      = 0o700
)

func defaults() map[string]any {
	return map[string]any{
		"config_dir":           DefaultConfigDir,
		"connections_file":     DefaultConnectionsFile,
		"history_path":         DefaultHistoryPath,
		"history_enabled":      true,
		"max_query_history":    DefaultMaxQueryHistory,
		"default_result_limit": DefaultResultLimit,
		"log_file":             DefaultLogFile,
		"log_level":            DefaultLogLevel,
		"connection":           "",
		"output":               DefaultOutput,
		"verbose":              false,
		"server.addr":          DefaultServerAddr,
		"repl.prompt":          DefaultREPLPrompt,
		"repl.history_file":    DefaultREPLHistoryFile,
	}
}
