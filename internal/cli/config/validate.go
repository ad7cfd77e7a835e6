package config

import (
	"fmt"
	"log/slog"
	"strings"
)

var (
	validOutputs   = []string{"auto", "text", "markdown", "json"}
	validLogLevels = []string{"debug", "info", "warn", "error"}
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !contains(validOutputs, c.OutputFormat) {
		return fmt.Errorf("invalid output %q: must be one of %s", c.OutputFormat, strings.Join(validOutputs, ", "))
	}
	if !contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		return fmt.Errorf("invalid log_level %q: must be one of %s", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if c.MaxQueryHistory <= 0 {
		return fmt.Errorf("max_query_history must be positive, got %d", c.MaxQueryHistory)
	}
	if c.DefaultResultLimit <= 0 {
		return fmt.Errorf("default_result_limit must be positive, got %d", c.DefaultResultLimit)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	return nil
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
