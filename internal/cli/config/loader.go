package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

type (
	configKey struct{}
	loggerKey struct{}
)

// Load reads the configuration. cfgFile overrides the default
// <config_dir>/workbench.yaml; flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	// .env in the working directory can point config_dir elsewhere, so it
	// is read before the directory is known.
	dotenv, err := readDotEnv(dotEnvFile)
	if err != nil {
		return nil, err
	}

	// First pass: find config_dir without the config file.
	pre := koanf.New(".")
	if err := loadLayers(pre, nil, "", dotenv, flags); err != nil {
		return nil, err
	}
	configDir, err := expandHome(pre.String("config_dir"))
	if err != nil {
		return nil, err
	}

	more, err := readDotEnv(filepath.Join(configDir, dotEnvFile))
	if err != nil {
		return nil, err
	}
	for k, v := range more {
		if _, ok := dotenv[k]; !ok {
			dotenv[k] = v
		}
	}
	exportDotEnv(dotenv)

	if cfgFile == "" {
		candidate := filepath.Join(configDir, DefaultConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			cfgFile = candidate
		}
	}

	k := koanf.New(".")
	if err := loadLayers(k, defaults(), cfgFile, dotenv, flags); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.FileUsed = cfgFile

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.ConfigDir, configDirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	return &cfg, nil
}

// loadLayers loads defaults, file, .env values, environment and flags into
// k in increasing order of precedence. A nil defaults map still loads the
// built-in defaults.
func loadLayers(k *koanf.Koanf, defs map[string]any, cfgFile string, dotenv map[string]string, flags *pflag.FlagSet) error {
	if defs == nil {
		defs = defaults()
	}
	if err := k.Load(confmap.Provider(defs, "."), nil); err != nil {
		return fmt.Errorf("failed to load defaults: %w", err)
	}

	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	fromDotEnv := make(map[string]any)
	for name, v := range dotenv {
		if key := envKey(name); key != "" {
			fromDotEnv[key] = v
		}
	}
	if err := k.Load(confmap.Provider(fromDotEnv, "."), nil); err != nil {
		return fmt.Errorf("failed to load .env values: %w", err)
	}

	// WORKBENCH_SERVER__ADDR -> server.addr
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return fmt.Errorf("failed to load flags: %w", err)
		}
	}
	return nil
}

// envKey maps WORKBENCH_* names to config keys; other names map to "".
func envKey(name string) string {
	if !strings.HasPrefix(name, EnvPrefix) {
		return ""
	}
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	return strings.ReplaceAll(key, envNestingSeparator, ".")
}

func readDotEnv(path string) (map[string]string, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	vals, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return vals, nil
}

// exportDotEnv makes non-workbench .env entries visible to ${VAR}
// expansion in connection profiles. Existing variables win.
func exportDotEnv(vals map[string]string) {
	for name, v := range vals {
		if strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		if _, ok := os.LookupEnv(name); !ok {
			_ = os.Setenv(name, v)
		}
	}
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

func (c *Config) resolvePaths() error {
	dir, err := expandHome(c.ConfigDir)
	if err != nil {
		return err
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	c.ConfigDir = dir

	for _, p := range []*string{&c.ConnectionsFile, &c.HistoryPath, &c.LogFile, &c.REPL.HistoryFile} {
		expanded, err := expandHome(*p)
		if err != nil {
			return err
		}
		*p = resolvePathRelativeTo(expanded, dir)
	}
	return nil
}

// WithConfig stores cfg in ctx.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext returns the config stored in ctx, or nil.
func FromContext(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	return nil
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}
