package adapter

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/leapstack-labs/workbench/pkg/core"
)

// Factory builds an adapter that logs through logger. A nil logger discards.
type Factory func(logger *slog.Logger) Adapter

var (
	registryMu sync.RWMutex
	registry   = make(map[core.DatabaseType]Factory)
)

// Register makes an adapter available for a database type. Adapter packages
// call it from init, so importing one for side effects is enough to enable
// its engine. Registering the same type twice replaces the earlier factory.
func Register(t core.DatabaseType, factory Factory) {
	if factory == nil {
		panic("adapter: Register factory is nil for " + string(t))
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[t] = factory
}

// canonical maps a user-facing name such as "postgres" or "mariadb" to the
// type its adapter registered under. Unrecognized names pass through.
func canonical(name string) core.DatabaseType {
	if t, err := core.ParseDatabaseType(name); err == nil {
		return t
	}
	return core.DatabaseType(name)
}

// Get returns the factory registered for name or one of its aliases.
func Get(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[canonical(name)]
	return f, ok
}

// NewAdapter builds the adapter for cfg.Type, which may be any spelling
// core.ParseDatabaseType accepts.
func NewAdapter(cfg core.AdapterConfig, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("adapter type not specified")
	}

	factory, ok := Get(string(cfg.Type))
	if !ok {
		return nil, &UnknownAdapterError{
			Type:      string(cfg.Type),
			Available: ListAdapters(),
		}
	}
	return factory(logger), nil
}

// ListAdapters returns the registered database types, sorted.
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for t := range registry {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return names
}

// IsRegistered reports whether name, or the type it aliases, has an adapter.
func IsRegistered(name string) bool {
	_, ok := Get(name)
	return ok
}

// UnknownAdapterError reports a database_type no imported adapter serves.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown adapter type %q\nAvailable adapters: %v\nHint: check database_type in connections.json", e.Type, e.Available)
}
