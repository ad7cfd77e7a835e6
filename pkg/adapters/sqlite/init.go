// Package sqlite provides a cgo-free SQLite database adapter.
//
// This file registers the SQLite adapter with the adapter registry.
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/workbench/pkg/adapters/sqlite"
package sqlite

import (
	"log/slog"

	"github.com/leapstack-labs/workbench/pkg/adapter"
	"github.com/leapstack-labs/workbench/pkg/core"
)

func init() {
	adapter.Register(core.SQLite, func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
