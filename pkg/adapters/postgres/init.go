// Package postgres provides a PostgreSQL database adapter.
//
// This file registers the PostgreSQL adapter with the adapter registry.
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/workbench/pkg/adapters/postgres"
package postgres

import (
	"log/slog"

	"github.com/leapstack-labs/workbench/pkg/adapter"
	"github.com/leapstack-labs/workbench/pkg/core"
)

func init() {
	adapter.Register(core.PostgreSQL, func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
