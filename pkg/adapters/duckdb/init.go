// Package duckdb provides a DuckDB database adapter.
//
// This file registers the DuckDB adapter with the adapter registry.
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/workbench/pkg/adapters/duckdb"
package duckdb

import (
	"log/slog"

	"github.com/leapstack-labs/workbench/pkg/adapter"
	"github.com/leapstack-labs/workbench/pkg/core"
)

func init() {
	adapter.Register(core.DuckDB, func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
