// Package mysql provides a MySQL and MariaDB database adapter.
//
// This file registers the MySQL adapter with the adapter registry.
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/workbench/pkg/adapters/mysql"
package mysql

import (
	"log/slog"

	"github.com/leapstack-labs/workbench/pkg/adapter"
	"github.com/leapstack-labs/workbench/pkg/core"
)

func init() {
	adapter.Register(core.MySQL, func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
