// Package main provides the workbench SQL client.
package main

import (
	"os"

	"github.com/leapstack-labs/workbench/internal/cli"

	_ "github.com/leapstack-labs/workbench/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/workbench/pkg/adapters/mysql"
	_ "github.com/leapstack-labs/workbench/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/workbench/pkg/adapters/sqlite"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
