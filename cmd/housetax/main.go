// Package main provides the housetax CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/housetax/internal/cli"

	// Register SQL engines for query and check.
	_ "github.com/leapstack-labs/housetax/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/housetax/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/housetax/pkg/adapters/sqlite"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
