// Command msrisk is the command line client for the risk scoring engine.
package main

import (
	"os"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/config"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
	config.Version = version
}

func main() {
	// Execute prints the error itself.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
