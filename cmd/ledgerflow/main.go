// Package main provides the ledgerflow workflow engine: the HTTP API and the trigger manager in
// one process.
package main

import (
	"context"
	"os"

	"github.com/dukex/ledgerflow/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func main() {
	logger := log.WithModule("ledgerflow")

	cmd := &cli.Command{
		Name:                  "ledgerflow",
		Usage:                 "Automate business workflows",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			RunCommand(),
			ValidateCommand(),
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
