// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

// Command-line entrypoint for Riskledger.
//
// Usage:
//
//	go run . [command] [flags]
//	./riskledger backup
//
// See --help for the available commands.
package main

import (
	"os"

	"github.com/riskledger/riskledger/internal/logging"
	"github.com/riskledger/riskledger/ui/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		logging.Errorf("%v", err)
		os.Exit(1)
	}
}
