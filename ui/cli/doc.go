// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

// Package cli implements the Riskledger command-line interface with cobra.
// Every command loads configuration through internal/config, opens the
// configured store and drives backup.Service.
package cli
