// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

// Package testutil holds helpers shared by package tests.
package testutil

import (
	"strings"
	"testing"
)

// MemoryDSN returns a SQLite DSN for a shared-cache in-memory database that
// is private to the running test.
func MemoryDSN(t testing.TB) string {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	return "file:" + name + "?mode=memory&cache=shared"
}
