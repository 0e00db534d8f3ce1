// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"fmt"
	"time"

	"github.com/riskledger/riskledger/internal/catalog"
	"github.com/uptrace/bun"
)

// EnsureSchema creates the table of every record type known to cat that does
// not exist yet. Tables are created in dependency order so foreign keys
// always point at an existing table.
func EnsureSchema(ctx context.Context, bdb *bun.DB, cat *catalog.Catalog) error {
	start := time.Now()
	names := cat.DependencyOrder(cat.Names())
	for _, name := range names {
		d, ok := cat.Describe(name)
		if !ok {
			continue
		}
		if _, err := bdb.NewCreateTable().
			Model(d.New()).
			IfNotExists().
			WithForeignKeys().
			Exec(ctx); err != nil {
			return fmt.Errorf("create table %s: %w", d.Table, err)
		}
	}
	dbLogf("db: schema for %d record types ensured in %s", len(names), time.Since(start))
	return nil
}
