// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// RunDBMaintenance performs engine-specific maintenance on the store. For
// SQLite this runs PRAGMA optimize, VACUUM, a WAL checkpoint and an integrity
// check. For Postgres it runs VACUUM ANALYZE. For MySQL it runs OPTIMIZE
// TABLE for all tables.
func RunDBMaintenance(ctx context.Context, s *Store) error {
	// Bound maintenance so a locked database does not hang the CLI forever.
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	bdb := s.BunDB()
	switch s.Type() {
	case TypeSQLite:
		// PRAGMA optimize is not useful for in-memory databases; treat
		// failures as non-fatal.
		if _, err := ExecRaw(ctx, bdb, "PRAGMA optimize"); err != nil {
			dbLogf("db: sqlite optimize failed (ignored): %v", err)
		}
		if _, err := ExecRaw(ctx, bdb, "VACUUM"); err != nil {
			return fmt.Errorf("sqlite vacuum failed: %w", err)
		}
		_, _ = ExecRaw(ctx, bdb, "PRAGMA wal_checkpoint(TRUNCATE)")
		var res string
		if err := QueryRawInto(ctx, bdb, &res, "PRAGMA integrity_check"); err != nil {
			return fmt.Errorf("sqlite integrity_check failed: %w", err)
		}
		if res != "ok" {
			return fmt.Errorf("sqlite integrity_check failed: %s", res)
		}
	case TypePostgres:
		if _, err := ExecRaw(ctx, bdb, "VACUUM ANALYZE"); err != nil {
			return fmt.Errorf("postgres vacuum failed: %w", err)
		}
	case TypeMySQL:
		var tables []string
		if err := QueryRawInto(ctx, bdb, &tables, "SHOW TABLES"); err != nil {
			return fmt.Errorf("mysql show tables failed: %w", err)
		}
		var lastErr error
		for _, table := range tables {
			if _, err := ExecRaw(ctx, bdb, "OPTIMIZE TABLE ?", bun.Ident(table)); err != nil {
				// Per-table failures are non-fatal; remember the last one.
				dbLogf("db: mysql optimize table %s failed: %v", table, err)
				lastErr = err
			}
		}
		if lastErr != nil {
			return fmt.Errorf("mysql optimize encountered errors: %w", lastErr)
		}
	default:
		return fmt.Errorf("unsupported db type for maintenance: %s", s.Type())
	}
	return nil
}
