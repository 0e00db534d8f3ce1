// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicate is returned when attempting to insert a record that already exists.
	ErrDuplicate = errors.New("duplicate record")
	// ErrForeignKey is returned when a write references a missing row or a
	// delete leaves dangling references.
	ErrForeignKey = errors.New("foreign key constraint violated")
)

// MapDBError inspects low-level driver errors and maps common constraint
// violations to package-level sentinel errors. The mapping is string based so
// this file does not import the SQL driver packages. The driver message is
// kept in the returned error.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}
	le := strings.ToLower(err.Error())
	switch {
	// MySQL duplicate entry (1062), Postgres unique violation (23505), SQLite unique constraint.
	case strings.Contains(le, "duplicate") || strings.Contains(le, "unique") || strings.Contains(le, "23505") || strings.Contains(le, "1062"):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	// MySQL 1451/1452, Postgres 23503, SQLite "FOREIGN KEY constraint failed".
	case strings.Contains(le, "foreign key") || strings.Contains(le, "23503") || strings.Contains(le, "1451") || strings.Contains(le, "1452"):
		return fmt.Errorf("%w: %v", ErrForeignKey, err)
	}
	return err
}
