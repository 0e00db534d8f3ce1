// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

// Package db provides the data access layer for Riskledger.
// It opens the configured relational engine (SQLite, PostgreSQL or MySQL)
// behind a single *bun.DB so the rest of the application, and the backup
// engine in particular, can work against bun's dialect-neutral query API.
package db // import "github.com/riskledger/riskledger/internal/db"

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"

	// SQL drivers for the non-default engines.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Supported engine names as they appear in configuration.
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
	TypeMySQL    = "mysql"
)

// sqlOpenFunc allows tests to override database opening behavior.
var sqlOpenFunc = sql.Open

// Store is an open database handle.
type Store struct {
	bun    *bun.DB
	dbType string
}

// BunDB returns the underlying bun handle.
func (s *Store) BunDB() *bun.DB { return s.bun }

// Type returns the engine name (sqlite, postgres or mysql).
func (s *Store) Type() string { return s.dbType }

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.bun == nil {
		return nil
	}
	return s.bun.Close()
}

// driverFor maps an engine name to its database/sql driver name.
func driverFor(dbType string) (string, error) {
	switch dbType {
	case TypeSQLite:
		return "sqlite", nil
	// The pgx stdlib registers driver name "pgx".
	case TypePostgres:
		return "pgx", nil
	case TypeMySQL:
		return "mysql", nil
	default:
		return "", fmt.Errorf("unsupported database type: '%s'", dbType)
	}
}

// NewStoreFromDSN opens a sql.DB for the given DSN, applies pool settings and
// wraps it in a long-lived *bun.DB. Schema creation is a separate step
// (EnsureSchema) because it needs the record catalog.
func NewStoreFromDSN(dbType, dsn string) (*Store, error) {
	driverName, err := driverFor(dbType)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	sqlDB, err := sqlOpenFunc(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Defaults are conservative for small deployments and can be tuned via
	// environment variables.
	const (
		defaultMaxOpenConns    = 25
		defaultMaxIdleConns    = 25
		defaultConnMaxLifetime = 5 * time.Minute
		defaultConnMaxIdleSecs = 60
	)

	maxOpen := envInt("RISKLEDGER_DB_MAX_OPEN_CONNS", defaultMaxOpenConns)
	maxIdle := envInt("RISKLEDGER_DB_MAX_IDLE_CONNS", defaultMaxIdleConns)
	connMax := defaultConnMaxLifetime
	if n := envInt("RISKLEDGER_DB_CONN_MAX_LIFETIME_SECONDS", -1); n >= 0 {
		connMax = time.Duration(n) * time.Second
	}
	connIdle := envInt("RISKLEDGER_DB_CONN_MAX_IDLE_SECONDS", defaultConnMaxIdleSecs)

	// In-memory SQLite databases live per connection (or per shared cache),
	// and concurrent writers on a shared cache fail with SQLITE_LOCKED, so
	// they get exactly one connection.
	if dbType == TypeSQLite && isMemorySQLite(dsn) {
		maxOpen = 1
		maxIdle = 1
	}

	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(connMax)
	sqlDB.SetConnMaxIdleTime(time.Duration(connIdle) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", dbType, err)
	}
	dbLogf("db: opened %s driver in %s (conn max open=%d, idle=%ds, maxLifetime=%s)", driverName, time.Since(start), maxOpen, connIdle, connMax)

	return &Store{bun: createBunDB(sqlDB, dbType), dbType: dbType}, nil
}

// createBunDB constructs a *bun.DB for the provided *sql.DB and dbType.
func createBunDB(sqlDB *sql.DB, dbType string) *bun.DB {
	switch dbType {
	case TypePostgres:
		return bun.NewDB(sqlDB, pgdialect.New())
	case TypeMySQL:
		return bun.NewDB(sqlDB, mysqldialect.New())
	default:
		return bun.NewDB(sqlDB, sqlitedialect.New())
	}
}

func isMemorySQLite(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory") || strings.HasPrefix(dsn, "file::memory:")
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
