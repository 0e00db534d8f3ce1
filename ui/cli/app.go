// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"context"
	"fmt"

	"github.com/riskledger/riskledger/internal/backup"
	"github.com/riskledger/riskledger/internal/catalog"
	"github.com/riskledger/riskledger/internal/config"
	"github.com/riskledger/riskledger/internal/db"
	"github.com/riskledger/riskledger/internal/model"
)

// app bundles an open store with the backup service built on it.
type app struct {
	store *db.Store
	cat   *catalog.Catalog
	svc   *backup.Service
}

// openApp opens the store named by database, creates missing tables and
// wires a backup.Service configured from cfg.
func openApp(ctx context.Context, cfg config.Config, database config.DatabaseConfig) (*app, error) {
	comp, err := backup.ParseCompression(cfg.Backup.Compression)
	if err != nil {
		return nil, err
	}
	store, err := db.NewStoreFromDSN(database.Type, database.Dsn)
	if err != nil {
		return nil, err
	}
	reg := catalog.NewRegistry()
	if err := model.Register(reg); err != nil {
		_ = store.Close()
		return nil, err
	}
	cat, err := catalog.New(reg, store.BunDB())
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if err := db.EnsureSchema(ctx, store.BunDB(), cat); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("prepare schema: %w", err)
	}

	modules := cfg.Modules
	if len(modules) == 0 {
		modules = model.DefaultModules()
	}
	admin := cfg.Restore.Admin
	svc := backup.NewService(store.BunDB(), cat, backup.Options{
		Dir:         cfg.Backup.Dir,
		Compression: comp,
		Modules:     modules,
		Admin: backup.AdminAccount{
			Type:          admin.Type,
			MatchField:    admin.MatchField,
			MatchValue:    admin.MatchValue,
			PasswordField: admin.PasswordField,
		},
	})
	return &app{store: store, cat: cat, svc: svc}, nil
}

func (a *app) Close() error { return a.store.Close() }

// withApp opens the configured store for the duration of fn.
func withApp(ctx context.Context, fn func(a *app) error) error {
	a, err := openApp(ctx, appConfig, appConfig.Database)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(a)
}
