// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

package backup

import (
	"context"

	"github.com/riskledger/riskledger/internal/catalog"
	"github.com/uptrace/bun"
)

// Options configure a Service.
type Options struct {
	Dir         string
	Compression Compression
	// Modules maps module names to record types for ExportModuleData.
	Modules map[string][]string
	Admin   AdminAccount
}

// Service is the backup and restore surface used by the CLI and scheduler.
type Service struct {
	builder   *Builder
	validator *Validator
	engine    *Engine
	files     *Files
	modules   map[string][]string
}

// NewService wires the builder, validator, restore engine and file store.
func NewService(bdb *bun.DB, cat *catalog.Catalog, opts Options) *Service {
	admin := opts.Admin
	if admin.Type == "" {
		admin = DefaultAdminAccount()
	}
	return &Service{
		builder:   NewBuilder(bdb, cat),
		validator: NewValidator(bdb, cat),
		engine:    NewEngine(bdb, cat, admin),
		files:     NewFiles(opts.Dir, opts.Compression),
		modules:   opts.Modules,
	}
}

// CreateBackup snapshots the default record types.
func (s *Service) CreateBackup(ctx context.Context, includeAuditLog, includeUserSessions bool) (*Artifact, error) {
	return s.builder.Build(ctx, nil, BuildOptions{
		IncludeAuditLog:     includeAuditLog,
		IncludeUserSessions: includeUserSessions,
	})
}

// SaveBackupToFile writes art to the backup directory and returns its path.
func (s *Service) SaveBackupToFile(art *Artifact, filename string) (string, error) {
	return s.files.Save(art, filename)
}

// ListBackups lists artifact files, newest first.
func (s *Service) ListBackups() ([]FileInfo, error) {
	return s.files.List()
}

// PruneBackups keeps the newest keep files and deletes the rest.
func (s *Service) PruneBackups(keep int) ([]string, error) {
	return s.files.Prune(keep)
}

// LoadBackupFromFile reads an artifact. Errors wrap ErrFileNotFound,
// ErrDecompression or ErrMalformed.
func (s *Service) LoadBackupFromFile(path string) (*Artifact, error) {
	return s.files.Load(path)
}

// ValidateBackup checks art without touching the store.
func (s *Service) ValidateBackup(art *Artifact) ValidationResult {
	return s.validator.Validate(art)
}

// GetRestorePreview compares artifact and live record counts.
func (s *Service) GetRestorePreview(ctx context.Context, art *Artifact) (*Preview, error) {
	return s.validator.Preview(ctx, art)
}

// RestoreFromBackup applies art to the store.
func (s *Service) RestoreFromBackup(ctx context.Context, art *Artifact, opts RestoreOptions) (*RestoreResult, error) {
	return s.engine.Restore(ctx, art, opts)
}

// ExportModuleData serializes the record types of one configured module.
func (s *Service) ExportModuleData(ctx context.Context, module string) (*ModuleExport, error) {
	return s.builder.ExportModule(ctx, s.modules, module)
}
