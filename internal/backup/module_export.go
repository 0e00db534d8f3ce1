// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

package backup

import (
	"context"
	"fmt"
)

// ExportModule serializes the record types of one functional module. The
// result has no metadata and cannot be restored through Restore.
func (b *Builder) ExportModule(ctx context.Context, modules map[string][]string, module string) (*ModuleExport, error) {
	types, ok := modules[module]
	if !ok {
		return &ModuleExport{Module: module}, fmt.Errorf("%w: %s", ErrUnknownModule, module)
	}
	data, stats, err := b.collect(ctx, types)
	if err != nil {
		return &ModuleExport{Module: module}, err
	}
	return &ModuleExport{
		Success: true,
		Module:  module,
		Data:    data,
		Count:   stats.TotalRecords,
		Errors:  stats.Errors,
	}, nil
}
