// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

package backup

import (
	"context"
	"fmt"

	"github.com/riskledger/riskledger/internal/catalog"
	"github.com/riskledger/riskledger/util/mapst"
	"github.com/uptrace/bun"
)

// Validator checks artifacts against the catalog and previews restores.
type Validator struct {
	bdb *bun.DB
	cat *catalog.Catalog
}

// NewValidator returns a Validator. bdb is only used by Preview.
func NewValidator(bdb *bun.DB, cat *catalog.Catalog) *Validator {
	return &Validator{bdb: bdb, cat: cat}
}

// Validate runs every rule and reports all problems at once. Unknown record
// types are warnings so artifacts from newer builds still restore.
func (v *Validator) Validate(art *Artifact) ValidationResult {
	res := ValidationResult{Errors: []string{}, Warnings: []string{}}
	if art == nil {
		art = &Artifact{}
	}

	if art.Metadata == nil {
		res.Errors = append(res.Errors, "missing metadata section")
	} else if art.Metadata.versionNotString || art.Metadata.Version != SupportedVersion {
		res.Errors = append(res.Errors, fmt.Sprintf("unsupported backup version: %s", art.Metadata.Version))
	}

	if art.Data == nil {
		res.Errors = append(res.Errors, "missing or invalid data section")
	}

	for _, name := range art.TypeNames() {
		if _, ok := v.cat.Describe(name); !ok {
			res.Warnings = append(res.Warnings, fmt.Sprintf("entity class not found: %s", name))
		}
	}

	res.Valid = len(res.Errors) == 0
	return res
}

// Preview counts, per record type in the artifact, the records to restore
// and the rows currently stored. It never writes.
func (v *Validator) Preview(ctx context.Context, art *Artifact) (*Preview, error) {
	p := &Preview{Entities: map[string]EntityPreview{}}
	if art == nil {
		return p, nil
	}
	p.Metadata = art.Metadata
	for _, name := range art.TypeNames() {
		ep := EntityPreview{ToRestore: len(art.Data[name])}
		if d, ok := v.cat.Describe(name); ok {
			n, err := v.bdb.NewSelect().Model(d.New()).Count(ctx)
			if err != nil {
				return nil, fmt.Errorf("count %s: %w", name, err)
			}
			ep.Existing = n
		}
		p.Entities[name] = ep
	}
	p.TotalRecords = mapst.Reduce(p.Entities, func(_ string, ep EntityPreview, total int) int {
		return total + ep.ToRestore
	})
	return p, nil
}
