// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

package backup

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/riskledger/riskledger/buildvars"
	"github.com/riskledger/riskledger/internal/catalog"
	"github.com/riskledger/riskledger/internal/db"
	"github.com/riskledger/riskledger/internal/logging"
	"github.com/riskledger/riskledger/util/slicest"
	"github.com/uptrace/bun"
)

// ApplicationName is written into generator_info.
const ApplicationName = "riskledger"

// BuildOptions select which record types a backup contains.
type BuildOptions struct {
	// IncludeAuditLog keeps the audit-history type in the default type list.
	IncludeAuditLog bool
	// IncludeUserSessions adds the session type to the default type list.
	IncludeUserSessions bool
}

// Builder loads record types from the store and assembles artifacts.
type Builder struct {
	bdb *bun.DB
	cat *catalog.Catalog

	now      func() time.Time
	newID    func() string
	hostname func() (string, error)
}

// NewBuilder returns a Builder reading through bdb.
func NewBuilder(bdb *bun.DB, cat *catalog.Catalog) *Builder {
	return &Builder{
		bdb:      bdb,
		cat:      cat,
		now:      time.Now,
		newID:    uuid.NewString,
		hostname: os.Hostname,
	}
}

// DefaultTypes returns every registered type, minus the audit history when
// IncludeAuditLog is false and minus sessions unless IncludeUserSessions.
func (b *Builder) DefaultTypes(opts BuildOptions) []string {
	return slicest.Filter(b.cat.Names(), func(name string) bool {
		d, _ := b.cat.Describe(name)
		switch d.Kind {
		case catalog.KindAuditHistory:
			return opts.IncludeAuditLog
		case catalog.KindSession:
			return opts.IncludeUserSessions
		}
		return true
	})
}

// Build snapshots types (or DefaultTypes when types is nil). A type that
// cannot be loaded or serialized is left out of data and its error is
// recorded in statistics.errors; the build itself carries on.
func (b *Builder) Build(ctx context.Context, types []string, opts BuildOptions) (*Artifact, error) {
	if types == nil {
		types = b.DefaultTypes(opts)
	}
	data, stats, err := b.collect(ctx, types)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Metadata:   b.metadata(),
		Data:       data,
		Statistics: stats,
	}, nil
}

// collect loads each type inside its own savepoint of one read transaction
// so every type sees the same data and one failing query does not poison
// the rest.
func (b *Builder) collect(ctx context.Context, types []string) (map[string][]Snapshot, *Statistics, error) {
	data := make(map[string][]Snapshot, len(types))
	stats := &Statistics{Entities: map[string]int{}, Errors: map[string]string{}}

	err := db.WithTx(ctx, b.bdb, func(ctx context.Context, tx bun.Tx) error {
		for _, name := range types {
			d, ok := b.cat.Describe(name)
			if !ok {
				stats.Errors[name] = "entity class not found: " + name
				logging.Warnf("backup: skipping unknown record type %s", name)
				continue
			}
			var snaps []Snapshot
			err := db.WithSavepoint(ctx, tx, func(ctx context.Context) error {
				var err error
				snaps, err = b.loadType(ctx, tx, d)
				return err
			})
			if errors.Is(err, db.ErrTxAborted) {
				return err
			}
			if err != nil {
				stats.Errors[name] = err.Error()
				logging.Warnf("backup: skipping %s: %v", name, err)
				continue
			}
			data[name] = snaps
			stats.Entities[name] = len(snaps)
			stats.TotalRecords += len(snaps)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	stats.TotalEntities = len(data)
	if len(stats.Errors) == 0 {
		stats.Errors = nil
	}
	return data, stats, nil
}

// loadType reads every row of d ordered by primary key and serializes it.
func (b *Builder) loadType(ctx context.Context, tx bun.Tx, d *catalog.Descriptor) ([]Snapshot, error) {
	slice := d.NewSlice()
	q := tx.NewSelect().Model(slice)
	for _, pk := range d.PrimaryKeys {
		q = q.OrderExpr("? ASC", bun.Ident(pk))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	records := d.Records(slice)
	snaps := make([]Snapshot, 0, len(records))
	for _, rec := range records {
		snap, err := serializeWith(d, rec, d.ScalarFields)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func (b *Builder) metadata() *Metadata {
	host, err := b.hostname()
	if err != nil {
		host = ""
	}
	return &Metadata{
		Version:   SupportedVersion,
		CreatedAt: b.now().UTC(),
		GeneratorInfo: GeneratorInfo{
			Application: ApplicationName,
			AppVersion:  buildvars.VersionOrDefault("dev"),
			BackupID:    b.newID(),
			Dialect:     b.bdb.Dialect().Name().String(),
			Hostname:    host,
		},
	}
}
