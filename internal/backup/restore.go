// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/riskledger/riskledger/internal/catalog"
	"github.com/riskledger/riskledger/internal/db"
	"github.com/riskledger/riskledger/internal/logging"
	"github.com/riskledger/riskledger/internal/security"
	"github.com/riskledger/riskledger/util/slicest"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

// State is a step of the restore state machine.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateFailed     State = "failed"
	StatePreparing  State = "preparing"
	StateApplying   State = "applying"
	StateCommitted  State = "committed"
	StateRolledBack State = "rolled_back"
)

// AdminAccount locates the administrative account whose password a restore
// may reset: the first record of Type (by primary key) whose MatchField
// equals MatchValue.
type AdminAccount struct {
	Type          string
	MatchField    string
	MatchValue    string
	PasswordField string
}

// DefaultAdminAccount is the built-in administrator lookup.
func DefaultAdminAccount() AdminAccount {
	return AdminAccount{Type: "User", MatchField: "role", MatchValue: "admin", PasswordField: "password_hash"}
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeUpdated
	outcomeSkipped
)

// Engine replays artifacts into the store.
type Engine struct {
	bdb       *bun.DB
	cat       *catalog.Catalog
	validator *Validator
	admin     AdminAccount

	hashPassword func(pw []byte) ([]byte, error)
	// ping checks the session is still usable before commit.
	ping func(ctx context.Context, idb bun.IDB) error
}

// NewEngine returns a restore Engine writing through bdb.
func NewEngine(bdb *bun.DB, cat *catalog.Catalog, admin AdminAccount) *Engine {
	return &Engine{
		bdb:       bdb,
		cat:       cat,
		validator: NewValidator(bdb, cat),
		admin:     admin,
		hashPassword: func(pw []byte) ([]byte, error) {
			return bcrypt.GenerateFromPassword(pw, bcrypt.DefaultCost)
		},
		ping: db.Ping,
	}
}

// Restore validates art and applies it in one transaction. The returned
// error is non-nil exactly when the result is not successful. A dry run
// performs every write and then always rolls back.
func (e *Engine) Restore(ctx context.Context, art *Artifact, opts RestoreOptions) (*RestoreResult, error) {
	res := &RestoreResult{
		DryRun:     opts.DryRun,
		State:      StateIdle,
		Statistics: map[string]EntityCounts{},
	}

	strategy := opts.Strategy
	if strategy == "" {
		strategy = StrategyUpdate
	}
	if strategy != StrategyUpdate && strategy != StrategySkip {
		err := fmt.Errorf("%w: %q", ErrInvalidStrategy, opts.Strategy)
		return e.fail(res, StateFailed, err)
	}

	e.transition(res, StateValidating)
	vr := e.validator.Validate(art)
	res.Warnings = append(res.Warnings, vr.Warnings...)
	if !vr.Valid {
		res.Errors = append(res.Errors, vr.Errors...)
		return e.fail(res, StateFailed, fmt.Errorf("%w: %s", ErrValidation, strings.Join(vr.Errors, "; ")))
	}

	e.transition(res, StatePreparing)
	tx, err := db.BeginTx(ctx, e.bdb, nil)
	if err != nil {
		return e.fail(res, StateFailed, fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	applyErr := e.apply(ctx, tx, art, strategy, opts, res)
	if applyErr == nil {
		applyErr = e.ping(ctx, tx)
	}

	if opts.DryRun {
		_ = tx.Rollback()
		e.transition(res, StateRolledBack)
		if applyErr != nil {
			res.Errors = append(res.Errors, applyErr.Error())
		}
		res.Success = true
		return res, nil
	}

	if applyErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logging.Warnf("restore: rollback failed: %v", rbErr)
		}
		return e.fail(res, StateRolledBack, applyErr)
	}
	if err := tx.Commit(); err != nil {
		return e.fail(res, StateRolledBack, fmt.Errorf("%w: commit: %v", db.ErrTxAborted, err))
	}
	e.transition(res, StateCommitted)
	res.Success = true
	return res, nil
}

func (e *Engine) transition(res *RestoreResult, to State) {
	logging.Debugf("restore: %s -> %s", res.State, to)
	res.State = to
}

func (e *Engine) fail(res *RestoreResult, to State, err error) (*RestoreResult, error) {
	e.transition(res, to)
	res.Success = false
	res.Error = err.Error()
	logging.Errorf("restore failed: %v", err)
	return res, err
}

// apply runs the Preparing and Applying steps on tx.
func (e *Engine) apply(ctx context.Context, tx bun.Tx, art *Artifact, strategy Strategy, opts RestoreOptions, res *RestoreResult) error {
	names := slicest.Filter(art.TypeNames(), func(name string) bool {
		_, ok := e.cat.Describe(name)
		return ok
	})
	order := e.cat.DependencyOrder(names)

	if opts.ClearBeforeRestore {
		for _, name := range e.cat.ReverseDependencyOrder(names) {
			d, _ := e.cat.Describe(name)
			if _, err := db.ExecRaw(ctx, tx, "DELETE FROM ?", bun.Ident(d.Table)); err != nil {
				return fmt.Errorf("clear %s: %w", name, db.MapDBError(err))
			}
			logging.Debugf("restore: cleared %s", d.Table)
		}
	}

	e.transition(res, StateApplying)
	for _, name := range order {
		d, _ := e.cat.Describe(name)
		counts, err := e.applyType(ctx, tx, d, art.Data[name], strategy, res)
		res.Statistics[name] = counts
		if err != nil {
			return err
		}
		if err := e.resetSequence(ctx, tx, d); err != nil {
			return fmt.Errorf("reset sequence of %s: %w", d.Table, err)
		}
	}

	if !opts.AdminPassword.IsEmpty() {
		if err := e.setAdminPassword(ctx, tx, opts.AdminPassword, res); err != nil {
			return err
		}
	}
	return nil
}

// applyType writes the snapshots of one type. Per-record failures are
// counted and reported; only a transaction that can no longer be used stops
// the loop.
func (e *Engine) applyType(ctx context.Context, tx bun.Tx, d *catalog.Descriptor, snaps []Snapshot, strategy Strategy, res *RestoreResult) (EntityCounts, error) {
	var counts EntityCounts
	for i, snap := range snaps {
		out, err := e.applyRecord(ctx, tx, d, snap, strategy)
		if err != nil {
			if errors.Is(err, db.ErrTxAborted) {
				counts.Failed++
				return counts, err
			}
			counts.Failed++
			msg := fmt.Sprintf("%s[%d]: %v", d.Name, i, err)
			res.Errors = append(res.Errors, msg)
			logging.Warnf("restore: %s", msg)
			continue
		}
		switch out {
		case outcomeCreated:
			counts.Created++
		case outcomeUpdated:
			counts.Updated++
		case outcomeSkipped:
			counts.Skipped++
		}
	}
	return counts, nil
}

func (e *Engine) applyRecord(ctx context.Context, tx bun.Tx, d *catalog.Descriptor, snap Snapshot, strategy Strategy) (outcome, error) {
	var out outcome
	err := db.WithSavepoint(ctx, tx, func(ctx context.Context) error {
		rec := d.New()
		exists, err := e.exists(ctx, tx, d, rec, snap)
		if err != nil {
			return err
		}
		if exists && strategy == StrategySkip {
			out = outcomeSkipped
			return nil
		}

		cols, err := hydrate(d, rec, snap)
		if err != nil {
			return err
		}

		if exists {
			out = outcomeUpdated
			if len(cols) == 0 {
				return nil
			}
			_, err = tx.NewUpdate().Model(rec).Column(cols...).WherePK().Exec(ctx)
			return db.MapDBError(err)
		}
		out = outcomeCreated
		_, err = tx.NewInsert().Model(rec).Exec(ctx)
		return db.MapDBError(err)
	})
	return out, err
}

// exists reports whether a live row has the snapshot's primary key. The key
// values are written into rec. A snapshot without a complete key never
// exists.
func (e *Engine) exists(ctx context.Context, tx bun.Tx, d *catalog.Descriptor, rec any, snap Snapshot) (bool, error) {
	if len(d.PrimaryKeys) == 0 {
		return false, nil
	}
	for _, pk := range d.PrimaryKeys {
		v, ok := snap[pk]
		if !ok || v == nil || v == security.RedactedMarker {
			return false, nil
		}
		if err := d.Set(rec, pk, v); err != nil {
			return false, err
		}
	}
	return tx.NewSelect().Model(rec).WherePK().Exists(ctx)
}

// hydrate writes the non-key columns of snap into rec and returns their
// names. Redacted values and columns unknown to d are skipped.
func hydrate(d *catalog.Descriptor, rec any, snap Snapshot) ([]string, error) {
	var cols []string
	for _, col := range d.ScalarFields {
		v, ok := snap[col]
		if !ok || v == security.RedactedMarker {
			continue
		}
		if err := d.Set(rec, col, v); err != nil {
			return nil, err
		}
		if fi, _ := d.FieldType(col); !fi.PrimaryKey {
			cols = append(cols, col)
		}
	}
	return cols, nil
}

func (e *Engine) resetSequence(ctx context.Context, tx bun.Tx, d *catalog.Descriptor) error {
	if len(d.PrimaryKeys) != 1 {
		return nil
	}
	fi, _ := d.FieldType(d.PrimaryKeys[0])
	if !fi.AutoIncrement {
		return nil
	}
	return db.ResetSequence(ctx, tx, d.Table, fi.Name)
}

// setAdminPassword stores a bcrypt hash of pw on the administrative
// account. A missing account is a warning, not a failure.
func (e *Engine) setAdminPassword(ctx context.Context, tx bun.Tx, pw security.Secret, res *RestoreResult) error {
	a := e.admin
	d, ok := e.cat.Describe(a.Type)
	if !ok {
		res.Warnings = append(res.Warnings, fmt.Sprintf("admin account type not found: %s", a.Type))
		return nil
	}
	for _, col := range []string{a.MatchField, a.PasswordField} {
		if _, ok := d.FieldType(col); !ok {
			res.Warnings = append(res.Warnings, fmt.Sprintf("admin account field not found: %s.%s", a.Type, col))
			return nil
		}
	}

	rec := d.New()
	q := tx.NewSelect().Model(rec).Where("? = ?", bun.Ident(a.MatchField), a.MatchValue).Limit(1)
	for _, pk := range d.PrimaryKeys {
		q = q.OrderExpr("? ASC", bun.Ident(pk))
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			res.Warnings = append(res.Warnings, "administrative account not found; password not changed")
			return nil
		}
		return fmt.Errorf("find admin account: %w", err)
	}

	var hash []byte
	if err := pw.Use(func(b []byte) error {
		var err error
		hash, err = e.hashPassword(b)
		return err
	}); err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if err := d.Set(rec, a.PasswordField, string(hash)); err != nil {
		return err
	}
	if _, err := tx.NewUpdate().Model(rec).Column(a.PasswordField).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("update admin password: %w", db.MapDBError(err))
	}
	logging.Infof("restore: administrator password reset")
	return nil
}
