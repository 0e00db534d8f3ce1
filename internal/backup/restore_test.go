package backup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riskledger/riskledger/internal/db"
	"github.com/riskledger/riskledger/internal/model"
	"github.com/riskledger/riskledger/internal/security"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

func getWidget(t *testing.T, env *testEnv, id int64) *widget {
	t.Helper()
	w := &widget{ID: id}
	require.NoError(t, env.bdb.NewSelect().Model(w).WherePK().Scan(context.Background()))
	return w
}

func TestRestore_WidgetCreateThenSkip(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, widgetEntry())
	engine := NewEngine(env.bdb, env.cat, DefaultAdminAccount())
	v := NewValidator(env.bdb, env.cat)

	art := widgetArtifact(Snapshot{"id": 1, "name": "A"})
	res, err := engine.Restore(ctx, art, RestoreOptions{Strategy: StrategyUpdate})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, StateCommitted, res.State)
	require.Equal(t, map[string]EntityCounts{"Widget": {Created: 1}}, res.Statistics)

	p, err := v.Preview(ctx, art)
	require.NoError(t, err)
	require.Equal(t, 1, p.Entities["Widget"].Existing)

	// Hand-edited artifact restored with skip never overwrites.
	art.Data["Widget"][0]["name"] = "B"
	res, err = engine.Restore(ctx, art, RestoreOptions{Strategy: StrategySkip})
	require.NoError(t, err)
	require.Equal(t, map[string]EntityCounts{"Widget": {Skipped: 1}}, res.Statistics)
	require.Equal(t, "A", getWidget(t, env, 1).Name)
}

func TestRestore_SkipVersusUpdate(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, widgetEntry())
	env.insert(t, &widget{ID: 5, Name: "live"})
	engine := NewEngine(env.bdb, env.cat, DefaultAdminAccount())
	art := widgetArtifact(Snapshot{"id": 5, "name": "from-backup"})

	res, err := engine.Restore(ctx, art, RestoreOptions{Strategy: StrategySkip})
	require.NoError(t, err)
	require.Equal(t, EntityCounts{Skipped: 1}, res.Statistics["Widget"])
	require.Equal(t, "live", getWidget(t, env, 5).Name)

	// The zero strategy means update.
	res, err = engine.Restore(ctx, art, RestoreOptions{})
	require.NoError(t, err)
	require.Equal(t, EntityCounts{Updated: 1}, res.Statistics["Widget"])
	require.Equal(t, "from-backup", getWidget(t, env, 5).Name)
}

func TestRestore_DryRunLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, widgetEntry())
	env.insert(t, &widget{ID: 1, Name: "keep"})
	engine := NewEngine(env.bdb, env.cat, DefaultAdminAccount())
	v := NewValidator(env.bdb, env.cat)

	art := widgetArtifact(Snapshot{"id": 1, "name": "changed"}, Snapshot{"id": 2, "name": "new"})
	before, err := v.Preview(ctx, art)
	require.NoError(t, err)

	for _, opts := range []RestoreOptions{
		{DryRun: true},
		{DryRun: true, Strategy: StrategySkip},
		{DryRun: true, ClearBeforeRestore: true},
	} {
		res, err := engine.Restore(ctx, art, opts)
		require.NoError(t, err)
		require.True(t, res.Success)
		require.True(t, res.DryRun)
		require.Equal(t, StateRolledBack, res.State)

		after, err := v.Preview(ctx, art)
		require.NoError(t, err)
		require.Equal(t, before.Entities, after.Entities)
	}
	require.Equal(t, "keep", getWidget(t, env, 1).Name)

	res, err := engine.Restore(ctx, art, RestoreOptions{DryRun: true})
	require.NoError(t, err)
	require.Equal(t, EntityCounts{Created: 1, Updated: 1}, res.Statistics["Widget"])
}

func TestRestore_ClearBeforeRestore(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, widgetEntry())
	env.insert(t, &widget{ID: 10, Name: "stale"}, &widget{ID: 11, Name: "stale"})
	engine := NewEngine(env.bdb, env.cat, DefaultAdminAccount())

	res, err := engine.Restore(ctx, widgetArtifact(Snapshot{"id": 1, "name": "A"}), RestoreOptions{ClearBeforeRestore: true})
	require.NoError(t, err)
	require.Equal(t, EntityCounts{Created: 1}, res.Statistics["Widget"])
	require.Equal(t, 1, env.count(t, (*widget)(nil)))
}

func TestRestore_PerRecordFailuresDoNotAbort(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	engine := NewEngine(env.bdb, env.cat, DefaultAdminAccount())

	art := &Artifact{
		Metadata: &Metadata{Version: SupportedVersion},
		Data: map[string][]Snapshot{
			model.TypeUser: {
				{"id": 1, "username": "alice", "email": "a@example.com", "role": "admin"},
				// Duplicate username violates the unique constraint.
				{"id": 2, "username": "alice", "email": "dup@example.com", "role": "viewer"},
				// Not an integer.
				{"id": "three", "username": "carol", "email": "c@example.com", "role": "viewer"},
				{"id": 4, "username": "dave", "email": "d@example.com", "role": "viewer"},
			},
		},
	}
	res, err := engine.Restore(ctx, art, RestoreOptions{})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, EntityCounts{Created: 2, Failed: 2}, res.Statistics[model.TypeUser])
	require.Len(t, res.Errors, 2)
	require.Equal(t, 2, env.count(t, (*model.User)(nil)))
}

func TestRestore_ValidationFailureOpensNoTransaction(t *testing.T) {
	env := newEnv(t, widgetEntry())
	engine := NewEngine(env.bdb, env.cat, DefaultAdminAccount())

	res, err := engine.Restore(context.Background(), &Artifact{Metadata: &Metadata{Version: "2.0"}}, RestoreOptions{})
	require.ErrorIs(t, err, ErrValidation)
	require.False(t, res.Success)
	require.Equal(t, StateFailed, res.State)
	require.Contains(t, res.Errors, "unsupported backup version: 2.0")
	require.Contains(t, res.Errors, "missing or invalid data section")
	require.NotEmpty(t, res.Error)

	_, err = engine.Restore(context.Background(), widgetArtifact(), RestoreOptions{Strategy: "merge"})
	require.ErrorIs(t, err, ErrInvalidStrategy)
}

func TestRestore_UnknownTypesAreWarnedAndIgnored(t *testing.T) {
	env := newEnv(t, widgetEntry())
	art := widgetArtifact(Snapshot{"id": 1, "name": "A"})
	art.Data["Gizmo"] = []Snapshot{{"id": 1}}

	res, err := NewEngine(env.bdb, env.cat, DefaultAdminAccount()).Restore(context.Background(), art, RestoreOptions{})
	require.NoError(t, err)
	require.Contains(t, res.Warnings, "entity class not found: Gizmo")
	require.NotContains(t, res.Statistics, "Gizmo")
}

func seedUsers(t *testing.T, env *testEnv) {
	t.Helper()
	env.insert(t,
		&model.User{ID: 1, Username: "root", Email: "root@example.com", Role: model.RoleAdmin, PasswordHash: "old-hash", IsActive: true, CreatedAt: time.Now().UTC()},
		&model.User{ID: 2, Username: "vera", Email: "vera@example.com", Role: model.RoleViewer, PasswordHash: "vera-hash", IsActive: true, CreatedAt: time.Now().UTC()},
	)
}

func loadUser(t *testing.T, env *testEnv, id int64) *model.User {
	t.Helper()
	u := &model.User{ID: id}
	require.NoError(t, env.bdb.NewSelect().Model(u).WherePK().Scan(context.Background()))
	return u
}

func TestRestore_RedactedValuesAreNeverWritten(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	seedUsers(t, env)
	svc := env.service(t)

	art, err := svc.CreateBackup(ctx, false, false)
	require.NoError(t, err)
	require.Equal(t, security.RedactedMarker, art.Data[model.TypeUser][0]["password_hash"])

	art.Data[model.TypeUser][0]["email"] = "root@new.example.com"
	res, err := svc.RestoreFromBackup(ctx, art, RestoreOptions{})
	require.NoError(t, err)
	require.Equal(t, EntityCounts{Updated: 2}, res.Statistics[model.TypeUser])

	root := loadUser(t, env, 1)
	require.Equal(t, "root@new.example.com", root.Email)
	require.Equal(t, "old-hash", root.PasswordHash)
}

func TestRestore_AdminPasswordOverride(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	seedUsers(t, env)
	engine := NewEngine(env.bdb, env.cat, DefaultAdminAccount())
	engine.hashPassword = func(pw []byte) ([]byte, error) {
		return bcrypt.GenerateFromPassword(pw, bcrypt.MinCost)
	}

	art := &Artifact{Metadata: &Metadata{Version: SupportedVersion}, Data: map[string][]Snapshot{}}
	res, err := engine.Restore(ctx, art, RestoreOptions{AdminPassword: security.FromString("n3w-Secret")})
	require.NoError(t, err)
	require.True(t, res.Success)

	root := loadUser(t, env, 1)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(root.PasswordHash), []byte("n3w-Secret")))
	require.Equal(t, "vera-hash", loadUser(t, env, 2).PasswordHash)
}

func TestRestore_AdminMissingIsWarning(t *testing.T) {
	env := newEnv(t)
	engine := NewEngine(env.bdb, env.cat, DefaultAdminAccount())
	art := &Artifact{Metadata: &Metadata{Version: SupportedVersion}, Data: map[string][]Snapshot{}}

	res, err := engine.Restore(context.Background(), art, RestoreOptions{AdminPassword: security.FromString("pw")})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Contains(t, res.Warnings, "administrative account not found; password not changed")
}

func TestRestore_FatalErrorRollsBackEverything(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	seedUsers(t, env)
	engine := NewEngine(env.bdb, env.cat, DefaultAdminAccount())
	boom := errors.New("hasher unavailable")
	engine.hashPassword = func([]byte) ([]byte, error) { return nil, boom }

	art := &Artifact{
		Metadata: &Metadata{Version: SupportedVersion},
		Data: map[string][]Snapshot{
			model.TypeSetting: {{"key": "theme", "value": "dark", "updated_at": "2026-01-01T00:00:00Z"}},
		},
	}
	res, err := engine.Restore(ctx, art, RestoreOptions{AdminPassword: security.FromString("pw")})
	require.ErrorIs(t, err, boom)
	require.False(t, res.Success)
	require.Equal(t, StateRolledBack, res.State)
	require.Equal(t, 0, env.count(t, (*model.Setting)(nil)))
}

func TestRestore_UnusableSessionIsNotCommitted(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, widgetEntry())
	engine := NewEngine(env.bdb, env.cat, DefaultAdminAccount())
	// The session dies after every record was applied.
	engine.ping = func(ctx context.Context, idb bun.IDB) error {
		tx, ok := idb.(bun.Tx)
		require.True(t, ok)
		require.NoError(t, tx.Rollback())
		return db.Ping(ctx, idb)
	}

	res, err := engine.Restore(ctx, widgetArtifact(Snapshot{"id": 1, "name": "A"}, Snapshot{"id": 2, "name": "B"}), RestoreOptions{})
	require.ErrorIs(t, err, db.ErrTxAborted)
	require.False(t, res.Success)
	require.Equal(t, StateRolledBack, res.State)
	require.NotEmpty(t, res.Error)
	require.Equal(t, 0, env.count(t, (*widget)(nil)))
}

func TestRestore_DependencyOrderWithRelations(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	engine := NewEngine(env.bdb, env.cat, DefaultAdminAccount())

	art := &Artifact{
		Metadata: &Metadata{Version: SupportedVersion},
		Data: map[string][]Snapshot{
			model.TypeRiskControl: {{"risk_id": 1, "control_id": 1, "notes": "primary"}},
			model.TypeRisk:        {{"id": 1, "title": "Phishing", "asset_id": 1, "identified_at": "2026-01-01T00:00:00Z"}},
			model.TypeControl:     {{"id": 1, "code": "A.6.3", "name": "Awareness training"}},
			model.TypeAsset:       {{"id": 1, "name": "Mailboxes", "created_at": "2026-01-01T00:00:00Z"}},
		},
	}
	_, err := env.bdb.ExecContext(ctx, "PRAGMA foreign_keys = ON")
	require.NoError(t, err)

	res, err := engine.Restore(ctx, art, RestoreOptions{})
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	for _, name := range []string{model.TypeAsset, model.TypeRisk, model.TypeControl, model.TypeRiskControl} {
		require.Equal(t, EntityCounts{Created: 1}, res.Statistics[name], name)
	}

	res, err = engine.Restore(ctx, art, RestoreOptions{ClearBeforeRestore: true})
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	require.Equal(t, EntityCounts{Created: 1}, res.Statistics[model.TypeRiskControl])
}
