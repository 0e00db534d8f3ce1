package backup

import (
	"context"
	"testing"

	"github.com/riskledger/riskledger/internal/catalog"
	"github.com/riskledger/riskledger/internal/db"
	"github.com/riskledger/riskledger/internal/model"
	"github.com/riskledger/riskledger/internal/testutil"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type widget struct {
	bun.BaseModel `bun:"table:widgets"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,notnull"`
}

func widgetEntry() catalog.Entry {
	return catalog.Entry{Name: "Widget", Model: func() any { return &widget{} }}
}

type testEnv struct {
	store *db.Store
	bdb   *bun.DB
	cat   *catalog.Catalog
}

// newEnv opens an in-memory store with the given record types and their
// tables. Without entries it registers the application models.
func newEnv(t *testing.T, entries ...catalog.Entry) *testEnv {
	t.Helper()
	return openEnv(t, testutil.MemoryDSN(t), entries...)
}

func openEnv(t *testing.T, dsn string, entries ...catalog.Entry) *testEnv {
	t.Helper()
	s, err := db.NewStoreFromDSN(db.TypeSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	reg := catalog.NewRegistry()
	if len(entries) == 0 {
		require.NoError(t, model.Register(reg))
	} else {
		reg.MustRegister(entries...)
	}
	cat, err := catalog.New(reg, s.BunDB())
	require.NoError(t, err)
	require.NoError(t, db.EnsureSchema(context.Background(), s.BunDB(), cat))
	return &testEnv{store: s, bdb: s.BunDB(), cat: cat}
}

func (e *testEnv) insert(t *testing.T, records ...any) {
	t.Helper()
	for _, r := range records {
		_, err := e.bdb.NewInsert().Model(r).Exec(context.Background())
		require.NoError(t, err)
	}
}

func (e *testEnv) count(t *testing.T, model any) int {
	t.Helper()
	n, err := e.bdb.NewSelect().Model(model).Count(context.Background())
	require.NoError(t, err)
	return n
}

func (e *testEnv) service(t *testing.T) *Service {
	t.Helper()
	return NewService(e.bdb, e.cat, Options{
		Dir:         t.TempDir(),
		Compression: CompressionGzip,
		Modules:     model.DefaultModules(),
	})
}

func widgetArtifact(rows ...Snapshot) *Artifact {
	return &Artifact{
		Metadata: &Metadata{Version: SupportedVersion},
		Data:     map[string][]Snapshot{"Widget": rows},
	}
}

func ptr[T any](v T) *T { return &v }
