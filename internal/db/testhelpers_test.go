package db

import (
	"context"
	"testing"

	"github.com/riskledger/riskledger/internal/catalog"
	"github.com/riskledger/riskledger/internal/testutil"
	"github.com/uptrace/bun"
)

type testParent struct {
	bun.BaseModel `bun:"table:test_parents"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,notnull"`
}

type testChild struct {
	bun.BaseModel `bun:"table:test_children"`

	ID       int64       `bun:"id,pk,autoincrement"`
	ParentID int64       `bun:"parent_id,notnull"`
	Label    string      `bun:"label"`
	Parent   *testParent `bun:"rel:belongs-to,join:parent_id=id"`
}

// WithTestStore opens an in-memory sqlite Store with the test tables created
// for the duration of fn.
func WithTestStore(t *testing.T, fn func(s *Store)) {
	t.Helper()

	s, err := NewStoreFromDSN(TypeSQLite, testutil.MemoryDSN(t))
	if err != nil {
		t.Fatalf("NewStoreFromDSN failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	reg := catalog.NewRegistry()
	reg.MustRegister(
		catalog.Entry{Name: "Child", Model: func() any { return &testChild{} }},
		catalog.Entry{Name: "Parent", Model: func() any { return &testParent{} }},
	)
	cat, err := catalog.New(reg, s.BunDB())
	if err != nil {
		t.Fatalf("catalog.New failed: %v", err)
	}
	if err := EnsureSchema(context.Background(), s.BunDB(), cat); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	fn(s)
}

func countRows(t *testing.T, s *Store, model any) int {
	t.Helper()
	n, err := s.BunDB().NewSelect().Model(model).Count(context.Background())
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return n
}
