package db

import (
	"context"
	"testing"
)

func TestEnsureSchema_CreatesTablesIdempotently(t *testing.T) {
	WithTestStore(t, func(s *Store) {
		ctx := context.Background()
		var tables []string
		if err := QueryRawInto(ctx, s.BunDB(), &tables,
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name LIKE 'test_%' ORDER BY name"); err != nil {
			t.Fatalf("list tables: %v", err)
		}
		if len(tables) != 2 || tables[0] != "test_children" || tables[1] != "test_parents" {
			t.Fatalf("unexpected tables %v", tables)
		}

		if _, err := s.BunDB().NewInsert().Model(&testParent{Name: "p"}).Exec(ctx); err != nil {
			t.Fatalf("insert parent: %v", err)
		}
		if _, err := s.BunDB().NewInsert().Model(&testChild{ParentID: 1, Label: "c"}).Exec(ctx); err != nil {
			t.Fatalf("insert child: %v", err)
		}
	})
}
