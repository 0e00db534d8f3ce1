package catalog

import (
	"database/sql"
	"encoding/json"
	"math/big"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"
)

type widget struct {
	bun.BaseModel `bun:"table:widgets"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,notnull"`
}

type owner struct {
	bun.BaseModel `bun:"table:owners"`

	ID     int64     `bun:"id,pk,autoincrement"`
	Name   string    `bun:"name"`
	Gadget []*gadget `bun:"rel:has-many,join:id=owner_id"`
}

type gadget struct {
	bun.BaseModel `bun:"table:gadgets"`

	ID       int64             `bun:"id,pk,autoincrement"`
	OwnerID  *int64            `bun:"owner_id,nullzero"`
	Owner    *owner            `bun:"rel:belongs-to,join:owner_id=id"`
	Serial   string            `bun:"serial"`
	Price    float64           `bun:"price"`
	Count    uint32            `bun:"count"`
	Active   bool              `bun:"active"`
	Seen     time.Time         `bun:"seen"`
	Retired  *time.Time        `bun:"retired"`
	Note     sql.NullString    `bun:"note"`
	Checked  sql.NullTime      `bun:"checked"`
	Blob     []byte            `bun:"blob"`
	Weight   *big.Float        `bun:"weight,type:text"`
	Labels   map[string]string `bun:"labels,type:text"`
	Tags     []string          `bun:"tags,type:text"`
	Password string            `bun:"password"`
}

// node references itself and its pair references it back, forming a cycle.
type node struct {
	bun.BaseModel `bun:"table:nodes"`

	ID     int64  `bun:"id,pk"`
	PairID *int64 `bun:"pair_id"`
	Pair   *pair  `bun:"rel:belongs-to,join:pair_id=id"`
}

type pair struct {
	bun.BaseModel `bun:"table:pairs"`

	ID     int64  `bun:"id,pk"`
	NodeID *int64 `bun:"node_id"`
	Node   *node  `bun:"rel:belongs-to,join:node_id=id"`
}

func newTestBun(t *testing.T) *bun.DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	bdb := bun.NewDB(sqlDB, sqlitedialect.New())
	t.Cleanup(func() { _ = bdb.Close() })
	return bdb
}

func newTestCatalog(t *testing.T, entries ...Entry) *Catalog {
	t.Helper()
	reg := NewRegistry()
	reg.MustRegister(entries...)
	c, err := New(reg, newTestBun(t))
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return c
}

func TestRegistry_RejectsInvalidEntries(t *testing.T) {
	reg := NewRegistry()
	cases := []Entry{
		{Name: "", Model: func() any { return &widget{} }},
		{Name: "NoFactory"},
		{Name: "NotPointer", Model: func() any { return widget{} }},
		{Name: "NotStruct", Model: func() any { s := "x"; return &s }},
	}
	for _, e := range cases {
		if err := reg.Register(e); err == nil {
			t.Fatalf("expected error registering %q", e.Name)
		}
	}
	if err := reg.Register(Entry{Name: "Widget", Model: func() any { return &widget{} }}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(Entry{Name: "Widget", Model: func() any { return &widget{} }}); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if got := reg.Names(); !reflect.DeepEqual(got, []string{"Widget"}) {
		t.Fatalf("unexpected names %v", got)
	}
}

func TestDescribe_Widget(t *testing.T) {
	c := newTestCatalog(t, Entry{Name: "Widget", Model: func() any { return &widget{} }})

	d, ok := c.Describe("Widget")
	if !ok {
		t.Fatalf("expected Widget to be described")
	}
	if d.Table != "widgets" {
		t.Fatalf("unexpected table %q", d.Table)
	}
	if !reflect.DeepEqual(d.ScalarFields, []string{"id", "name"}) {
		t.Fatalf("unexpected scalar fields %v", d.ScalarFields)
	}
	if !reflect.DeepEqual(d.PrimaryKeys, []string{"id"}) {
		t.Fatalf("unexpected primary keys %v", d.PrimaryKeys)
	}
	fi, ok := d.FieldType("id")
	if !ok || fi.Type != TagInt || !fi.PrimaryKey || !fi.AutoIncrement {
		t.Fatalf("unexpected id field info %+v", fi)
	}
	if _, ok := d.FieldType("missing"); ok {
		t.Fatalf("expected unknown column to be absent")
	}
	if _, ok := c.Describe("Nope"); ok {
		t.Fatalf("unknown type must not be described")
	}
	if name, ok := c.NameOf(&widget{}); !ok || name != "Widget" {
		t.Fatalf("NameOf returned %q, %v", name, ok)
	}
}

func TestDescribe_RelationsAndTags(t *testing.T) {
	c := newTestCatalog(t,
		Entry{Name: "Gadget", Model: func() any { return &gadget{} }},
		Entry{Name: "Owner", Model: func() any { return &owner{} }},
	)
	g, _ := c.Describe("Gadget")
	if !reflect.DeepEqual(g.RelationFields, []string{"Owner"}) {
		t.Fatalf("unexpected relation fields %v", g.RelationFields)
	}
	for _, f := range g.ScalarFields {
		if f == "Owner" || f == "owner" {
			t.Fatalf("relation leaked into scalar fields: %v", g.ScalarFields)
		}
	}
	want := map[string]TypeTag{
		"serial":  TagString,
		"price":   TagFloat,
		"count":   TagUint,
		"active":  TagBool,
		"seen":    TagTime,
		"retired": TagTime,
		"note":    TagString,
		"checked": TagTime,
		"blob":    TagBytes,
		"weight":  TagDecimal,
		"labels":  TagJSON,
		"tags":    TagJSON,
	}
	for col, tag := range want {
		fi, ok := g.FieldType(col)
		if !ok {
			t.Fatalf("missing column %s", col)
		}
		if fi.Type != tag {
			t.Errorf("column %s: expected %s, got %s", col, tag, fi.Type)
		}
	}
	if fi, _ := g.FieldType("owner_id"); !fi.Nullable {
		t.Errorf("expected owner_id to be nullable")
	}
}

func TestDependencyOrder(t *testing.T) {
	c := newTestCatalog(t,
		Entry{Name: "Gadget", Model: func() any { return &gadget{} }},
		Entry{Name: "Widget", Model: func() any { return &widget{} }},
		Entry{Name: "Owner", Model: func() any { return &owner{} }},
	)
	if deps := c.Dependencies("Gadget"); !reflect.DeepEqual(deps, []string{"Owner"}) {
		t.Fatalf("unexpected Gadget deps %v", deps)
	}
	got := c.DependencyOrder([]string{"Gadget", "Widget", "Owner", "Unknown"})
	want := []string{"Widget", "Owner", "Gadget", "Unknown"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("DependencyOrder = %v, want %v", got, want)
	}
	rev := c.ReverseDependencyOrder([]string{"Gadget", "Owner", "Unknown"})
	if !reflect.DeepEqual(rev, []string{"Gadget", "Owner"}) {
		t.Fatalf("ReverseDependencyOrder = %v", rev)
	}
}

func TestDependencyOrder_CycleFallsBackToRegistration(t *testing.T) {
	c := newTestCatalog(t,
		Entry{Name: "Node", Model: func() any { return &node{} }},
		Entry{Name: "Pair", Model: func() any { return &pair{} }},
	)
	got := c.DependencyOrder([]string{"Pair", "Node"})
	if !reflect.DeepEqual(got, []string{"Node", "Pair"}) {
		t.Fatalf("expected registration order for cycle, got %v", got)
	}
}

func TestSet_InverseOfNormalizedValues(t *testing.T) {
	c := newTestCatalog(t,
		Entry{Name: "Gadget", Model: func() any { return &gadget{} }},
		Entry{Name: "Owner", Model: func() any { return &owner{} }},
	)
	d, _ := c.Describe("Gadget")
	g := d.New().(*gadget)

	values := map[string]any{
		"id":       json.Number("42"),
		"owner_id": json.Number("7"),
		"serial":   "SN-1",
		"price":    json.Number("9.5"),
		"count":    json.Number("3"),
		"active":   true,
		"seen":     "2026-01-02T03:04:05.123456789Z",
		"retired":  nil,
		"note":     "hello",
		"checked":  "2026-02-03T00:00:00Z",
		"blob":     "AQID",
		"weight":   "1.25",
		"labels":   `{"a":"b"}`,
		"tags":     `["x","y"]`,
	}
	for col, v := range values {
		if err := d.Set(g, col, v); err != nil {
			t.Fatalf("Set(%s): %v", col, err)
		}
	}

	if g.ID != 42 || g.OwnerID == nil || *g.OwnerID != 7 || g.Serial != "SN-1" || g.Price != 9.5 || g.Count != 3 || !g.Active {
		t.Fatalf("scalar fields not hydrated: %+v", g)
	}
	wantSeen := time.Date(2026, 1, 2, 3, 4, 5, 123456789, time.UTC)
	if !g.Seen.Equal(wantSeen) {
		t.Fatalf("unexpected seen %v", g.Seen)
	}
	if g.Retired != nil {
		t.Fatalf("expected nil retired")
	}
	if !g.Note.Valid || g.Note.String != "hello" {
		t.Fatalf("unexpected note %+v", g.Note)
	}
	if !g.Checked.Valid || g.Checked.Time.Month() != time.February {
		t.Fatalf("unexpected checked %+v", g.Checked)
	}
	if string(g.Blob) != "\x01\x02\x03" {
		t.Fatalf("unexpected blob %v", g.Blob)
	}
	if g.Weight == nil || g.Weight.String() != "1.25" {
		t.Fatalf("unexpected weight %v", g.Weight)
	}
	if g.Labels["a"] != "b" || len(g.Tags) != 2 || g.Tags[1] != "y" {
		t.Fatalf("unexpected composite values %v %v", g.Labels, g.Tags)
	}
}

func TestSet_Errors(t *testing.T) {
	c := newTestCatalog(t, Entry{Name: "Widget", Model: func() any { return &widget{} }})
	d, _ := c.Describe("Widget")

	if err := d.Set(&widget{}, "missing", 1); err == nil {
		t.Fatalf("expected unknown column error")
	}
	if err := d.Set(widget{}, "id", 1); err == nil {
		t.Fatalf("expected non-pointer record error")
	}
	if err := d.Set(&gadget{}, "id", 1); err == nil {
		t.Fatalf("expected wrong type error")
	}
	err := d.Set(&widget{}, "id", "not-a-number")
	if err == nil || !strings.Contains(err.Error(), "Widget.id") {
		t.Fatalf("expected conversion error naming the column, got %v", err)
	}
	if err := d.Set(&widget{}, "id", json.Number("1.5")); err == nil {
		t.Fatalf("expected fractional id to be rejected")
	}
}

func TestNewSliceAndRecords(t *testing.T) {
	c := newTestCatalog(t, Entry{Name: "Widget", Model: func() any { return &widget{} }})
	d, _ := c.Describe("Widget")

	slice := d.NewSlice()
	ptr, ok := slice.(*[]*widget)
	if !ok {
		t.Fatalf("unexpected slice type %T", slice)
	}
	*ptr = append(*ptr, &widget{ID: 1}, &widget{ID: 2})
	recs := d.Records(slice)
	if len(recs) != 2 || recs[1].(*widget).ID != 2 {
		t.Fatalf("unexpected records %v", recs)
	}
}
