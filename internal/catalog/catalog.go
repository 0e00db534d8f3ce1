// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

package catalog

import (
	"database/sql"
	"encoding"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// TypeTag is the coarse type of a scalar field as seen by the backup engine.
type TypeTag string

const (
	TagString  TypeTag = "string"
	TagInt     TypeTag = "int"
	TagUint    TypeTag = "uint"
	TagFloat   TypeTag = "float"
	TagBool    TypeTag = "bool"
	TagTime    TypeTag = "time"
	TagBytes   TypeTag = "bytes"
	TagDecimal TypeTag = "decimal"
	TagText    TypeTag = "text"
	TagJSON    TypeTag = "json"
)

// FieldInfo describes one scalar column.
type FieldInfo struct {
	Name          string
	GoName        string
	Type          TypeTag
	Nullable      bool
	PrimaryKey    bool
	AutoIncrement bool
}

// Descriptor is the metadata of one record type.
type Descriptor struct {
	Name  string
	Table string
	Kind  Kind
	// ScalarFields lists column names, primary keys first.
	ScalarFields []string
	// RelationFields lists the Go names of bun relation fields.
	RelationFields []string
	PrimaryKeys    []string

	entry  Entry
	table  *schema.Table
	fields map[string]*schema.Field
	infos  map[string]FieldInfo
}

// FieldType returns the description of a scalar column.
func (d *Descriptor) FieldType(column string) (FieldInfo, bool) {
	fi, ok := d.infos[column]
	return fi, ok
}

// New returns a pointer to a fresh zero record of this type.
func (d *Descriptor) New() any { return d.entry.Model() }

// NewSlice returns a pointer to an empty slice of record pointers, suitable
// as a bun Model for loading every row.
func (d *Descriptor) NewSlice() any {
	return reflect.New(reflect.SliceOf(reflect.PointerTo(d.table.Type))).Interface()
}

// Records returns the elements of a slice produced by NewSlice.
func (d *Descriptor) Records(slice any) []any {
	v := reflect.Indirect(reflect.ValueOf(slice))
	out := make([]any, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		out = append(out, v.Index(i).Interface())
	}
	return out
}

// Value returns the struct field backing column on record. record must be a
// pointer to this descriptor's model type.
func (d *Descriptor) Value(record any, column string) (reflect.Value, error) {
	f, ok := d.fields[column]
	if !ok {
		return reflect.Value{}, fmt.Errorf("%s has no column %q", d.Name, column)
	}
	strct, err := d.structValue(record)
	if err != nil {
		return reflect.Value{}, err
	}
	return f.Value(strct), nil
}

func (d *Descriptor) structValue(record any) (reflect.Value, error) {
	rv := reflect.ValueOf(record)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return reflect.Value{}, fmt.Errorf("%s: record must be a non-nil pointer, got %T", d.Name, record)
	}
	rv = rv.Elem()
	if rv.Type() != d.table.Type {
		return reflect.Value{}, fmt.Errorf("%s: record has type %s, want %s", d.Name, rv.Type(), d.table.Type)
	}
	return rv, nil
}

// Catalog binds a Registry to the table metadata of a bun database.
type Catalog struct {
	reg    *Registry
	descs  map[string]*Descriptor
	byType map[reflect.Type]string
}

// New builds descriptors for every registered type. bun parses each model
// once; invalid models surface here rather than mid-backup.
func New(reg *Registry, bdb *bun.DB) (*Catalog, error) {
	c := &Catalog{
		reg:    reg,
		descs:  map[string]*Descriptor{},
		byType: map[reflect.Type]string{},
	}
	for _, name := range reg.Names() {
		e, _ := reg.Lookup(name)
		d, err := describeEntry(bdb, e)
		if err != nil {
			return nil, err
		}
		c.descs[name] = d
		c.byType[d.table.Type] = name
	}
	return c, nil
}

// Describe returns the descriptor for name. Unknown names report false;
// callers treat that as "skip this type".
func (c *Catalog) Describe(name string) (*Descriptor, bool) {
	d, ok := c.descs[name]
	return d, ok
}

// Names returns every known record type in registration order.
func (c *Catalog) Names() []string { return c.reg.Names() }

// NameOf returns the registered name of a record value's type.
func (c *Catalog) NameOf(record any) (string, bool) {
	t := reflect.TypeOf(record)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name, ok := c.byType[t]
	return name, ok
}

func describeEntry(bdb *bun.DB, e Entry) (d *Descriptor, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("catalog: describe %s: %v", e.Name, r)
		}
	}()

	typ := reflect.TypeOf(e.Model()).Elem()
	table := bdb.Table(typ)

	d = &Descriptor{
		Name:   e.Name,
		Table:  table.Name,
		Kind:   e.Kind,
		entry:  e,
		table:  table,
		fields: map[string]*schema.Field{},
		infos:  map[string]FieldInfo{},
	}

	for _, f := range table.PKs {
		d.PrimaryKeys = append(d.PrimaryKeys, f.Name)
	}
	for _, f := range table.PKs {
		d.addField(f)
	}
	for _, f := range table.Fields {
		if f.IsPK {
			continue
		}
		d.addField(f)
	}
	for goName := range table.Relations {
		d.RelationFields = append(d.RelationFields, goName)
	}
	sort.Strings(d.RelationFields)
	return d, nil
}

func (d *Descriptor) addField(f *schema.Field) {
	if _, seen := d.fields[f.Name]; seen {
		return
	}
	d.fields[f.Name] = f
	d.ScalarFields = append(d.ScalarFields, f.Name)
	d.infos[f.Name] = FieldInfo{
		Name:          f.Name,
		GoName:        f.GoName,
		Type:          tagOf(f.IndirectType),
		Nullable:      !f.NotNull && !f.IsPK,
		PrimaryKey:    f.IsPK,
		AutoIncrement: f.AutoIncrement,
	}
}

var (
	timeType          = reflect.TypeOf(time.Time{})
	nullTimeType      = reflect.TypeOf(sql.NullTime{})
	nullStringType    = reflect.TypeOf(sql.NullString{})
	nullBoolType      = reflect.TypeOf(sql.NullBool{})
	nullFloat64Type   = reflect.TypeOf(sql.NullFloat64{})
	nullInt64Type     = reflect.TypeOf(sql.NullInt64{})
	nullInt32Type     = reflect.TypeOf(sql.NullInt32{})
	nullInt16Type     = reflect.TypeOf(sql.NullInt16{})
	bigIntType        = reflect.TypeOf(big.Int{})
	bigFloatType      = reflect.TypeOf(big.Float{})
	bigRatType        = reflect.TypeOf(big.Rat{})
	bytesType         = reflect.TypeOf([]byte(nil))
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

func tagOf(t reflect.Type) TypeTag {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t {
	case timeType, nullTimeType:
		return TagTime
	case nullStringType:
		return TagString
	case nullBoolType:
		return TagBool
	case nullFloat64Type:
		return TagFloat
	case nullInt64Type, nullInt32Type, nullInt16Type:
		return TagInt
	case bigIntType, bigFloatType, bigRatType:
		return TagDecimal
	case bytesType:
		return TagBytes
	}
	if t.Implements(textMarshalerType) || reflect.PointerTo(t).Implements(textMarshalerType) {
		return TagText
	}
	switch t.Kind() {
	case reflect.String:
		return TagString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return TagInt
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TagUint
	case reflect.Float32, reflect.Float64:
		return TagFloat
	case reflect.Bool:
		return TagBool
	default:
		return TagJSON
	}
}
