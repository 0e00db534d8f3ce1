// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

package backup

import (
	"database/sql/driver"
	"encoding"
	"encoding/base64"
	"fmt"
	"reflect"
	"time"
	"unicode/utf8"

	"github.com/riskledger/riskledger/internal/catalog"
	"github.com/riskledger/riskledger/internal/security"
)

var (
	valuerType        = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	timeType          = reflect.TypeOf(time.Time{})
	bytesType         = reflect.TypeOf([]byte(nil))
)

// Serializer turns records into snapshots. It is stateless apart from the
// catalog it reads and safe for concurrent use.
type Serializer struct {
	cat *catalog.Catalog
}

// NewSerializer returns a Serializer over cat.
func NewSerializer(cat *catalog.Catalog) *Serializer {
	return &Serializer{cat: cat}
}

// Serialize converts record into a snapshot restricted to fields. Unknown
// field names are ignored. Sensitive columns are replaced by the redaction
// marker and long strings are truncated.
func (s *Serializer) Serialize(record any, fields []string) (Snapshot, error) {
	name, ok := s.cat.NameOf(record)
	if !ok {
		return nil, fmt.Errorf("serialize: %T is not a registered record type", record)
	}
	d, _ := s.cat.Describe(name)
	return serializeWith(d, record, fields)
}

func serializeWith(d *catalog.Descriptor, record any, fields []string) (Snapshot, error) {
	snap := make(Snapshot, len(fields))
	for _, col := range fields {
		fi, ok := d.FieldType(col)
		if !ok {
			continue
		}
		if security.IsSensitiveName(fi.Name) || security.IsSensitiveName(fi.GoName) {
			snap[col] = security.RedactedMarker
			continue
		}
		fv, err := d.Value(record, col)
		if err != nil {
			return nil, err
		}
		v, err := normalize(fv)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", d.Name, col, err)
		}
		if str, ok := v.(string); ok && fi.Type == catalog.TagString {
			v = truncate(str)
		}
		snap[col] = v
	}
	return snap, nil
}

// truncate cuts s to MaxStringLength runes and appends TruncationMarker.
func truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxStringLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxStringLength]) + TruncationMarker
}

// normalize maps a field value onto the JSON-friendly set used in
// snapshots: nil, bool, int64, uint64, float64 and string.
func normalize(v reflect.Value) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		if v.Kind() == reflect.Pointer && implementsAny(v.Type()) && v.Elem().Type() != timeType {
			break
		}
		v = v.Elem()
	}

	if v.Type() == timeType {
		return formatTime(v.Interface().(time.Time)), nil
	}

	if vr, ok := asInterface[driver.Valuer](v, valuerType); ok {
		dv, err := vr.Value()
		if err != nil {
			return nil, err
		}
		return normalizeDriverValue(dv), nil
	}

	if tm, ok := asInterface[encoding.TextMarshaler](v, textMarshalerType); ok {
		b, err := tm.MarshalText()
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}

	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}

	if v.Type() == bytesType || (v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8) {
		return base64.StdEncoding.EncodeToString(v.Bytes()), nil
	}

	switch v.Kind() {
	case reflect.String:
		return v.String(), nil
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		if (v.Kind() == reflect.Map || v.Kind() == reflect.Slice) && v.IsNil() {
			return nil, nil
		}
		return canonicalJSON(v.Interface())
	default:
		return nil, fmt.Errorf("unsupported value kind %s", v.Kind())
	}
}

func normalizeDriverValue(dv driver.Value) any {
	switch x := dv.(type) {
	case nil:
		return nil
	case time.Time:
		return formatTime(x)
	case []byte:
		if utf8.Valid(x) {
			return string(x)
		}
		return base64.StdEncoding.EncodeToString(x)
	default:
		return x
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func implementsAny(t reflect.Type) bool {
	return t.Implements(valuerType) || t.Implements(textMarshalerType)
}

// asInterface returns v (or its address) as T when either implements it.
func asInterface[T any](v reflect.Value, iface reflect.Type) (T, bool) {
	var zero T
	if v.Type().Implements(iface) {
		if v.Kind() == reflect.Pointer && v.IsNil() {
			return zero, false
		}
		return v.Interface().(T), true
	}
	if v.Kind() != reflect.Pointer && v.CanAddr() && v.Addr().Type().Implements(iface) {
		return v.Addr().Interface().(T), true
	}
	return zero, false
}
