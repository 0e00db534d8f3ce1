// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

package catalog

import (
	"database/sql"
	"encoding"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"
)

var (
	scannerType         = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// Set writes a normalized value (as produced by the backup serializer or
// decoded from an artifact) into column of record. It is the inverse of
// normalization: RFC 3339 strings become time.Time, base64 becomes []byte,
// JSON text becomes maps, slices and structs.
func (d *Descriptor) Set(record any, column string, value any) error {
	fv, err := d.Value(record, column)
	if err != nil {
		return err
	}
	if !fv.CanSet() {
		return fmt.Errorf("%s.%s is not settable", d.Name, column)
	}
	if err := assign(fv, value); err != nil {
		return fmt.Errorf("%s.%s: %w", d.Name, column, err)
	}
	return nil
}

func assign(dst reflect.Value, src any) error {
	src = plain(src)

	if src == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}

	if dst.Kind() == reflect.Pointer {
		elem := reflect.New(dst.Type().Elem())
		if err := assign(elem.Elem(), src); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	if dst.Type() == timeType {
		t, err := toTime(src)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(t))
		return nil
	}

	if dst.CanAddr() && dst.Addr().Type().Implements(scannerType) {
		if dst.Type() == nullTimeType {
			t, err := toTime(src)
			if err != nil {
				return err
			}
			src = t
		}
		return dst.Addr().Interface().(sql.Scanner).Scan(src)
	}

	if s, ok := src.(string); ok && dst.Kind() != reflect.String && dst.CanAddr() && dst.Addr().Type().Implements(textUnmarshalerType) {
		return dst.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s))
	}

	if dst.Type() == bytesType {
		switch v := src.(type) {
		case string:
			b, err := base64.StdEncoding.DecodeString(v)
			if err != nil {
				return fmt.Errorf("decode bytes: %w", err)
			}
			dst.SetBytes(b)
		case []byte:
			dst.SetBytes(append([]byte(nil), v...))
		default:
			return fmt.Errorf("cannot assign %T to []byte", src)
		}
		return nil
	}

	switch dst.Kind() {
	case reflect.String:
		switch v := src.(type) {
		case string:
			dst.SetString(v)
		case []byte:
			dst.SetString(string(v))
		default:
			dst.SetString(fmt.Sprint(v))
		}
		return nil
	case reflect.Bool:
		b, err := toBool(src)
		if err != nil {
			return err
		}
		dst.SetBool(b)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt(src)
		if err != nil {
			return err
		}
		if dst.OverflowInt(n) {
			return fmt.Errorf("value %d overflows %s", n, dst.Type())
		}
		dst.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := toInt(src)
		if err != nil {
			return err
		}
		if n < 0 || dst.OverflowUint(uint64(n)) {
			return fmt.Errorf("value %d overflows %s", n, dst.Type())
		}
		dst.SetUint(uint64(n))
		return nil
	case reflect.Float32, reflect.Float64:
		f, err := toFloat(src)
		if err != nil {
			return err
		}
		if dst.OverflowFloat(f) {
			return fmt.Errorf("value %v overflows %s", f, dst.Type())
		}
		dst.SetFloat(f)
		return nil
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Interface:
		var raw []byte
		if s, ok := src.(string); ok {
			raw = []byte(s)
		} else {
			b, err := json.Marshal(src)
			if err != nil {
				return err
			}
			raw = b
		}
		target := reflect.New(dst.Type())
		if err := json.Unmarshal(raw, target.Interface()); err != nil {
			return fmt.Errorf("decode structured value: %w", err)
		}
		dst.Set(target.Elem())
		return nil
	}
	return fmt.Errorf("unsupported destination type %s", dst.Type())
}

// plain converts json.Number into int64 or float64 so every branch below
// deals with ordinary Go values.
func plain(src any) any {
	n, ok := src.(json.Number)
	if !ok {
		return src
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

func toTime(src any) (time.Time, error) {
	switch v := src.(type) {
	case time.Time:
		return v, nil
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("invalid timestamp %q", v)
	default:
		return time.Time{}, fmt.Errorf("cannot assign %T to time", src)
	}
}

func toInt(src any) (int64, error) {
	switch v := src.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", v)
		}
		return int64(v), nil
	case float32:
		return floatToInt(float64(v))
	case float64:
		return floatToInt(v)
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("cannot assign %T to integer", src)
	}
}

func floatToInt(f float64) (int64, error) {
	if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("value %v is not an integer", f)
	}
	return int64(f), nil
}

func toFloat(src any) (float64, error) {
	switch v := src.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		n, err := toInt(src)
		if err != nil {
			return 0, fmt.Errorf("cannot assign %T to float", src)
		}
		return float64(n), nil
	}
}

func toBool(src any) (bool, error) {
	switch v := src.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	default:
		n, err := toInt(src)
		if err != nil {
			return false, fmt.Errorf("cannot assign %T to bool", src)
		}
		return n != 0, nil
	}
}
