// Package jsonb serializes values for JSON columns and responses.
//
// Marshal rewrites these values before encoding:
//   - Enum implementations encode as their EnumValue()
//   - time.Time encodes as RFC 3339 with nanoseconds, Date as YYYY-MM-DD
//   - strings and map keys are NFC normalized
//
// HTML characters are not escaped.
//
// Maps, slices and pointers are walked so nested values get the same
// treatment. Structs are handed to encoding/json as they are: an Enum or
// string field inside a struct is encoded by encoding/json, not rewritten.
// Give such fields a MarshalJSON method, or pass a map instead.
package jsonb

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Enum is implemented by enumeration types whose JSON form is their
// underlying value rather than their name.
type Enum interface {
	EnumValue() any
}

// Marshal normalizes v and encodes it as JSON.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Normalize(v)); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Normalize returns v with enums, times and dates replaced by their JSON
// forms, recursing through maps and slices. v itself is not modified.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return norm.NFC.String(x)
	case Enum:
		return Normalize(x.EnumValue())
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.Format(time.RFC3339Nano)
	case Date:
		return x.String()
	case json.Marshaler, []byte:
		return v
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[norm.NFC.String(k)] = Normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Normalize(e)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String || rv.IsNil() {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[norm.NFC.String(iter.Key().String())] = Normalize(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return v
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return Normalize(rv.Elem().Interface())
	}
	return v
}

// Date is a calendar date without time or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes "YYYY-MM-DD".
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Map is a JSON object column. It stores through Marshal, so enums and
// times inside it are normalized on write.
type Map map[string]any

// Value implements driver.Valuer.
func (m Map) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := Marshal(map[string]any(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *Map) Scan(src any) error {
	var b []byte
	switch s := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		b = s
	case string:
		b = []byte(s)
	default:
		return fmt.Errorf("jsonb: cannot scan %T into Map", src)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("jsonb: %w", err)
	}
	*m = out
	return nil
}
