package filter

import (
	"database/sql/driver"
	"reflect"
)

// Params is a parameter object: the live values a Set reads when it
// renders. Implementations must not change between Lookup calls made by a
// single render; the framework never mutates them.
type Params interface {
	// Lookup returns the value bound to name, and false when the
	// parameter does not exist.
	Lookup(name string) (any, bool)
}

// Values is a map-backed parameter object.
type Values map[string]any

// Lookup implements Params.
func (v Values) Lookup(name string) (any, bool) {
	val, ok := v[name]
	return val, ok
}

// Struct adapts a struct, or pointer to struct, into a parameter object.
// Exported fields are addressed by their `param:"name"` tag, or by field
// name when untagged. Fields tagged `param:"-"` are hidden. Promoted
// fields of embedded structs are included.
//
//	type BookParams struct {
//		AuthorName string `param:"author_name"`
//		Deleted    *bool  `param:"deleted"`
//	}
//
// A nil pointer or non-struct value has no parameters.
func Struct(v any) Params {
	return structParams{v: reflect.ValueOf(v)}
}

type structParams struct {
	v reflect.Value
}

func (s structParams) Lookup(name string) (any, bool) {
	v := s.v
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, false
	}

	for _, f := range reflect.VisibleFields(v.Type()) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		key := f.Name
		if tag, ok := f.Tag.Lookup("param"); ok {
			if tag == "-" {
				continue
			}
			key = tag
		}
		if key != name {
			continue
		}
		fv, err := v.FieldByIndexErr(f.Index)
		if err != nil {
			// Promoted through a nil embedded pointer.
			return nil, false
		}
		return fv.Interface(), true
	}
	return nil, false
}

// requested reports whether a parameter value asks for its filter to be
// applied, and returns the value to bind.
//
// Not requested: nil, a nil pointer, the empty string (directly or behind
// pointers) and a driver.Valuer whose Value is nil, such as an invalid
// sql.NullString. Everything else is applied, including false and 0.
func requested(v any) (any, bool, error) {
	for {
		if v == nil {
			return nil, false, nil
		}
		if valuer, ok := v.(driver.Valuer); ok {
			rv := reflect.ValueOf(v)
			if rv.Kind() == reflect.Pointer && rv.IsNil() {
				return nil, false, nil
			}
			dv, err := valuer.Value()
			if err != nil {
				return nil, false, err
			}
			if dv == nil {
				return nil, false, nil
			}
			if s, ok := dv.(string); ok && s == "" {
				return nil, false, nil
			}
			return dv, true, nil
		}

		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Pointer, reflect.Interface:
			if rv.IsNil() {
				return nil, false, nil
			}
			v = rv.Elem().Interface()
			continue
		case reflect.String:
			if rv.Len() == 0 {
				return nil, false, nil
			}
		}
		return v, true, nil
	}
}
