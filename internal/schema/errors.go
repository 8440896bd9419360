package schema

import (
	"errors"
	"fmt"
)

// LookupError reports a name that is not in the reflected schema.
// These are programmer errors and are never retried.
type LookupError struct {
	Code LookupErrorCode

	// Name is the relation, column or alias that was requested.
	Name string

	// Table is set for column lookups.
	Table string
}

// LookupErrorCode categorizes lookup errors.
type LookupErrorCode string

const (
	// ErrCodeTableNotFound indicates no reflected table or view has the name.
	ErrCodeTableNotFound LookupErrorCode = "TABLE_NOT_FOUND"

	// ErrCodeViewNotFound indicates no reflected view has the name.
	ErrCodeViewNotFound LookupErrorCode = "VIEW_NOT_FOUND"

	// ErrCodeColumnNotFound indicates the relation has no such column.
	ErrCodeColumnNotFound LookupErrorCode = "COLUMN_NOT_FOUND"

	// ErrCodeAliasNotFound indicates no alias was registered under the name.
	ErrCodeAliasNotFound LookupErrorCode = "ALIAS_NOT_FOUND"
)

// Error implements the error interface.
func (e *LookupError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("%s: %s.%s", e.Code, e.Table, e.Name)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Name)
}

// IsTableNotFound returns true if err is a table lookup failure.
func IsTableNotFound(err error) bool {
	return hasLookupCode(err, ErrCodeTableNotFound)
}

// IsViewNotFound returns true if err is a view lookup failure.
func IsViewNotFound(err error) bool {
	return hasLookupCode(err, ErrCodeViewNotFound)
}

// IsColumnNotFound returns true if err is a column lookup failure.
func IsColumnNotFound(err error) bool {
	return hasLookupCode(err, ErrCodeColumnNotFound)
}

// IsAliasNotFound returns true if err is an alias lookup failure.
func IsAliasNotFound(err error) bool {
	return hasLookupCode(err, ErrCodeAliasNotFound)
}

// Is matches a target LookupError that carries only a Code, so errors.Is
// finds a code anywhere in a joined error tree.
func (e *LookupError) Is(target error) bool {
	t, ok := target.(*LookupError)
	return ok && t.Name == "" && t.Table == "" && t.Code == e.Code
}

func hasLookupCode(err error, code LookupErrorCode) bool {
	return errors.Is(err, &LookupError{Code: code})
}

// ReflectionError reports that schema introspection could not complete.
// It is fatal to startup; retry policy belongs to the caller.
type ReflectionError struct {
	// Stage is the introspection step that failed
	// ("connect", "schema", "relations", "columns", "constraints", "aliases").
	Stage string

	// Relation is the table or view being introspected, if any.
	Relation string

	Err error
}

func (e *ReflectionError) Error() string {
	if e.Relation != "" {
		return fmt.Sprintf("reflect %s %s: %v", e.Stage, e.Relation, e.Err)
	}
	return fmt.Sprintf("reflect %s: %v", e.Stage, e.Err)
}

func (e *ReflectionError) Unwrap() error {
	return e.Err
}

// IsReflectionError returns true if err is, or wraps, a ReflectionError.
func IsReflectionError(err error) bool {
	var re *ReflectionError
	return errors.As(err, &re)
}
