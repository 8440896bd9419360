package oqm

import (
	"errors"
	"fmt"

	"github.com/roach88/txdal/internal/dialect"
)

// ResultErrorCode categorizes row-count failures.
type ResultErrorCode string

const (
	// ErrCodeNotFound: zero rows where exactly one was expected.
	ErrCodeNotFound ResultErrorCode = "NOT_FOUND"

	// ErrCodeMultipleResults: more than one row where exactly one was
	// expected. The first row is never silently chosen.
	ErrCodeMultipleResults ResultErrorCode = "MULTIPLE_RESULTS"
)

// ResultError reports that a single-row operation got the wrong number of
// rows. These are programming or data errors and are never retried.
type ResultError struct {
	Code ResultErrorCode

	// Op is the executor operation: detail, insert, update or delete.
	Op string

	// Entity is the Go type of the entity, e.g. "oqm_test.Book".
	Entity string
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("%s: %s %s", e.Code, e.Op, e.Entity)
}

// IsNotFound returns true if err is, or wraps, a NOT_FOUND ResultError.
func IsNotFound(err error) bool {
	return hasResultCode(err, ErrCodeNotFound)
}

// IsMultipleResults returns true if err is, or wraps, a MULTIPLE_RESULTS
// ResultError.
func IsMultipleResults(err error) bool {
	return hasResultCode(err, ErrCodeMultipleResults)
}

func hasResultCode(err error, code ResultErrorCode) bool {
	var re *ResultError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IntegrityError is a constraint violation raised by the engine. Err is
// the driver's error, reachable with errors.As.
type IntegrityError struct {
	Op     string
	Entity string
	Err    error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation: %s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// IsIntegrityError returns true if err is, or wraps, an IntegrityError.
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

// classify wraps a statement failure, surfacing constraint violations as
// IntegrityError.
func classify(d dialect.Dialect, op, entity string, err error) error {
	if err == nil {
		return nil
	}
	if d.IsIntegrityViolation(err) {
		return &IntegrityError{Op: op, Entity: entity, Err: err}
	}
	return fmt.Errorf("%s %s: %w", op, entity, err)
}
