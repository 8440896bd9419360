package dal

import (
	"errors"
	"fmt"
)

// TransactionError reports a failed begin, commit or rollback. It is never
// swallowed: InTransaction returns it when the terminal action itself fails.
type TransactionError struct {
	// Op is "begin", "commit" or "rollback".
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// IsTransactionError returns true if err is, or wraps, a TransactionError.
func IsTransactionError(err error) bool {
	var te *TransactionError
	return errors.As(err, &te)
}
