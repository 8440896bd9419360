package dal

import (
	"context"
	"database/sql"
	"log/slog"
)

type txConfig struct {
	commit    bool
	txOptions *sql.TxOptions
}

// TxOption configures InTransaction.
type TxOption func(*txConfig)

// WithoutCommit rolls back even when the callback succeeds. Tests use it
// to leave the database untouched.
func WithoutCommit() TxOption {
	return func(c *txConfig) { c.commit = false }
}

// WithTxOptions sets the isolation level and read-only flag.
func WithTxOptions(opts *sql.TxOptions) TxOption {
	return func(c *txConfig) { c.txOptions = opts }
}

// InTransaction runs fn inside a new transaction.
//
//   - fn returns nil: commit. A failed commit returns *TransactionError.
//   - fn returns an error: roll back and return that error unchanged.
//   - fn panics: roll back and re-panic with the same value.
//
// A failed rollback after an error or panic is logged and never replaces
// the original failure.
func InTransaction(ctx context.Context, l *DataAccessLayer, fn func(tx *Transaction) error, opts ...TxOption) error {
	cfg := txConfig{commit: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	tx, err := l.Begin(ctx, cfg.txOptions)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			rollbackAfterFailure(tx, "panic")
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		rollbackAfterFailure(tx, "error")
		return err
	}

	if !cfg.commit {
		return tx.Rollback()
	}
	return tx.Commit()
}

func rollbackAfterFailure(tx *Transaction, cause string) {
	if err := tx.Rollback(); err != nil {
		slog.Error("rollback failed", "cause", cause, "error", err)
	}
}
