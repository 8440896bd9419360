package dal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/roach88/txdal/internal/dialect"
	"github.com/roach88/txdal/internal/schema"
	"github.com/roach88/txdal/internal/sqlb"
)

// Transaction is one database transaction plus the schema it runs
// against. Statement-building code resolves tables through it, so it
// never needs a separate schema handle.
//
// A Transaction is not safe for concurrent use.
type Transaction struct {
	tx  *sqlx.Tx
	dal *DataAccessLayer

	// aliases registered with SetAlias, visible to this transaction only.
	aliases map[string]*schema.Table
}

// GetTable resolves name against, in order, this transaction's aliases,
// the static aliases, and the reflected tables and views.
func (t *Transaction) GetTable(name string) (*schema.Table, error) {
	if a, ok := t.aliases[name]; ok {
		return a, nil
	}
	return t.dal.GetTable(name)
}

// GetView returns a reflected view.
func (t *Transaction) GetView(name string) (*schema.Table, error) {
	return t.dal.GetView(name)
}

// GetUniqueConstraints returns the unique column-groups of a table.
func (t *Transaction) GetUniqueConstraints(table string) ([][]string, error) {
	return t.dal.GetUniqueConstraints(table)
}

// SetAlias registers a table-valued alias for the rest of this
// transaction. Registering the same name again replaces it.
func (t *Transaction) SetAlias(alias *schema.Table) error {
	if alias == nil || alias.Kind != schema.KindAlias || alias.Name == "" || alias.Expr == "" {
		return fmt.Errorf("set alias: invalid alias %+v", alias)
	}
	if t.aliases == nil {
		t.aliases = make(map[string]*schema.Table)
	}
	t.aliases[alias.Name] = alias
	return nil
}

// Dialect returns the SQL dialect statements are built with.
func (t *Transaction) Dialect() dialect.Dialect {
	return t.dal.d
}

// DAL returns the DataAccessLayer the transaction was begun on.
func (t *Transaction) DAL() *DataAccessLayer {
	return t.dal
}

// Tx returns the underlying transaction, for driver-specific work such
// as COPY.
func (t *Transaction) Tx() *sqlx.Tx {
	return t.tx
}

// Execute builds stmt and runs it as a query. The caller closes the rows.
func (t *Transaction) Execute(ctx context.Context, stmt sqlb.Statement) (*sqlx.Rows, error) {
	query, args, err := stmt.Build(t.dal.d)
	if err != nil {
		return nil, fmt.Errorf("build statement: %w", err)
	}
	slog.Debug("execute", "sql", query, "args", len(args))
	return t.tx.QueryxContext(ctx, query, args...)
}

// Exec builds stmt and runs it without returning rows.
func (t *Transaction) Exec(ctx context.Context, stmt sqlb.Statement) (sql.Result, error) {
	query, args, err := stmt.Build(t.dal.d)
	if err != nil {
		return nil, fmt.Errorf("build statement: %w", err)
	}
	slog.Debug("exec", "sql", query, "args", len(args))
	return t.tx.ExecContext(ctx, query, args...)
}

// QueryRaw runs caller SQL written with ? placeholders, rebound for the
// driver. Rebinding rewrites every ?, including those inside string
// literals and PostgreSQL's jsonb ? operators.
func (t *Transaction) QueryRaw(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	query = t.tx.Rebind(query)
	slog.Debug("query raw", "sql", query, "args", len(args))
	return t.tx.QueryxContext(ctx, query, args...)
}

// ExecRaw runs caller SQL written with ? placeholders, rebound for the
// driver. The same ? caveat as QueryRaw applies.
func (t *Transaction) ExecRaw(ctx context.Context, query string, args ...any) (sql.Result, error) {
	query = t.tx.Rebind(query)
	slog.Debug("exec raw", "sql", query, "args", len(args))
	return t.tx.ExecContext(ctx, query, args...)
}

// Commit commits the transaction.
func (t *Transaction) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return &TransactionError{Op: "commit", Err: err}
	}
	return nil
}

// Rollback aborts the transaction. Rolling back a transaction that has
// already ended, including one the driver aborted when its context was
// cancelled, is not an error.
func (t *Transaction) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return &TransactionError{Op: "rollback", Err: err}
	}
	return nil
}
