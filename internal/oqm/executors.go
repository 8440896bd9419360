package oqm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/txdal/internal/dal"
	"github.com/roach88/txdal/internal/filter"
	"github.com/roach88/txdal/internal/sqlb"
)

func entityName[E any]() string {
	var zero E
	return fmt.Sprintf("%T", zero)
}

// setAliases gives parameter objects a chance to register per-transaction
// aliases before the statement is built.
func setAliases(tx *dal.Transaction, where filter.Statement) error {
	if a, ok := where.(filter.Aliaser); ok {
		return a.SetAliasedTable(tx)
	}
	return nil
}

// query runs stmt and scans every row into an E.
func query[E any](ctx context.Context, tx *dal.Transaction, op string, stmt sqlb.Statement) ([]E, error) {
	entity := entityName[E]()
	rows, err := tx.Execute(ctx, stmt)
	if err != nil {
		return nil, classify(tx.Dialect(), op, entity, err)
	}
	defer rows.Close()

	out := []E{}
	for rows.Next() {
		var e E
		if err := rows.StructScan(&e); err != nil {
			return nil, fmt.Errorf("%s %s: scan: %w", op, entity, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(tx.Dialect(), op, entity, err)
	}
	return out, nil
}

// one runs stmt and requires exactly one row. At most two rows are read.
func one[E any](ctx context.Context, tx *dal.Transaction, op string, stmt sqlb.Statement) (E, error) {
	var zero E
	entity := entityName[E]()

	if v := sqlb.Validate(stmt); !v.Clean {
		slog.Debug("statement warnings", "op", op, "entity", entity, "warnings", v.Warnings)
	}

	rows, err := tx.Execute(ctx, stmt)
	if err != nil {
		return zero, classify(tx.Dialect(), op, entity, err)
	}
	defer rows.Close()

	var (
		result E
		n      int
	)
	for n < 2 && rows.Next() {
		if n == 0 {
			if err := rows.StructScan(&result); err != nil {
				return zero, fmt.Errorf("%s %s: scan: %w", op, entity, err)
			}
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return zero, classify(tx.Dialect(), op, entity, err)
	}

	switch n {
	case 0:
		return zero, &ResultError{Code: ErrCodeNotFound, Op: op, Entity: entity}
	case 1:
		return result, nil
	default:
		return zero, &ResultError{Code: ErrCodeMultipleResults, Op: op, Entity: entity}
	}
}

// ListQ lists every entity matching a filter.
type ListQ[E Queryable] struct {
	where filter.Statement
}

// NewListQ declares a list query. where may be nil.
func NewListQ[E Queryable](where filter.Statement) ListQ[E] {
	return ListQ[E]{where: where}
}

// List runs the query. No rows is an empty, non-nil slice.
func (q ListQ[E]) List(ctx context.Context, tx *dal.Transaction) ([]E, error) {
	var zero E
	if err := setAliases(tx, q.where); err != nil {
		return nil, fmt.Errorf("list %s: %w", entityName[E](), err)
	}
	stmt, err := zero.QueryStmt(tx, q.where)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", entityName[E](), err)
	}
	return query[E](ctx, tx, "list", stmt)
}

// DetailQ fetches the single entity matching a filter.
type DetailQ[E Queryable] struct {
	where filter.Statement
}

// NewDetailQ declares a detail query.
func NewDetailQ[E Queryable](where filter.Statement) DetailQ[E] {
	return DetailQ[E]{where: where}
}

// Detail runs the query. Zero rows is NOT_FOUND and more than one row is
// MULTIPLE_RESULTS.
func (q DetailQ[E]) Detail(ctx context.Context, tx *dal.Transaction) (E, error) {
	var zero E
	if err := setAliases(tx, q.where); err != nil {
		return zero, fmt.Errorf("detail %s: %w", entityName[E](), err)
	}
	stmt, err := zero.QueryStmt(tx, q.where)
	if err != nil {
		return zero, fmt.Errorf("detail %s: %w", entityName[E](), err)
	}
	return one[E](ctx, tx, "detail", stmt)
}

// InsertQ inserts one row from a form.
type InsertQ[E Insertable[F], F any] struct {
	form F
}

// NewInsertQ declares an insert. F is usually inferred:
//
//	oqm.NewInsertQ[Book](BookForm{...})
func NewInsertQ[E Insertable[F], F any](form F) InsertQ[E, F] {
	return InsertQ[E, F]{form: form}
}

// Insert runs the statement and returns the inserted row. Constraint
// violations are IntegrityError.
func (q InsertQ[E, F]) Insert(ctx context.Context, tx *dal.Transaction) (E, error) {
	var zero E
	stmt, err := zero.InsertStmt(tx, q.form)
	if err != nil {
		return zero, fmt.Errorf("insert %s: %w", entityName[E](), err)
	}
	return one[E](ctx, tx, "insert", stmt)
}

// UpdateQ updates one row from a form.
type UpdateQ[E Updateable[F], F any] struct {
	form  F
	where filter.Statement
}

// NewUpdateQ declares an update. where may be nil.
func NewUpdateQ[E Updateable[F], F any](form F, where filter.Statement) UpdateQ[E, F] {
	return UpdateQ[E, F]{form: form, where: where}
}

// Update runs the statement and returns the updated row. Matching no row
// is NOT_FOUND, which is distinct from an update that changed nothing.
func (q UpdateQ[E, F]) Update(ctx context.Context, tx *dal.Transaction) (E, error) {
	var zero E
	stmt, err := zero.UpdateStmt(tx, q.form, q.where)
	if err != nil {
		return zero, fmt.Errorf("update %s: %w", entityName[E](), err)
	}
	return one[E](ctx, tx, "update", stmt)
}

// DeleteQ deletes one row identified by a form.
type DeleteQ[E Deleteable[F], F any] struct {
	form F
}

// NewDeleteQ declares a delete.
func NewDeleteQ[E Deleteable[F], F any](form F) DeleteQ[E, F] {
	return DeleteQ[E, F]{form: form}
}

// Delete runs the statement and returns the deleted row. Matching no row
// is NOT_FOUND.
func (q DeleteQ[E, F]) Delete(ctx context.Context, tx *dal.Transaction) (E, error) {
	var zero E
	stmt, err := zero.DeleteStmt(tx, q.form)
	if err != nil {
		return zero, fmt.Errorf("delete %s: %w", entityName[E](), err)
	}
	return one[E](ctx, tx, "delete", stmt)
}
