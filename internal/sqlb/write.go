package sqlb

import (
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/txdal/internal/dialect"
	"github.com/roach88/txdal/internal/schema"
)

// assignment is one column = value pair of an INSERT or UPDATE.
type assignment struct {
	column string
	value  Expr
}

// assignments keeps column order stable: Set appends, SetMap appends in
// sorted key order. Setting a column twice replaces its value in place.
type assignments []assignment

func (a *assignments) set(column string, v any) {
	for i := range *a {
		if (*a)[i].column == column {
			(*a)[i].value = value(v)
			return
		}
	}
	*a = append(*a, assignment{column: column, value: value(v)})
}

func (a *assignments) setMap(m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		a.set(k, m[k])
	}
}

func checkWritable(t *schema.Table, verb string) error {
	if t == nil {
		return fmt.Errorf("%s: nil table", verb)
	}
	if t.Kind == schema.KindAlias {
		return fmt.Errorf("%s: %s is an alias", verb, t.Name)
	}
	return nil
}

func (b *builder) checkColumns(t *schema.Table, as assignments) {
	for _, a := range as {
		if _, err := t.Column(a.column); err != nil {
			b.fail(err)
			return
		}
	}
}

// Insert is an INSERT INTO ... VALUES statement for one row.
type Insert struct {
	table        *schema.Table
	values       assignments
	returning    []string
	returningAll bool
}

// NewInsert starts an INSERT into t.
func NewInsert(t *schema.Table) *Insert {
	return &Insert{table: t}
}

// Set assigns a column. A non-Expr value is bound as a parameter.
func (i *Insert) Set(column string, v any) *Insert {
	i.values.set(column, v)
	return i
}

// SetMap assigns every entry of m, in sorted column order.
func (i *Insert) SetMap(m map[string]any) *Insert {
	i.values.setMap(m)
	return i
}

// Returning requests the named columns of the inserted row.
func (i *Insert) Returning(columns ...string) *Insert {
	i.returning = append(i.returning, columns...)
	return i
}

// ReturningAll requests the full inserted row.
func (i *Insert) ReturningAll() *Insert {
	i.returningAll = true
	return i
}

// Table returns the target table.
func (i *Insert) Table() *schema.Table {
	return i.table
}

// Build renders the statement for d.
func (i *Insert) Build(d dialect.Dialect) (string, []any, error) {
	if err := checkWritable(i.table, "insert"); err != nil {
		return "", nil, err
	}
	b := newBuilder(d)
	b.checkColumns(i.table, i.values)

	b.write("INSERT INTO ")
	b.tableRef(i.table)
	if len(i.values) == 0 {
		b.write(" DEFAULT VALUES")
	} else {
		b.write(" (")
		for n, a := range i.values {
			if n > 0 {
				b.write(", ")
			}
			b.ident(a.column)
		}
		b.write(") VALUES (")
		for n, a := range i.values {
			if n > 0 {
				b.write(", ")
			}
			b.expr(a.value)
		}
		b.write(")")
	}
	b.returning(i.table, i.returning, i.returningAll)
	return b.result()
}

// Update is an UPDATE ... SET statement.
type Update struct {
	table        *schema.Table
	values       assignments
	where        []Predicate
	returning    []string
	returningAll bool
}

// NewUpdate starts an UPDATE of t.
func NewUpdate(t *schema.Table) *Update {
	return &Update{table: t}
}

// Set assigns a column. A non-Expr value is bound as a parameter.
func (u *Update) Set(column string, v any) *Update {
	u.values.set(column, v)
	return u
}

// SetMap assigns every entry of m, in sorted column order.
func (u *Update) SetMap(m map[string]any) *Update {
	u.values.setMap(m)
	return u
}

// Where adds predicates; nil predicates are ignored.
func (u *Update) Where(preds ...Predicate) *Update {
	u.AddWhere(preds...)
	return u
}

// AddWhere implements Filterable.
func (u *Update) AddWhere(preds ...Predicate) {
	for _, p := range preds {
		if p != nil {
			u.where = append(u.where, p)
		}
	}
}

// Returning requests the named columns of each updated row.
func (u *Update) Returning(columns ...string) *Update {
	u.returning = append(u.returning, columns...)
	return u
}

// ReturningAll requests every column of each updated row.
func (u *Update) ReturningAll() *Update {
	u.returningAll = true
	return u
}

// Table returns the target table.
func (u *Update) Table() *schema.Table {
	return u.table
}

// Build renders the statement for d.
func (u *Update) Build(d dialect.Dialect) (string, []any, error) {
	if err := checkWritable(u.table, "update"); err != nil {
		return "", nil, err
	}
	if len(u.values) == 0 {
		return "", nil, errors.New("update: no columns set")
	}
	b := newBuilder(d)
	b.checkColumns(u.table, u.values)

	b.write("UPDATE ")
	b.tableRef(u.table)
	b.write(" SET ")
	for n, a := range u.values {
		if n > 0 {
			b.write(", ")
		}
		b.ident(a.column)
		b.write(" = ")
		b.expr(a.value)
	}
	b.where(u.where)
	b.returning(u.table, u.returning, u.returningAll)
	return b.result()
}

// Delete is a DELETE FROM statement.
type Delete struct {
	table        *schema.Table
	where        []Predicate
	returning    []string
	returningAll bool
}

// NewDelete starts a DELETE from t.
func NewDelete(t *schema.Table) *Delete {
	return &Delete{table: t}
}

// Where adds predicates; nil predicates are ignored.
func (del *Delete) Where(preds ...Predicate) *Delete {
	del.AddWhere(preds...)
	return del
}

// AddWhere implements Filterable.
func (del *Delete) AddWhere(preds ...Predicate) {
	for _, p := range preds {
		if p != nil {
			del.where = append(del.where, p)
		}
	}
}

// Returning requests the named columns of each deleted row.
func (del *Delete) Returning(columns ...string) *Delete {
	del.returning = append(del.returning, columns...)
	return del
}

// ReturningAll requests every column of each deleted row.
func (del *Delete) ReturningAll() *Delete {
	del.returningAll = true
	return del
}

// Table returns the target table.
func (del *Delete) Table() *schema.Table {
	return del.table
}

// Build renders the statement for d.
func (del *Delete) Build(d dialect.Dialect) (string, []any, error) {
	if err := checkWritable(del.table, "delete"); err != nil {
		return "", nil, err
	}
	b := newBuilder(d)
	b.write("DELETE FROM ")
	b.tableRef(del.table)
	b.where(del.where)
	b.returning(del.table, del.returning, del.returningAll)
	return b.result()
}
