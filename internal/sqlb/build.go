package sqlb

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/txdal/internal/dialect"
	"github.com/roach88/txdal/internal/schema"
)

// ErrReturningUnsupported is returned when a statement requests RETURNING
// from a dialect that cannot provide it.
var ErrReturningUnsupported = errors.New("dialect does not support RETURNING")

// Statement is anything that renders to SQL plus arguments.
type Statement interface {
	Build(d dialect.Dialect) (string, []any, error)
}

// Filterable is a statement that accepts additional WHERE predicates.
// Select, Update and Delete implement it.
type Filterable interface {
	Statement
	AddWhere(preds ...Predicate)
}

// builder accumulates SQL text and arguments. The first error sticks;
// later writes are ignored.
type builder struct {
	d    dialect.Dialect
	sb   strings.Builder
	args []any
	err  error
}

func newBuilder(d dialect.Dialect) *builder {
	return &builder{d: d}
}

func (b *builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *builder) write(s string) {
	b.sb.WriteString(s)
}

func (b *builder) ident(name string) {
	b.sb.WriteString(b.d.QuoteIdent(name))
}

func (b *builder) bind(v any) {
	b.args = append(b.args, v)
	b.sb.WriteString(b.d.Placeholder(len(b.args)))
}

// raw writes sql, binding args at each ? marker.
func (b *builder) raw(sql string, args []any) {
	n := 0
	for _, r := range sql {
		if r != '?' {
			b.sb.WriteRune(r)
			continue
		}
		if n >= len(args) {
			b.fail(fmt.Errorf("raw sql %q: more ? markers than args (%d)", sql, len(args)))
			return
		}
		b.bind(args[n])
		n++
	}
	if n != len(args) {
		b.fail(fmt.Errorf("raw sql %q: %d ? markers for %d args", sql, n, len(args)))
	}
}

func (b *builder) result() (string, []any, error) {
	if b.err != nil {
		return "", nil, b.err
	}
	return b.sb.String(), b.args, nil
}

// tableRef renders a relation's qualified, quoted name.
func (b *builder) tableRef(t *schema.Table) {
	b.write(dialect.QuoteQualified(b.d, t.QualifiedName()))
}

// fromItem renders a relation in FROM or JOIN position. Aliases render
// their expression followed by AS "name".
func (b *builder) fromItem(t *schema.Table) {
	if t == nil {
		b.fail(errors.New("nil table"))
		return
	}
	if t.Kind == schema.KindAlias {
		b.raw(t.Expr, t.Args)
		b.write(" AS ")
		b.ident(t.Name)
		return
	}
	b.tableRef(t)
}

func (b *builder) expr(e Expr) {
	switch e := e.(type) {
	case Column:
		b.column(e)
	case Param:
		b.bind(e.Value)
	case Raw:
		b.raw(e.SQL, e.Args)
	case Subquery:
		if e.Select == nil {
			b.fail(errors.New("nil subquery"))
			return
		}
		b.write("(")
		e.Select.build(b)
		b.write(")")
	case Aliased:
		b.expr(e.Expr)
		b.write(" AS ")
		b.ident(e.Alias)
	case AllColumns:
		b.allColumns(e.Table)
	case Predicate:
		b.predicate(e)
	case nil:
		b.fail(errors.New("nil expression"))
	default:
		b.fail(fmt.Errorf("unsupported expression type: %T", e))
	}
}

func (b *builder) column(c Column) {
	if c.Table == nil {
		b.fail(fmt.Errorf("column %q has no table", c.Name))
		return
	}
	if _, err := c.Table.Column(c.Name); err != nil {
		b.fail(err)
		return
	}
	b.tableRef(c.Table)
	b.write(".")
	b.ident(c.Name)
}

func (b *builder) allColumns(t *schema.Table) {
	if t == nil {
		b.fail(errors.New("nil table"))
		return
	}
	if len(t.Columns) == 0 {
		b.tableRef(t)
		b.write(".*")
		return
	}
	for i, c := range t.Columns {
		if i > 0 {
			b.write(", ")
		}
		b.column(Column{Table: t, Name: c.Name})
	}
}

func (b *builder) predicate(p Predicate) {
	switch p := p.(type) {
	case Compare:
		b.compare(p)
	case *Compare:
		b.compare(*p)
	case And:
		b.and(p)
	case *And:
		b.and(*p)
	case IsNull:
		b.isNull(p)
	case *IsNull:
		b.isNull(*p)
	case Raw:
		b.raw(p.SQL, p.Args)
	case *Raw:
		b.raw(p.SQL, p.Args)
	case nil:
		b.fail(errors.New("nil predicate"))
	default:
		b.fail(fmt.Errorf("unsupported predicate type: %T", p))
	}
}

func (b *builder) compare(c Compare) {
	switch c.Op {
	case OpEq, OpNe, OpGe, OpLe, OpGt, OpLt, OpLike:
	default:
		b.fail(fmt.Errorf("unsupported operator %q", c.Op))
		return
	}
	b.expr(c.Left)
	b.write(" " + string(c.Op) + " ")
	b.expr(c.Right)
}

func (b *builder) and(a And) {
	if len(a.Predicates) == 0 {
		b.write("1 = 1")
		return
	}
	for i, p := range a.Predicates {
		if i > 0 {
			b.write(" AND ")
		}
		_, isRaw := p.(Raw)
		if isRaw && len(a.Predicates) > 1 {
			b.write("(")
			b.predicate(p)
			b.write(")")
			continue
		}
		b.predicate(p)
	}
}

func (b *builder) isNull(n IsNull) {
	b.expr(n.Expr)
	if n.Not {
		b.write(" IS NOT NULL")
		return
	}
	b.write(" IS NULL")
}

// where renders " WHERE ..." for the conjunction of preds, if any.
func (b *builder) where(preds []Predicate) {
	p := Conjoin(preds...)
	if p == nil {
		return
	}
	b.write(" WHERE ")
	b.predicate(p)
}

// returning renders " RETURNING ..." with unqualified column names.
func (b *builder) returning(t *schema.Table, cols []string, all bool) {
	if !all && len(cols) == 0 {
		return
	}
	if !b.d.SupportsReturning() {
		b.fail(fmt.Errorf("%s: %w", b.d.Name(), ErrReturningUnsupported))
		return
	}
	if all {
		cols = t.ColumnNames()
	}
	b.write(" RETURNING ")
	if len(cols) == 0 {
		b.write("*")
		return
	}
	for i, c := range cols {
		if _, err := t.Column(c); err != nil {
			b.fail(err)
			return
		}
		if i > 0 {
			b.write(", ")
		}
		b.ident(c)
	}
}
