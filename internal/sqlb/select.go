package sqlb

import (
	"errors"

	"github.com/roach88/txdal/internal/dialect"
	"github.com/roach88/txdal/internal/schema"
)

type joinKind string

const (
	innerJoin joinKind = " JOIN "
	leftJoin  joinKind = " LEFT JOIN "
)

type join struct {
	kind  joinKind
	table *schema.Table
	on    Predicate
}

// Select is a SELECT statement under construction. Methods mutate and
// return the receiver so calls chain.
type Select struct {
	columns []Expr
	from    *schema.Table
	joins   []join
	where   []Predicate
	groupBy []Expr
	orderBy []Order
	limit   int
	offset  int
}

// NewSelect starts a SELECT of the given columns. With no columns and a
// FROM table, every column of that table is selected.
func NewSelect(columns ...Expr) *Select {
	return &Select{columns: columns}
}

// Columns appends to the select list.
func (s *Select) Columns(columns ...Expr) *Select {
	s.columns = append(s.columns, columns...)
	return s
}

// From sets the FROM relation.
func (s *Select) From(t *schema.Table) *Select {
	s.from = t
	return s
}

// Join adds an INNER JOIN.
func (s *Select) Join(t *schema.Table, on Predicate) *Select {
	s.joins = append(s.joins, join{kind: innerJoin, table: t, on: on})
	return s
}

// LeftJoin adds a LEFT JOIN.
func (s *Select) LeftJoin(t *schema.Table, on Predicate) *Select {
	s.joins = append(s.joins, join{kind: leftJoin, table: t, on: on})
	return s
}

// Where adds predicates; nil predicates are ignored. All WHERE predicates
// are joined with AND in the order they were added.
func (s *Select) Where(preds ...Predicate) *Select {
	s.AddWhere(preds...)
	return s
}

// AddWhere implements Filterable.
func (s *Select) AddWhere(preds ...Predicate) {
	for _, p := range preds {
		if p != nil {
			s.where = append(s.where, p)
		}
	}
}

// GroupBy adds GROUP BY terms.
func (s *Select) GroupBy(exprs ...Expr) *Select {
	s.groupBy = append(s.groupBy, exprs...)
	return s
}

// OrderBy adds ORDER BY terms.
func (s *Select) OrderBy(orders ...Order) *Select {
	s.orderBy = append(s.orderBy, orders...)
	return s
}

// Limit caps the row count. Zero means no limit.
func (s *Select) Limit(n int) *Select {
	s.limit = n
	return s
}

// Offset skips rows. Zero means no offset.
func (s *Select) Offset(n int) *Select {
	s.offset = n
	return s
}

// Table returns the FROM relation, or nil.
func (s *Select) Table() *schema.Table {
	return s.from
}

// Build renders the statement for d.
func (s *Select) Build(d dialect.Dialect) (string, []any, error) {
	b := newBuilder(d)
	s.build(b)
	return b.result()
}

func (s *Select) build(b *builder) {
	b.write("SELECT ")
	switch {
	case len(s.columns) > 0:
		for i, c := range s.columns {
			if i > 0 {
				b.write(", ")
			}
			b.expr(c)
		}
	case s.from != nil:
		b.allColumns(s.from)
	default:
		b.fail(errors.New("select has neither columns nor FROM"))
		return
	}

	if s.from != nil {
		b.write(" FROM ")
		b.fromItem(s.from)
	} else if len(s.joins) > 0 {
		b.fail(errors.New("select has JOIN without FROM"))
		return
	}

	for _, j := range s.joins {
		b.write(string(j.kind))
		b.fromItem(j.table)
		b.write(" ON ")
		if j.on == nil {
			b.write("1 = 1")
			continue
		}
		b.predicate(j.on)
	}

	b.where(s.where)

	if len(s.groupBy) > 0 {
		b.write(" GROUP BY ")
		for i, g := range s.groupBy {
			if i > 0 {
				b.write(", ")
			}
			b.expr(g)
		}
	}

	if len(s.orderBy) > 0 {
		b.write(" ORDER BY ")
		for i, o := range s.orderBy {
			if i > 0 {
				b.write(", ")
			}
			b.expr(o.Expr)
			if o.Desc {
				b.write(" DESC")
			}
		}
	}

	b.write(b.d.LimitOffset(s.limit, s.offset))
}
