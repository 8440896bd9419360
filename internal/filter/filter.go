// Package filter declares WHERE clauses as data: primitives that bind a
// table column to a named parameter, ordered sets of them, and statements
// that apply a set to a query.
//
// A Set is declared once and rendered per call against a live parameter
// object. Primitives whose parameter was not supplied contribute nothing:
//
//	var bookFilters = filter.NewSet(
//		filter.Equals("author", "name", "author_name"),
//		filter.Contains("book", "name", "title"),
//		filter.Equals("book", "deleted", "deleted"),
//	)
//
//	where := filter.Filter{Set: bookFilters, Params: filter.Values{"author_name": "hep tupman"}}
//	// renders: "author"."name" = ?
//
// Unsupplied means absent, nil, a nil pointer, the empty string, or a
// driver.Valuer that yields nil. The values false and 0 are supplied and
// always filter.
//
// Contains renders LIKE with the value wrapped in %...%. Case sensitivity
// is whatever the engine's LIKE does: insensitive for ASCII on SQLite and
// MySQL, sensitive on PostgreSQL.
package filter

import (
	"errors"
	"fmt"

	"github.com/roach88/txdal/internal/schema"
	"github.com/roach88/txdal/internal/sqlb"
)

// Primitive binds table.column to a named parameter with an operator.
// Primitives are immutable values.
type Primitive struct {
	Table  string
	Column string
	Param  string
	Op     sqlb.Op
}

func primitive(op sqlb.Op, table, column, param string) Primitive {
	return Primitive{Table: table, Column: column, Param: param, Op: op}
}

// Equals renders table.column = :param.
func Equals(table, column, param string) Primitive {
	return primitive(sqlb.OpEq, table, column, param)
}

// GE renders table.column >= :param.
func GE(table, column, param string) Primitive {
	return primitive(sqlb.OpGe, table, column, param)
}

// LE renders table.column <= :param.
func LE(table, column, param string) Primitive {
	return primitive(sqlb.OpLe, table, column, param)
}

// GT renders table.column > :param.
func GT(table, column, param string) Primitive {
	return primitive(sqlb.OpGt, table, column, param)
}

// LT renders table.column < :param.
func LT(table, column, param string) Primitive {
	return primitive(sqlb.OpLt, table, column, param)
}

// Contains renders table.column LIKE %:param%.
func Contains(table, column, param string) Primitive {
	return primitive(sqlb.OpLike, table, column, param)
}

func (p Primitive) String() string {
	return fmt.Sprintf("%s.%s %s :%s", p.Table, p.Column, p.Op, p.Param)
}

// column resolves and checks the primitive's table and column.
func (p Primitive) column(lookup schema.Lookup) (sqlb.Column, error) {
	t, err := lookup.GetTable(p.Table)
	if err != nil {
		return sqlb.Column{}, err
	}
	if _, err := t.Column(p.Column); err != nil {
		return sqlb.Column{}, err
	}
	return sqlb.Col(t, p.Column), nil
}

// Render returns the primitive's predicate, or false when its parameter
// was not supplied. Unknown tables and columns are errors whether or not
// the parameter was supplied.
func (p Primitive) Render(lookup schema.Lookup, params Params) (sqlb.Predicate, bool, error) {
	col, err := p.column(lookup)
	if err != nil {
		return nil, false, err
	}
	if params == nil {
		return nil, false, nil
	}
	raw, ok := params.Lookup(p.Param)
	if !ok {
		return nil, false, nil
	}
	v, ok, err := requested(raw)
	if err != nil {
		return nil, false, fmt.Errorf("param %s: %w", p.Param, err)
	}
	if !ok {
		return nil, false, nil
	}
	if p.Op == sqlb.OpLike {
		v = fmt.Sprintf("%%%v%%", v)
	}
	return sqlb.Compare{Left: col, Op: p.Op, Right: sqlb.P(v)}, true, nil
}

// Set is an ordered, immutable collection of primitives.
type Set struct {
	primitives []Primitive
}

// NewSet declares a set. Rendering preserves declaration order.
func NewSet(primitives ...Primitive) Set {
	return Set{primitives: append([]Primitive(nil), primitives...)}
}

// Primitives returns a copy of the set's primitives.
func (s Set) Primitives() []Primitive {
	return append([]Primitive(nil), s.primitives...)
}

// Len is the number of primitives.
func (s Set) Len() int {
	return len(s.primitives)
}

// Render returns the conjunction of every contributed predicate, in
// declaration order, or nil when none contributed.
func (s Set) Render(lookup schema.Lookup, params Params) (sqlb.Predicate, error) {
	var preds []sqlb.Predicate
	for _, p := range s.primitives {
		pred, ok, err := p.Render(lookup, params)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", p, err)
		}
		if ok {
			preds = append(preds, pred)
		}
	}
	return sqlb.Conjoin(preds...), nil
}

// Validate checks every primitive's table and column against lookup and
// returns all failures joined.
func (s Set) Validate(lookup schema.Lookup) error {
	var errs []error
	for _, p := range s.primitives {
		if _, err := p.column(lookup); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}
