package filter

import (
	"github.com/roach88/txdal/internal/schema"
	"github.com/roach88/txdal/internal/sqlb"
)

// Statement applies itself to a statement under construction. The
// transaction is passed as the lookup so that per-transaction aliases
// resolve.
type Statement interface {
	FilterStmt(lookup schema.Lookup, stmt sqlb.Filterable) error
}

// StatementFunc adapts a function to Statement.
type StatementFunc func(lookup schema.Lookup, stmt sqlb.Filterable) error

// FilterStmt implements Statement.
func (f StatementFunc) FilterStmt(lookup schema.Lookup, stmt sqlb.Filterable) error {
	return f(lookup, stmt)
}

// AliasRegistry accepts per-transaction table-valued aliases.
// *dal.Transaction implements it.
type AliasRegistry interface {
	schema.Lookup
	SetAlias(alias *schema.Table) error
}

// Aliaser is implemented by parameter objects that need a table-valued
// alias in place before the query is built, for example a json_each over
// a list of wanted ids.
type Aliaser interface {
	SetAliasedTable(reg AliasRegistry) error
}

// Filter renders Set against Params, then applies Offset and Limit when
// the statement is a SELECT. Zero Offset or Limit leaves it unset.
type Filter struct {
	Set    Set
	Params Params
	Limit  int
	Offset int
}

// FilterStmt implements Statement.
func (f Filter) FilterStmt(lookup schema.Lookup, stmt sqlb.Filterable) error {
	pred, err := f.Set.Render(lookup, f.Params)
	if err != nil {
		return err
	}
	stmt.AddWhere(pred)

	if sel, ok := stmt.(*sqlb.Select); ok {
		if f.Offset > 0 {
			sel.Offset(f.Offset)
		}
		if f.Limit > 0 {
			sel.Limit(f.Limit)
		}
	}
	return nil
}

// SetAliasedTable forwards to Params when it is an Aliaser.
func (f Filter) SetAliasedTable(reg AliasRegistry) error {
	if a, ok := f.Params.(Aliaser); ok {
		return a.SetAliasedTable(reg)
	}
	return nil
}

// IDFilter matches a single row by identifier: Table.Column = ID.
// Column defaults to "id".
type IDFilter struct {
	ID     int64
	Table  string
	Column string
}

// FilterStmt implements Statement.
func (f IDFilter) FilterStmt(lookup schema.Lookup, stmt sqlb.Filterable) error {
	column := f.Column
	if column == "" {
		column = "id"
	}
	set := NewSet(Equals(f.Table, column, "id"))
	pred, err := set.Render(lookup, Values{"id": f.ID})
	if err != nil {
		return err
	}
	stmt.AddWhere(pred)
	return nil
}

// Chain applies each non-nil statement in order.
func Chain(stmts ...Statement) Statement {
	return StatementFunc(func(lookup schema.Lookup, stmt sqlb.Filterable) error {
		for _, s := range stmts {
			if s == nil {
				continue
			}
			if err := s.FilterStmt(lookup, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

// Apply runs where against stmt; a nil where is a no-op.
func Apply(lookup schema.Lookup, where Statement, stmt sqlb.Filterable) error {
	if where == nil {
		return nil
	}
	return where.FilterStmt(lookup, stmt)
}
