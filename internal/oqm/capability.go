// Package oqm maps declared queries onto entity types.
//
// An entity type opts into operations by implementing capabilities on a
// value receiver:
//
//	type Book struct {
//		ID   int64  `db:"id"`
//		Name string `db:"name"`
//	}
//
//	func (Book) QueryStmt(tx *dal.Transaction, where filter.Statement) (*sqlb.Select, error) {
//		book, err := tx.GetTable("book")
//		if err != nil {
//			return nil, err
//		}
//		stmt := sqlb.NewSelect(sqlb.All(book)).From(book).OrderBy(sqlb.Asc(sqlb.Col(book, "id")))
//		return stmt, oqm.ApplyFilter(tx, where, stmt)
//	}
//
// Executors are generic over the capability they need, so a missing
// capability is a compile error:
//
//	books, err := oqm.NewListQ[Book](where).List(ctx, tx)
//
// Methods are called on the zero value of the entity type, so entity types
// must be structs (not pointers) and the methods must not read fields.
// Rows map onto entities by column name through sqlx `db` tags.
package oqm

import (
	"github.com/roach88/txdal/internal/dal"
	"github.com/roach88/txdal/internal/filter"
	"github.com/roach88/txdal/internal/sqlb"
)

// Queryable entities build the SELECT behind list and detail queries.
// The statement must apply where and owns its ordering.
type Queryable interface {
	QueryStmt(tx *dal.Transaction, where filter.Statement) (*sqlb.Select, error)
}

// Insertable entities build an INSERT of form returning the full row.
type Insertable[F any] interface {
	InsertStmt(tx *dal.Transaction, form F) (*sqlb.Insert, error)
}

// Updateable entities build an UPDATE from form, restricted by the primary
// key the form carries and by where when it is not nil, returning the
// full row.
type Updateable[F any] interface {
	UpdateStmt(tx *dal.Transaction, form F, where filter.Statement) (*sqlb.Update, error)
}

// Deleteable entities build a DELETE from form returning the full row.
type Deleteable[F any] interface {
	DeleteStmt(tx *dal.Transaction, form F) (*sqlb.Delete, error)
}

// Paginateable entities carry the unpaginated row count, selected with
// sqlb.TotalCount().
type Paginateable interface {
	Queryable
	TotalCount() int
}

// ApplyFilter applies where to stmt through tx. A nil where is a no-op.
func ApplyFilter(tx *dal.Transaction, where filter.Statement, stmt sqlb.Filterable) error {
	return filter.Apply(tx, where, stmt)
}
