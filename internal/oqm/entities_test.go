package oqm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/txdal/internal/dal"
	"github.com/roach88/txdal/internal/dialect"
	"github.com/roach88/txdal/internal/filter"
	"github.com/roach88/txdal/internal/jsonb"
	"github.com/roach88/txdal/internal/oqm"
	"github.com/roach88/txdal/internal/schema"
	"github.com/roach88/txdal/internal/sqlb"
	"github.com/roach88/txdal/internal/testutil"
)

// Book is a query object over book joined to its author. It is not 1:1
// with a table: author_name comes from the join.
type Book struct {
	ID         int64     `db:"id"`
	AuthorID   int64     `db:"author_id"`
	Name       string    `db:"name"`
	Catalog    string    `db:"catalog"`
	Extra      jsonb.Map `db:"extra"`
	Deleted    bool      `db:"deleted"`
	AuthorName string    `db:"author_name"`
}

var bookFilters = filter.NewSet(
	filter.Equals("author", "name", "author_name"),
	filter.Contains("book", "name", "name"),
	filter.Equals("book", "catalog", "catalog"),
	filter.Equals("book", "deleted", "deleted"),
)

func (Book) QueryStmt(tx *dal.Transaction, where filter.Statement) (*sqlb.Select, error) {
	book, err := tx.GetTable("book")
	if err != nil {
		return nil, err
	}
	author, err := tx.GetTable("author")
	if err != nil {
		return nil, err
	}
	stmt := sqlb.NewSelect(sqlb.All(book), sqlb.As(sqlb.Col(author, "name"), "author_name")).
		From(book).
		Join(author, sqlb.Eq(sqlb.Col(author, "id"), sqlb.Col(book, "author_id"))).
		OrderBy(sqlb.Asc(sqlb.Col(book, "id")))
	return stmt, oqm.ApplyFilter(tx, where, stmt)
}

// BookForm carries the fields a caller may supply on insert.
type BookForm struct {
	AuthorID int64
	Name     string
	Catalog  string
	Extra    jsonb.Map
}

func (Book) InsertStmt(tx *dal.Transaction, form BookForm) (*sqlb.Insert, error) {
	book, err := tx.GetTable("book")
	if err != nil {
		return nil, err
	}
	stmt := sqlb.NewInsert(book).
		Set("author_id", form.AuthorID).
		Set("name", form.Name).
		Set("catalog", form.Catalog)
	if form.Extra != nil {
		stmt.Set("extra", form.Extra)
	}
	return stmt.ReturningAll(), nil
}

// BookPatch updates the non-nil fields of one book.
type BookPatch struct {
	ID      int64
	Name    *string
	Catalog *string
}

func (Book) UpdateStmt(tx *dal.Transaction, form BookPatch, where filter.Statement) (*sqlb.Update, error) {
	book, err := tx.GetTable("book")
	if err != nil {
		return nil, err
	}
	stmt := sqlb.NewUpdate(book)
	if form.Name != nil {
		stmt.Set("name", *form.Name)
	}
	if form.Catalog != nil {
		stmt.Set("catalog", *form.Catalog)
	}
	if err := oqm.ApplyFilter(tx, filter.Chain(filter.IDFilter{ID: form.ID, Table: "book"}, where), stmt); err != nil {
		return nil, err
	}
	return stmt.ReturningAll(), nil
}

// BookID identifies one book.
type BookID struct {
	ID int64
}

func (Book) DeleteStmt(tx *dal.Transaction, form BookID) (*sqlb.Delete, error) {
	book, err := tx.GetTable("book")
	if err != nil {
		return nil, err
	}
	stmt := sqlb.NewDelete(book).ReturningAll()
	return stmt, oqm.ApplyFilter(tx, filter.IDFilter{ID: form.ID, Table: "book"}, stmt)
}

// BookPage is Book plus the unpaginated total.
type BookPage struct {
	Book
	Total int `db:"total_count"`
}

func (BookPage) QueryStmt(tx *dal.Transaction, where filter.Statement) (*sqlb.Select, error) {
	stmt, err := Book{}.QueryStmt(tx, where)
	if err != nil {
		return nil, err
	}
	return stmt.Columns(sqlb.TotalCount()), nil
}

func (p BookPage) TotalCount() int { return p.Total }

// WantedBook lists books whose ids appear in a per-transaction json_each
// alias registered by its parameter object.
type WantedBook struct {
	ID       int64     `db:"id"`
	AuthorID int64     `db:"author_id"`
	Name     string    `db:"name"`
	Catalog  string    `db:"catalog"`
	Extra    jsonb.Map `db:"extra"`
	Deleted  bool      `db:"deleted"`
}

func (WantedBook) QueryStmt(tx *dal.Transaction, where filter.Statement) (*sqlb.Select, error) {
	book, err := tx.GetTable("book")
	if err != nil {
		return nil, err
	}
	wanted, err := tx.GetTable("wanted")
	if err != nil {
		return nil, err
	}
	stmt := sqlb.NewSelect(sqlb.All(book)).
		From(book).
		Join(wanted, sqlb.Eq(sqlb.Col(wanted, "value"), sqlb.Col(book, "id"))).
		OrderBy(sqlb.Asc(sqlb.Col(book, "id")))
	return stmt, oqm.ApplyFilter(tx, where, stmt)
}

type wantedParams struct {
	filter.Values
	ids string
}

func (p wantedParams) SetAliasedTable(reg filter.AliasRegistry) error {
	return reg.SetAlias(schema.NewAlias("wanted", "json_each(?)", []any{p.ids}, "value"))
}

const seedLibrary = `
INSERT INTO author (id, name) VALUES (1, 'hep tupman'), (2, 'Ann Other');
INSERT INTO book (id, author_id, name, catalog) VALUES
	(1, 1, 'Gone with the Fin', 'Boring'),
	(2, 2, 'The Finishing School', 'Thrilling'),
	(3, 2, 'Quiet Harbour', 'Calm');
`

func newLibrary(t *testing.T, seed ...string) *dal.DataAccessLayer {
	t.Helper()
	db := testutil.OpenSQLite(t, append([]string{testutil.LibraryDDL}, seed...)...)
	l, err := dal.Reflect(context.Background(), db, dialect.SQLite{}, schema.Options{Views: true})
	require.NoError(t, err)
	return l
}

// inTx runs fn in a transaction that commits.
func inTx(t *testing.T, l *dal.DataAccessLayer, fn func(ctx context.Context, tx *dal.Transaction) error) error {
	t.Helper()
	ctx := context.Background()
	return dal.InTransaction(ctx, l, func(tx *dal.Transaction) error {
		return fn(ctx, tx)
	})
}

func ptr[T any](v T) *T { return &v }
