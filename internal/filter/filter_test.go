package filter

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/txdal/internal/dal"
	"github.com/roach88/txdal/internal/dialect"
	"github.com/roach88/txdal/internal/schema"
	"github.com/roach88/txdal/internal/sqlb"
	"github.com/roach88/txdal/internal/testutil"
)

// tables is a schema.Lookup over hand-built metadata.
type tables map[string]*schema.Table

func (m tables) GetTable(name string) (*schema.Table, error) {
	if t, ok := m[name]; ok {
		return t, nil
	}
	return nil, &schema.LookupError{Code: schema.ErrCodeTableNotFound, Name: name}
}

var (
	author = schema.NewTable("", "author", schema.KindTable,
		schema.Column{Name: "id", PrimaryKey: true},
		schema.Column{Name: "name"},
	)
	book = schema.NewTable("", "book", schema.KindTable,
		schema.Column{Name: "id", PrimaryKey: true},
		schema.Column{Name: "author_id"},
		schema.Column{Name: "name"},
		schema.Column{Name: "catalog"},
		schema.Column{Name: "extra"},
		schema.Column{Name: "deleted"},
	)
	library = tables{"author": author, "book": book}

	bookFilters = NewSet(
		Equals("author", "name", "author_name"),
		Contains("book", "name", "title"),
		GE("book", "id", "min_id"),
		LT("book", "id", "max_id"),
		Equals("book", "deleted", "deleted"),
	)
)

func bookSelect() *sqlb.Select {
	return sqlb.NewSelect(sqlb.All(book)).
		From(book).
		Join(author, sqlb.Eq(sqlb.Col(author, "id"), sqlb.Col(book, "author_id"))).
		OrderBy(sqlb.Asc(sqlb.Col(book, "id")))
}

type bookParams struct {
	AuthorName string  `param:"author_name"`
	Title      *string `param:"title"`
	MinID      *int    `param:"min_id"`
	MaxID      int     `param:"-"`
	Deleted    *bool   `param:"deleted"`
}

func TestFilter_Golden(t *testing.T) {
	three := 3

	tests := []struct {
		name  string
		where Statement
	}{
		{
			name: "filter_all_params",
			where: Filter{
				Set: bookFilters,
				Params: Values{
					"author_name": "hep tupman",
					"title":       "Fin",
					"min_id":      0,
					"max_id":      10,
					"deleted":     false,
				},
				Limit:  5,
				Offset: 10,
			},
		},
		{
			name: "filter_partial_params",
			where: Filter{
				Set:    bookFilters,
				Params: Struct(&bookParams{MinID: &three, MaxID: 99}),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt := bookSelect()
			require.NoError(t, tt.where.FilterStmt(library, stmt))

			query, args, err := stmt.Build(dialect.SQLite{})
			require.NoError(t, err)
			testutil.AssertGoldenSQL(t, tt.name, query, args)
		})
	}
}

func TestPrimitive_Operators(t *testing.T) {
	tests := []struct {
		p    Primitive
		want sqlb.Op
	}{
		{Equals("book", "id", "v"), sqlb.OpEq},
		{GE("book", "id", "v"), sqlb.OpGe},
		{LE("book", "id", "v"), sqlb.OpLe},
		{GT("book", "id", "v"), sqlb.OpGt},
		{LT("book", "id", "v"), sqlb.OpLt},
		{Contains("book", "name", "v"), sqlb.OpLike},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			pred, ok, err := tt.p.Render(library, Values{"v": 7})
			require.NoError(t, err)
			require.True(t, ok)

			cmp, isCompare := pred.(sqlb.Compare)
			require.True(t, isCompare)
			assert.Equal(t, tt.want, cmp.Op)
			assert.Equal(t, sqlb.Col(book, tt.p.Column), cmp.Left)
		})
	}
}

func TestPrimitive_ContainsWrapsValue(t *testing.T) {
	pred, ok, err := Contains("book", "name", "title").Render(library, Values{"title": "Fin"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sqlb.P("%Fin%"), pred.(sqlb.Compare).Right)
}

func TestPrimitive_SkipPolicy(t *testing.T) {
	var (
		nilBool  *bool
		falseVal = false
		zeroVal  = 0
		emptyStr = ""
	)

	tests := []struct {
		name    string
		params  Params
		applied bool
		bound   any
	}{
		{"nil params", nil, false, nil},
		{"absent", Values{}, false, nil},
		{"nil", Values{"v": nil}, false, nil},
		{"nil pointer", Values{"v": nilBool}, false, nil},
		{"empty string", Values{"v": ""}, false, nil},
		{"pointer to empty string", Values{"v": &emptyStr}, false, nil},
		{"invalid NullString", Values{"v": sql.NullString{}}, false, nil},
		{"empty NullString", Values{"v": sql.NullString{Valid: true}}, false, nil},
		{"false", Values{"v": false}, true, false},
		{"zero", Values{"v": 0}, true, 0},
		{"zero float", Values{"v": 0.0}, true, 0.0},
		{"pointer to false", Values{"v": &falseVal}, true, false},
		{"pointer to zero", Values{"v": &zeroVal}, true, 0},
		{"valid NullBool false", Values{"v": sql.NullBool{Valid: true}}, true, false},
		{"valid NullInt64 zero", Values{"v": sql.NullInt64{Valid: true}}, true, int64(0)},
		{"string", Values{"v": "x"}, true, "x"},
		{"whitespace", Values{"v": " "}, true, " "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, ok, err := Equals("book", "deleted", "v").Render(library, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.applied, ok)
			if !tt.applied {
				assert.Nil(t, pred)
				return
			}
			assert.Equal(t, sqlb.P(tt.bound), pred.(sqlb.Compare).Right)
		})
	}
}

func TestPrimitive_ParamsNotMutated(t *testing.T) {
	params := Values{"title": "Fin", "deleted": false}
	_, err := bookFilters.Render(library, params)
	require.NoError(t, err)
	assert.Equal(t, Values{"title": "Fin", "deleted": false}, params)
}

func TestPrimitive_UnknownNames(t *testing.T) {
	_, _, err := Equals("shelf", "id", "v").Render(library, Values{})
	assert.True(t, schema.IsTableNotFound(err), "checked even without a value")

	_, _, err = Equals("book", "isbn", "v").Render(library, Values{"v": "x"})
	assert.True(t, schema.IsColumnNotFound(err))
}

func TestSet_RenderEmpty(t *testing.T) {
	pred, err := bookFilters.Render(library, Values{})
	require.NoError(t, err)
	assert.Nil(t, pred)

	pred, err = NewSet().Render(library, Values{"v": 1})
	require.NoError(t, err)
	assert.Nil(t, pred)
}

func TestSet_RenderOrder(t *testing.T) {
	pred, err := bookFilters.Render(library, Values{"deleted": false, "author_name": "a"})
	require.NoError(t, err)

	and, ok := pred.(sqlb.And)
	require.True(t, ok)
	require.Len(t, and.Predicates, 2)
	assert.Equal(t, sqlb.Col(author, "name"), and.Predicates[0].(sqlb.Compare).Left)
	assert.Equal(t, sqlb.Col(book, "deleted"), and.Predicates[1].(sqlb.Compare).Left)
}

func TestSet_Validate(t *testing.T) {
	assert.NoError(t, bookFilters.Validate(library))

	broken := NewSet(
		Equals("book", "id", "id"),
		Equals("book", "isbn", "isbn"),
		Equals("shelf", "id", "shelf"),
	)
	err := broken.Validate(library)
	require.Error(t, err)
	assert.True(t, schema.IsColumnNotFound(err))
	assert.True(t, schema.IsTableNotFound(err))
}

func TestSet_Immutable(t *testing.T) {
	prims := []Primitive{Equals("book", "id", "id")}
	s := NewSet(prims...)
	prims[0] = Equals("book", "name", "name")

	got := s.Primitives()
	assert.Equal(t, "id", got[0].Column)
	got[0].Column = "changed"
	assert.Equal(t, "id", s.Primitives()[0].Column)
	assert.Equal(t, 1, s.Len())
}

func TestStruct_Lookup(t *testing.T) {
	type Embedded struct {
		Catalog string `param:"catalog"`
	}
	type params struct {
		Embedded
		Name   string
		Hidden string `param:"-"`
		secret string
	}

	p := Struct(params{Embedded: Embedded{Catalog: "Boring"}, Name: "x", Hidden: "h", secret: "s"})

	v, ok := p.Lookup("catalog")
	assert.True(t, ok)
	assert.Equal(t, "Boring", v)

	v, ok = p.Lookup("Name")
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	_, ok = p.Lookup("Hidden")
	assert.False(t, ok)
	_, ok = p.Lookup("secret")
	assert.False(t, ok)
	_, ok = p.Lookup("missing")
	assert.False(t, ok)

	_, ok = Struct((*params)(nil)).Lookup("Name")
	assert.False(t, ok)
	_, ok = Struct(42).Lookup("Name")
	assert.False(t, ok)
}

func TestStruct_NilEmbeddedPointer(t *testing.T) {
	type Inner struct {
		Catalog string `param:"catalog"`
	}
	type outer struct {
		*Inner
	}

	_, ok := Struct(outer{}).Lookup("catalog")
	assert.False(t, ok)

	v, ok := Struct(outer{Inner: &Inner{Catalog: "c"}}).Lookup("catalog")
	assert.True(t, ok)
	assert.Equal(t, "c", v)
}

func TestIDFilter(t *testing.T) {
	stmt := sqlb.NewDelete(book)
	require.NoError(t, IDFilter{ID: 0, Table: "book"}.FilterStmt(library, stmt))

	query, args, err := stmt.Build(dialect.SQLite{})
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "book" WHERE "book"."id" = ?`, query)
	assert.Equal(t, []any{int64(0)}, args, "id 0 is applied")

	stmt = sqlb.NewDelete(book)
	require.NoError(t, IDFilter{ID: 5, Table: "book", Column: "author_id"}.FilterStmt(library, stmt))
	query, _, err = stmt.Build(dialect.SQLite{})
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "book" WHERE "book"."author_id" = ?`, query)
}

func TestChain(t *testing.T) {
	stmt := sqlb.NewUpdate(book).Set("name", "x")
	where := Chain(
		IDFilter{ID: 1, Table: "book"},
		nil,
		Filter{Set: bookFilters, Params: Values{"deleted": false}, Limit: 3},
	)
	require.NoError(t, Apply(library, where, stmt))

	query, args, err := stmt.Build(dialect.SQLite{})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "book" SET "name" = ? WHERE "book"."id" = ? AND "book"."deleted" = ?`, query)
	assert.Equal(t, []any{"x", int64(1), false}, args)

	assert.NoError(t, Apply(library, nil, stmt))
}

type aliasParams struct {
	Values
	ids string
}

func (p aliasParams) SetAliasedTable(reg AliasRegistry) error {
	return reg.SetAlias(schema.NewAlias("wanted", "json_each(?)", []any{p.ids}, "value"))
}

type registry struct {
	tables
	set []*schema.Table
}

func (r *registry) SetAlias(a *schema.Table) error {
	r.set = append(r.set, a)
	return nil
}

func TestFilter_SetAliasedTable(t *testing.T) {
	reg := &registry{tables: library}

	require.NoError(t, Filter{Params: Values{}}.SetAliasedTable(reg))
	assert.Empty(t, reg.set)

	require.NoError(t, Filter{Params: aliasParams{ids: "[1]"}}.SetAliasedTable(reg))
	require.Len(t, reg.set, 1)
	assert.Equal(t, "wanted", reg.set[0].Name)
}

// TestFilter_FalseAndZeroAgainstDatabase runs both branches of the skip
// policy against real rows.
func TestFilter_FalseAndZeroAgainstDatabase(t *testing.T) {
	db := testutil.OpenSQLite(t, testutil.LibraryDDL, `
		INSERT INTO author (id, name) VALUES (1, 'hep tupman');
		INSERT INTO book (author_id, name, catalog, deleted) VALUES
			(1, 'Gone with the Fin', 'Boring', 0),
			(1, 'Withdrawn', 'Gone', 1);
	`)
	l, err := dal.Reflect(context.Background(), db, dialect.SQLite{}, schema.Options{})
	require.NoError(t, err)

	deleted := NewSet(Equals("book", "deleted", "deleted"))
	names := func(params Params) []string {
		var out []string
		err := dal.InTransaction(context.Background(), l, func(tx *dal.Transaction) error {
			b, err := tx.GetTable("book")
			if err != nil {
				return err
			}
			stmt := sqlb.NewSelect(sqlb.Col(b, "name")).From(b).OrderBy(sqlb.Asc(sqlb.Col(b, "id")))
			if err := (Filter{Set: deleted, Params: params}).FilterStmt(tx, stmt); err != nil {
				return err
			}
			rows, err := tx.Execute(context.Background(), stmt)
			if err != nil {
				return err
			}
			defer rows.Close()
			for rows.Next() {
				var n string
				if err := rows.Scan(&n); err != nil {
					return err
				}
				out = append(out, n)
			}
			return rows.Err()
		})
		require.NoError(t, err)
		return out
	}

	assert.Equal(t, []string{"Gone with the Fin", "Withdrawn"}, names(Values{}), "unset: no predicate")
	assert.Equal(t, []string{"Gone with the Fin", "Withdrawn"}, names(Values{"deleted": nil}))
	assert.Equal(t, []string{"Gone with the Fin"}, names(Values{"deleted": false}), "false filters")
	assert.Equal(t, []string{"Gone with the Fin"}, names(Values{"deleted": 0}), "0 filters")
	assert.Equal(t, []string{"Withdrawn"}, names(Values{"deleted": true}))
}
