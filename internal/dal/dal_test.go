package dal_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/txdal/internal/config"
	"github.com/roach88/txdal/internal/dal"
	"github.com/roach88/txdal/internal/dialect"
	"github.com/roach88/txdal/internal/schema"
	"github.com/roach88/txdal/internal/sqlb"
	"github.com/roach88/txdal/internal/testutil"
)

var errBoom = errors.New("boom")

func newLibrary(t *testing.T, aliases ...*schema.Table) *dal.DataAccessLayer {
	t.Helper()
	db := testutil.OpenSQLite(t, testutil.LibraryDDL)
	l, err := dal.Reflect(context.Background(), db, dialect.SQLite{}, schema.Options{
		Views:   true,
		Aliases: aliases,
	})
	require.NoError(t, err)
	return l
}

func countAuthors(t *testing.T, l *dal.DataAccessLayer) int {
	t.Helper()
	var n int
	require.NoError(t, l.DB().Get(&n, "SELECT count(*) FROM author"))
	return n
}

func insertAuthor(ctx context.Context, tx *dal.Transaction, name string) error {
	_, err := tx.ExecRaw(ctx, "INSERT INTO author (name) VALUES (?)", name)
	return err
}

func TestReflect_Lookups(t *testing.T) {
	ids := schema.NewAlias("wanted_ids", "json_each(?)", []any{"[]"}, "value")
	l := newLibrary(t, ids)

	assert.Equal(t, []string{"author", "book"}, l.Tables())
	assert.Equal(t, []string{"book_author"}, l.Views())
	assert.Equal(t, []string{"wanted_ids"}, l.Aliases())
	assert.Equal(t, "sqlite", l.Dialect().Name())
	assert.Equal(t, "dal(sqlite, 2 tables, 1 views)", l.String())

	book, err := l.GetTable("book")
	require.NoError(t, err)
	assert.Equal(t, "book", book.Name)

	view, err := l.GetTable("book_author")
	require.NoError(t, err)
	assert.Equal(t, schema.KindView, view.Kind)

	alias, err := l.GetTable("wanted_ids")
	require.NoError(t, err)
	assert.Same(t, ids, alias)

	_, err = l.GetTable("missing")
	assert.True(t, schema.IsTableNotFound(err))

	_, err = l.GetView("book")
	assert.True(t, schema.IsViewNotFound(err))

	_, err = l.GetAlias("book")
	assert.True(t, schema.IsAliasNotFound(err))

	groups, err := l.GetUniqueConstraints("book")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"catalog"}}, groups)
}

func TestConnect(t *testing.T) {
	dsn := testutil.SQLiteDSN(t)
	seed, err := sqlx.Open("sqlite3", dsn)
	require.NoError(t, err)
	_, err = seed.Exec(testutil.LibraryDDL)
	require.NoError(t, err)
	require.NoError(t, seed.Close())

	l, err := dal.Connect(context.Background(), config.Database{
		Driver:       "sqlite3",
		DSN:          dsn,
		Views:        false,
		MaxIdleConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	assert.Equal(t, []string{"author", "book"}, l.Tables())
	assert.Empty(t, l.Views())
	assert.Equal(t, 1, l.DB().Stats().MaxOpenConnections, "sqlite pools default to one connection")
}

func TestConnect_Failures(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Database
	}{
		{"unknown driver", config.Database{Driver: "oracle", DSN: "x"}},
		{"unreachable", config.Database{Driver: "sqlite3", DSN: "file:/nonexistent/dir/x.db?mode=ro"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dal.Connect(context.Background(), tt.cfg)
			require.Error(t, err)

			var re *schema.ReflectionError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, "connect", re.Stage)
		})
	}
}

func TestInTransaction_Commit(t *testing.T) {
	l := newLibrary(t)
	ctx := context.Background()

	err := dal.InTransaction(ctx, l, func(tx *dal.Transaction) error {
		return insertAuthor(ctx, tx, "hep tupman")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countAuthors(t, l))
}

func TestInTransaction_ErrorRollsBackUnchanged(t *testing.T) {
	l := newLibrary(t)
	ctx := context.Background()

	err := dal.InTransaction(ctx, l, func(tx *dal.Transaction) error {
		if err := insertAuthor(ctx, tx, "hep tupman"); err != nil {
			return err
		}
		return errBoom
	})
	assert.Same(t, errBoom, err, "the callback's error is returned as-is")
	assert.Equal(t, 0, countAuthors(t, l))
}

func TestInTransaction_PanicRollsBack(t *testing.T) {
	l := newLibrary(t)
	ctx := context.Background()

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = dal.InTransaction(ctx, l, func(tx *dal.Transaction) error {
			require.NoError(t, insertAuthor(ctx, tx, "hep tupman"))
			panic("kaboom")
		})
	})
	assert.Equal(t, 0, countAuthors(t, l))
}

func TestInTransaction_WithoutCommit(t *testing.T) {
	l := newLibrary(t)
	ctx := context.Background()

	err := dal.InTransaction(ctx, l, func(tx *dal.Transaction) error {
		return insertAuthor(ctx, tx, "hep tupman")
	}, dal.WithoutCommit())
	require.NoError(t, err)
	assert.Equal(t, 0, countAuthors(t, l))
}

func TestInTransaction_CommitFailure(t *testing.T) {
	l := newLibrary(t)
	ctx := context.Background()

	err := dal.InTransaction(ctx, l, func(tx *dal.Transaction) error {
		// Ending the transaction early makes the final commit fail.
		return tx.Tx().Rollback()
	})
	require.Error(t, err)
	assert.True(t, dal.IsTransactionError(err))

	var te *dal.TransactionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "commit", te.Op)
	assert.ErrorIs(t, err, sql.ErrTxDone)
}

func TestInTransaction_ErrorAfterTxEnded(t *testing.T) {
	l := newLibrary(t)
	ctx := context.Background()

	// Rolling back an already-ended transaction must not mask the error.
	err := dal.InTransaction(ctx, l, func(tx *dal.Transaction) error {
		require.NoError(t, tx.Tx().Rollback())
		return errBoom
	})
	assert.Same(t, errBoom, err)
}

func TestInTransaction_CancelledContext(t *testing.T) {
	l := newLibrary(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := dal.InTransaction(ctx, l, func(tx *dal.Transaction) error {
		if err := insertAuthor(ctx, tx, "hep tupman"); err != nil {
			return err
		}
		cancel()
		return insertAuthor(ctx, tx, "second")
	})
	require.Error(t, err)
	assert.Equal(t, 0, countAuthors(t, l))
}

func TestInTransaction_BeginFailure(t *testing.T) {
	l := newLibrary(t)
	require.NoError(t, l.Close())

	called := false
	err := dal.InTransaction(context.Background(), l, func(*dal.Transaction) error {
		called = true
		return nil
	})
	assert.False(t, called)

	var te *dal.TransactionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "begin", te.Op)
}

func TestInTransaction_ReadOnly(t *testing.T) {
	l := newLibrary(t)
	ctx := context.Background()

	err := dal.InTransaction(ctx, l, func(tx *dal.Transaction) error {
		var n int
		return tx.Tx().GetContext(ctx, &n, "SELECT count(*) FROM book")
	}, dal.WithTxOptions(&sql.TxOptions{ReadOnly: true}))
	assert.NoError(t, err)
}

func TestTransaction_Execute(t *testing.T) {
	l := newLibrary(t)
	ctx := context.Background()

	err := dal.InTransaction(ctx, l, func(tx *dal.Transaction) error {
		require.NoError(t, insertAuthor(ctx, tx, "hep tupman"))

		author, err := tx.GetTable("author")
		require.NoError(t, err)

		rows, err := tx.Execute(ctx, sqlb.NewSelect(sqlb.Col(author, "name")).
			From(author).
			Where(sqlb.Eq(sqlb.Col(author, "id"), 1)))
		require.NoError(t, err)
		defer rows.Close()

		var names []string
		for rows.Next() {
			var name string
			require.NoError(t, rows.Scan(&name))
			names = append(names, name)
		}
		require.NoError(t, rows.Err())
		assert.Equal(t, []string{"hep tupman"}, names)
		return nil
	}, dal.WithoutCommit())
	require.NoError(t, err)
}

func TestTransaction_ExecuteBuildError(t *testing.T) {
	l := newLibrary(t)
	ctx := context.Background()

	err := dal.InTransaction(ctx, l, func(tx *dal.Transaction) error {
		author, err := tx.GetTable("author")
		require.NoError(t, err)

		_, err = tx.Execute(ctx, sqlb.NewSelect(sqlb.Col(author, "isbn")).From(author))
		return err
	})
	assert.True(t, schema.IsColumnNotFound(err))
}

func TestTransaction_Exec(t *testing.T) {
	l := newLibrary(t)
	ctx := context.Background()

	err := dal.InTransaction(ctx, l, func(tx *dal.Transaction) error {
		author, err := tx.GetTable("author")
		require.NoError(t, err)

		res, err := tx.Exec(ctx, sqlb.NewInsert(author).Set("name", "hep tupman"))
		require.NoError(t, err)
		n, err := res.RowsAffected()
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countAuthors(t, l))
}

func TestTransaction_SetAlias(t *testing.T) {
	l := newLibrary(t)
	ctx := context.Background()
	picked := schema.NewAlias("picked", "json_each(?)", []any{"[2]"}, "value")

	err := dal.InTransaction(ctx, l, func(tx *dal.Transaction) error {
		require.NoError(t, tx.SetAlias(picked))

		got, err := tx.GetTable("picked")
		require.NoError(t, err)
		assert.Same(t, picked, got)

		rows, err := tx.Execute(ctx, sqlb.NewSelect(sqlb.Col(got, "value")).From(got))
		require.NoError(t, err)
		defer rows.Close()

		var values []int
		for rows.Next() {
			var v int
			require.NoError(t, rows.Scan(&v))
			values = append(values, v)
		}
		assert.Equal(t, []int{2}, values)
		return rows.Err()
	})
	require.NoError(t, err)

	// The alias does not leak into other transactions or the layer.
	err = dal.InTransaction(ctx, l, func(tx *dal.Transaction) error {
		_, err := tx.GetTable("picked")
		return err
	})
	assert.True(t, schema.IsTableNotFound(err))
}

func TestTransaction_SetAliasInvalid(t *testing.T) {
	l := newLibrary(t)

	err := dal.InTransaction(context.Background(), l, func(tx *dal.Transaction) error {
		return tx.SetAlias(schema.NewTable("", "book", schema.KindTable))
	})
	assert.ErrorContains(t, err, "invalid alias")
}

func TestTransaction_PassThrough(t *testing.T) {
	l := newLibrary(t)

	err := dal.InTransaction(context.Background(), l, func(tx *dal.Transaction) error {
		v, err := tx.GetView("book_author")
		require.NoError(t, err)
		assert.Equal(t, "book_author", v.Name)

		groups, err := tx.GetUniqueConstraints("book")
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"catalog"}}, groups)

		assert.Same(t, l, tx.DAL())
		assert.Equal(t, "sqlite", tx.Dialect().Name())
		return nil
	})
	require.NoError(t, err)
}

func TestTransaction_RollbackTwice(t *testing.T) {
	l := newLibrary(t)

	tx, err := l.Begin(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, tx.Rollback(), "rolling back an ended transaction is a no-op")

	err = tx.Commit()
	assert.True(t, dal.IsTransactionError(err))
}

func TestCreateDatabase_Unsupported(t *testing.T) {
	l := newLibrary(t)

	err := dal.CreateDatabase(context.Background(), l.DB(), l.Dialect(), "library")
	assert.ErrorContains(t, err, "not supported by sqlite")

	err = dal.DropDatabase(context.Background(), l.DB(), l.Dialect(), "library")
	assert.ErrorContains(t, err, "not supported by sqlite")
}
