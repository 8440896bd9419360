package dialect

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForDriver(t *testing.T) {
	testCases := []struct {
		driver string
		name   string
	}{
		{"sqlite3", "sqlite"},
		{"sqlite", "sqlite"},
		{"postgres", "postgres"},
		{"pgx", "postgres"},
		{"mysql", "mysql"},
	}

	for _, tc := range testCases {
		t.Run(tc.driver, func(t *testing.T) {
			d, err := ForDriver(tc.driver)
			require.NoError(t, err)
			assert.Equal(t, tc.name, d.Name())
		})
	}

	_, err := ForDriver("mssql")
	assert.Error(t, err)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?", SQLite{}.Placeholder(3))
	assert.Equal(t, "$3", Postgres{}.Placeholder(3))
	assert.Equal(t, "?", MySQL{}.Placeholder(3))
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"book"`, SQLite{}.QuoteIdent("book"))
	assert.Equal(t, `"we""ird"`, Postgres{}.QuoteIdent(`we"ird`))
	assert.Equal(t, "`book`", MySQL{}.QuoteIdent("book"))
	assert.Equal(t, `"w"."widgy"`, QuoteQualified(Postgres{}, "w.widgy"))
}

func TestLimitOffset(t *testing.T) {
	testCases := []struct {
		name          string
		d             Dialect
		limit, offset int
		want          string
	}{
		{"sqlite none", SQLite{}, 0, 0, ""},
		{"sqlite limit", SQLite{}, 10, 0, " LIMIT 10"},
		{"sqlite both", SQLite{}, 10, 5, " LIMIT 10 OFFSET 5"},
		{"sqlite offset only", SQLite{}, 0, 5, " LIMIT -1 OFFSET 5"},
		{"postgres offset only", Postgres{}, 0, 5, " OFFSET 5"},
		{"postgres both", Postgres{}, 10, 5, " LIMIT 10 OFFSET 5"},
		{"mysql offset only", MySQL{}, 0, 5, " LIMIT 18446744073709551615 OFFSET 5"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.d.LimitOffset(tc.limit, tc.offset))
		})
	}
}

func TestCreateTempTable(t *testing.T) {
	assert.Equal(t, `CREATE TEMP TABLE "tmp" (record jsonb) ON COMMIT DROP`,
		Postgres{}.CreateTempTable("tmp", "record jsonb"))
	assert.Equal(t, `CREATE TEMP TABLE "tmp" (record text)`,
		SQLite{}.CreateTempTable("tmp", "record text"))
	assert.True(t, Postgres{}.DropsTempOnCommit())
	assert.False(t, SQLite{}.DropsTempOnCommit())
}

func TestMaxParams(t *testing.T) {
	assert.Equal(t, 32766, SQLite{}.MaxParams())
	assert.Equal(t, 65535, Postgres{}.MaxParams())
	assert.Equal(t, 65535, MySQL{}.MaxParams())
}

func TestIsIntegrityViolation(t *testing.T) {
	t.Run("sqlite", func(t *testing.T) {
		err := fmt.Errorf("insert: %w", sqlite3.Error{Code: sqlite3.ErrConstraint})
		assert.True(t, SQLite{}.IsIntegrityViolation(err))
		assert.False(t, SQLite{}.IsIntegrityViolation(sqlite3.Error{Code: sqlite3.ErrBusy}))
	})

	t.Run("lib/pq", func(t *testing.T) {
		assert.True(t, Postgres{}.IsIntegrityViolation(&pq.Error{Code: "23505"}))
		assert.False(t, Postgres{}.IsIntegrityViolation(&pq.Error{Code: "40001"}))
	})

	t.Run("pgx", func(t *testing.T) {
		assert.True(t, Postgres{}.IsIntegrityViolation(&pgconn.PgError{Code: "23503"}))
		assert.False(t, Postgres{}.IsIntegrityViolation(&pgconn.PgError{Code: "42P01"}))
	})

	t.Run("mysql", func(t *testing.T) {
		assert.True(t, MySQL{}.IsIntegrityViolation(&mysql.MySQLError{Number: 1062}))
		assert.False(t, MySQL{}.IsIntegrityViolation(&mysql.MySQLError{Number: 1146}))
	})

	t.Run("plain error", func(t *testing.T) {
		assert.False(t, Postgres{}.IsIntegrityViolation(errors.New("boom")))
	})
}
