package dialect

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// SQLite renders for github.com/mattn/go-sqlite3.
//
// LIKE is case-insensitive for ASCII in SQLite; txdal inherits that.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) Placeholder(int) string { return "?" }

func (SQLite) QuoteIdent(name string) string { return quoteWith(name, `"`) }

// LimitOffset uses LIMIT -1 when only an offset is requested; SQLite
// rejects a bare OFFSET.
func (SQLite) LimitOffset(limit, offset int) string {
	switch {
	case limit > 0 && offset > 0:
		return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	case limit > 0:
		return fmt.Sprintf(" LIMIT %d", limit)
	case offset > 0:
		return fmt.Sprintf(" LIMIT -1 OFFSET %d", offset)
	}
	return ""
}

func (SQLite) SupportsReturning() bool { return true }

func (d SQLite) CreateTempTable(name, columns string) string {
	return fmt.Sprintf("CREATE TEMP TABLE %s (%s)", d.QuoteIdent(name), columns)
}

func (SQLite) DropsTempOnCommit() bool { return false }

// MaxParams is SQLITE_MAX_VARIABLE_NUMBER as compiled into go-sqlite3.
func (SQLite) MaxParams() int { return 32766 }

func (SQLite) IsIntegrityViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrConstraint
	}
	return false
}

// Postgres renders for both lib/pq ("postgres") and pgx ("pgx").
//
// LIKE is case-sensitive in PostgreSQL; txdal inherits that.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (Postgres) QuoteIdent(name string) string { return quoteWith(name, `"`) }

func (Postgres) LimitOffset(limit, offset int) string {
	var out string
	if limit > 0 {
		out += fmt.Sprintf(" LIMIT %d", limit)
	}
	if offset > 0 {
		out += fmt.Sprintf(" OFFSET %d", offset)
	}
	return out
}

func (Postgres) SupportsReturning() bool { return true }

func (d Postgres) CreateTempTable(name, columns string) string {
	return fmt.Sprintf("CREATE TEMP TABLE %s (%s) ON COMMIT DROP", d.QuoteIdent(name), columns)
}

func (Postgres) DropsTempOnCommit() bool { return true }

// MaxParams is the wire protocol's 16-bit parameter count.
func (Postgres) MaxParams() int { return 65535 }

// IsIntegrityViolation matches SQLSTATE class 23 from either driver.
func (Postgres) IsIntegrityViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == "23"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return len(pgErr.Code) == 5 && pgErr.Code[:2] == "23"
	}
	return false
}

// MySQL renders for github.com/go-sql-driver/mysql. MySQL has no
// RETURNING, so the write executors cannot run against it; reflection,
// filtering, queries and bulk loading do.
type MySQL struct{}

// maxRows is the documented way to express "no limit" with an OFFSET.
const maxRows = "18446744073709551615"

// Constraint violation error numbers.
var mysqlIntegrityErrors = map[uint16]bool{
	1048: true, // column cannot be null
	1062: true, // duplicate entry
	1216: true, // child row: foreign key fails
	1217: true, // parent row: foreign key fails
	1451: true, // cannot delete or update parent row
	1452: true, // cannot add or update child row
	3819: true, // check constraint violated
}

func (MySQL) Name() string { return "mysql" }

func (MySQL) Placeholder(int) string { return "?" }

func (MySQL) QuoteIdent(name string) string { return quoteWith(name, "`") }

func (MySQL) LimitOffset(limit, offset int) string {
	switch {
	case limit > 0 && offset > 0:
		return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	case limit > 0:
		return fmt.Sprintf(" LIMIT %d", limit)
	case offset > 0:
		return fmt.Sprintf(" LIMIT %s OFFSET %d", maxRows, offset)
	}
	return ""
}

func (MySQL) SupportsReturning() bool { return false }

func (d MySQL) CreateTempTable(name, columns string) string {
	return fmt.Sprintf("CREATE TEMPORARY TABLE %s (%s)", d.QuoteIdent(name), columns)
}

func (MySQL) DropsTempOnCommit() bool { return false }

func (MySQL) MaxParams() int { return 65535 }

func (MySQL) IsIntegrityViolation(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return mysqlIntegrityErrors[me.Number]
	}
	return false
}
