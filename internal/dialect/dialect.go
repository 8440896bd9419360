// Package dialect describes the SQL differences between the engines txdal
// can sit on: placeholder style, identifier quoting, LIMIT/OFFSET rendering,
// RETURNING support, temp tables and driver error classification.
//
// Supported drivers:
//   - sqlite3, sqlite (github.com/mattn/go-sqlite3)
//   - postgres (github.com/lib/pq), pgx (github.com/jackc/pgx/v5/stdlib)
//   - mysql (github.com/go-sql-driver/mysql)
//
// A Dialect is stateless and safe for concurrent use.
package dialect

import (
	"fmt"
	"strings"
)

// Dialect is the engine-specific rendering and error contract.
type Dialect interface {
	// Name identifies the dialect ("sqlite", "postgres", "mysql").
	Name() string

	// Placeholder returns the bind marker for the n-th (1-based) argument.
	Placeholder(n int) string

	// QuoteIdent quotes a single identifier.
	QuoteIdent(name string) string

	// LimitOffset renders the trailing pagination clause, including the
	// leading space. Zero means unset. Returns "" when both are unset.
	LimitOffset(limit, offset int) string

	// SupportsReturning reports whether INSERT/UPDATE/DELETE ... RETURNING works.
	SupportsReturning() bool

	// CreateTempTable renders a statement creating a transaction-scoped
	// staging table.
	CreateTempTable(name, columns string) string

	// DropsTempOnCommit reports whether temp tables vanish at commit.
	DropsTempOnCommit() bool

	// MaxParams is the most bind arguments one statement may carry.
	MaxParams() int

	// IsIntegrityViolation reports whether err is a constraint violation
	// raised by the engine (unique, foreign key, not null, check).
	IsIntegrityViolation(err error) bool
}

// ForDriver returns the dialect for a database/sql driver name.
func ForDriver(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3", "sqlite":
		return SQLite{}, nil
	case "postgres", "pgx":
		return Postgres{}, nil
	case "mysql":
		return MySQL{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

// QuoteQualified quotes a possibly schema-qualified name part by part.
// "w.widgy" becomes "w"."widgy" for double-quote dialects.
func QuoteQualified(d Dialect, name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.QuoteIdent(p)
	}
	return strings.Join(parts, ".")
}

func quoteWith(name, q string) string {
	return q + strings.ReplaceAll(name, q, q+q) + q
}
