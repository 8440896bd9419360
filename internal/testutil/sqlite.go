package testutil

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// LibraryDDL is the author/book fixture schema used across package tests.
//
//   - author: id, name, deleted
//   - book: id, author_id -> author.id, name, catalog (UNIQUE uc__book), extra (JSON), deleted
//   - book_author: view joining book to its author's name
const LibraryDDL = `
CREATE TABLE author (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name VARCHAR(64) NOT NULL,
	deleted BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE book (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	author_id INTEGER NOT NULL REFERENCES author(id) ON DELETE CASCADE,
	name VARCHAR(64),
	catalog VARCHAR(64),
	extra TEXT NOT NULL DEFAULT '{}',
	deleted BOOLEAN NOT NULL DEFAULT 0,
	CONSTRAINT uc__book UNIQUE (catalog)
);

CREATE VIEW book_author AS
	SELECT b.id AS id, b.name AS name, a.name AS author_name
	FROM book b JOIN author a ON a.id = b.author_id;
`

// OpenSQLite creates a SQLite database file under t.TempDir(), applies the
// given DDL and returns a single-connection pool. Foreign keys are enforced.
// The pool is closed on test cleanup.
func OpenSQLite(t *testing.T, ddl ...string) *sqlx.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlx.Open("sqlite3", "file:"+path+"?_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	for _, stmt := range ddl {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("apply ddl: %v", err)
		}
	}
	return db
}

// SQLiteDSN returns a DSN for a fresh database file under t.TempDir().
func SQLiteDSN(t *testing.T) string {
	t.Helper()
	return "file:" + filepath.Join(t.TempDir(), "test.db") + "?_foreign_keys=on"
}
