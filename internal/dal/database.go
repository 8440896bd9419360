package dal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/roach88/txdal/internal/dialect"
)

// CreateDatabase creates database name on the server db is connected to.
// It runs outside any transaction. PostgreSQL and MySQL only.
func CreateDatabase(ctx context.Context, db *sqlx.DB, d dialect.Dialect, name string) error {
	var stmt string
	switch d.Name() {
	case "postgres":
		stmt = "CREATE DATABASE " + pq.QuoteIdentifier(name)
	case "mysql":
		stmt = "CREATE DATABASE " + d.QuoteIdent(name)
	default:
		return fmt.Errorf("create database: not supported by %s", d.Name())
	}
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create database %s: %w", name, err)
	}
	slog.Info("database created", "name", name)
	return nil
}

// DropDatabase drops database name if it exists. On PostgreSQL other
// sessions connected to it are terminated first.
func DropDatabase(ctx context.Context, db *sqlx.DB, d dialect.Dialect, name string) error {
	var stmt string
	switch d.Name() {
	case "postgres":
		terminate := `SELECT pg_terminate_backend(pid) FROM pg_stat_activity
			WHERE datname = ` + d.Placeholder(1) + ` AND pid <> pg_backend_pid()`
		if _, err := db.ExecContext(ctx, terminate, name); err != nil {
			return fmt.Errorf("drop database %s: terminate sessions: %w", name, err)
		}
		stmt = "DROP DATABASE IF EXISTS " + pq.QuoteIdentifier(name)
	case "mysql":
		stmt = "DROP DATABASE IF EXISTS " + d.QuoteIdent(name)
	default:
		return fmt.Errorf("drop database: not supported by %s", d.Name())
	}
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("drop database %s: %w", name, err)
	}
	slog.Info("database dropped", "name", name)
	return nil
}
