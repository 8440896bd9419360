// Package dal is the schema access controller and transaction manager.
//
// A DataAccessLayer is built once, at process start, by Reflect or
// Connect. Reflection fills a frozen schema.Cache that every Transaction
// reads without locking. Units of work borrow a Transaction through
// InTransaction, which commits when the callback returns nil and rolls
// back otherwise:
//
//	err := dal.InTransaction(ctx, db, func(tx *dal.Transaction) error {
//		books, err := oqm.NewListQ[Book](where).List(ctx, tx)
//		...
//	})
//
// A Transaction belongs to one goroutine. Use one Transaction per request
// and never share it.
package dal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/roach88/txdal/internal/config"
	"github.com/roach88/txdal/internal/dialect"
	"github.com/roach88/txdal/internal/schema"
)

// DataAccessLayer owns the connection pool and the reflected schema.
// Lookups are pure reads of the frozen cache and are safe for concurrent
// use.
type DataAccessLayer struct {
	db    *sqlx.DB
	d     dialect.Dialect
	cache *schema.Cache
}

// Reflect introspects db and returns a ready DataAccessLayer. Failures are
// *schema.ReflectionError and are not retried.
func Reflect(ctx context.Context, db *sqlx.DB, d dialect.Dialect, opts schema.Options) (*DataAccessLayer, error) {
	cache, err := schema.Reflect(ctx, db, d, opts)
	if err != nil {
		return nil, err
	}
	return &DataAccessLayer{db: db, d: d, cache: cache}, nil
}

// Connect opens a pool for cfg, applies the pool limits, pings and
// reflects. Any failure closes the pool and returns a
// *schema.ReflectionError.
func Connect(ctx context.Context, cfg config.Database, aliases ...*schema.Table) (*DataAccessLayer, error) {
	d, err := dialect.ForDriver(cfg.Driver)
	if err != nil {
		return nil, &schema.ReflectionError{Stage: "connect", Err: err}
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, &schema.ReflectionError{Stage: "connect", Err: err}
	}
	configurePool(db, d, cfg)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &schema.ReflectionError{Stage: "connect", Err: err}
	}

	dal, err := Reflect(ctx, db, d, schema.Options{
		Schemas: cfg.Schemas,
		Views:   cfg.Views,
		Aliases: aliases,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	slog.Debug("connected", "driver", cfg.Driver, "max_open_conns", db.Stats().MaxOpenConnections)
	return dal, nil
}

func configurePool(db *sqlx.DB, d dialect.Dialect, cfg config.Database) {
	maxOpen := cfg.MaxOpenConns
	if maxOpen == 0 && d.Name() == "sqlite" {
		// SQLite only supports one writer at a time.
		maxOpen = 1
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeSeconds > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime())
	}
}

// GetTable returns a reflected table or view, or a static alias.
func (l *DataAccessLayer) GetTable(name string) (*schema.Table, error) {
	if t, err := l.cache.Alias(name); err == nil {
		return t, nil
	}
	return l.cache.Table(name)
}

// GetView returns a reflected view.
func (l *DataAccessLayer) GetView(name string) (*schema.Table, error) {
	return l.cache.View(name)
}

// GetAlias returns a static table-valued alias.
func (l *DataAccessLayer) GetAlias(name string) (*schema.Table, error) {
	return l.cache.Alias(name)
}

// GetUniqueConstraints returns the unique column-groups of a table.
func (l *DataAccessLayer) GetUniqueConstraints(table string) ([][]string, error) {
	return l.cache.UniqueConstraints(table)
}

// Tables returns reflected table names, sorted.
func (l *DataAccessLayer) Tables() []string {
	return l.cache.TableNames()
}

// Views returns reflected view names, sorted.
func (l *DataAccessLayer) Views() []string {
	return l.cache.ViewNames()
}

// Aliases returns static alias names, sorted.
func (l *DataAccessLayer) Aliases() []string {
	return l.cache.AliasNames()
}

// Dialect returns the SQL dialect of the pool.
func (l *DataAccessLayer) Dialect() dialect.Dialect {
	return l.d
}

// DB returns the underlying pool.
func (l *DataAccessLayer) DB() *sqlx.DB {
	return l.db
}

// Close closes the pool.
func (l *DataAccessLayer) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Begin starts a Transaction. Most callers want InTransaction instead,
// which guarantees the commit or rollback.
func (l *DataAccessLayer) Begin(ctx context.Context, opts *sql.TxOptions) (*Transaction, error) {
	tx, err := l.db.BeginTxx(ctx, opts)
	if err != nil {
		return nil, &TransactionError{Op: "begin", Err: err}
	}
	return &Transaction{tx: tx, dal: l}, nil
}

// String identifies the layer in logs.
func (l *DataAccessLayer) String() string {
	return fmt.Sprintf("dal(%s, %d tables, %d views)", l.d.Name(), len(l.Tables()), len(l.Views()))
}
