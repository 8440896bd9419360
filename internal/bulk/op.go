// Package bulk loads data through staging tables and exports query results.
//
// A load runs in three steps inside one transaction: create a temporary
// table, copy rows into it, then run caller SQL that moves the staged rows
// into their real tables. Postgres copies with COPY FROM STDIN through
// lib/pq; other engines fall back to batched multi-row INSERTs.
package bulk

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/roach88/txdal/internal/dal"
	"github.com/roach88/txdal/internal/dialect"
)

// Op is one step of a bulk script. Execute returns a short status line
// for the operator.
type Op interface {
	Execute(ctx context.Context, tx *dal.Transaction) (string, error)
}

// StmtOp runs one SQL statement written with ? placeholders.
type StmtOp struct {
	SQL  string
	Args []any
}

// Execute implements Op.
func (o StmtOp) Execute(ctx context.Context, tx *dal.Transaction) (string, error) {
	res, err := tx.ExecRaw(ctx, o.SQL, o.Args...)
	if err != nil {
		return "", errors.Wrapf(err, "executing %q", brief(o.SQL))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "OK", nil
	}
	return fmt.Sprintf("%s %d", verb(o.SQL), n), nil
}

// TableColumn declares one staging table column, e.g.
// {Name: "record", Type: "TEXT", Postfix: "NOT NULL"}.
type TableColumn struct {
	Name    string
	Type    string
	Postfix string
}

func (c TableColumn) String() string {
	return strings.TrimSpace(c.Name + " " + c.Type + " " + c.Postfix)
}

// TempTable is a staging table that lives for one transaction.
type TempTable struct {
	Name    string
	Columns []TableColumn
}

// NewTempTable names a staging table prefix_<random hex> so concurrent
// loads never collide.
func NewTempTable(prefix string, columns ...TableColumn) TempTable {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return TempTable{Name: prefix + "_" + id[:12], Columns: columns}
}

// ColumnNames lists the staging columns in order.
func (t TempTable) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

func (t TempTable) definition(d dialect.Dialect) string {
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = strings.TrimSpace(d.QuoteIdent(c.Name) + " " + c.Type + " " + c.Postfix)
	}
	return strings.Join(defs, ", ")
}

// Execute creates the table. Where the dialect allows it the table is
// dropped on commit.
func (t TempTable) Execute(ctx context.Context, tx *dal.Transaction) (string, error) {
	if t.Name == "" {
		return "", errors.New("temp table: empty name")
	}
	if len(t.Columns) == 0 {
		return "", errors.Errorf("temp table %s: no columns", t.Name)
	}
	d := tx.Dialect()
	stmt := d.CreateTempTable(t.Name, t.definition(d))
	if _, err := tx.ExecRaw(ctx, stmt); err != nil {
		return "", errors.Wrapf(err, "creating temp table %s", t.Name)
	}
	return "CREATE TEMP TABLE " + t.Name, nil
}

// drop removes the table when the dialect does not do so on commit.
func (t TempTable) drop(ctx context.Context, tx *dal.Transaction) (string, error) {
	d := tx.Dialect()
	if d.DropsTempOnCommit() {
		return "", nil
	}
	if _, err := tx.ExecRaw(ctx, "DROP TABLE "+d.QuoteIdent(t.Name)); err != nil {
		return "", errors.Wrapf(err, "dropping temp table %s", t.Name)
	}
	return "DROP TABLE " + t.Name, nil
}

func verb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "OK"
	}
	return strings.ToUpper(fields[0])
}

func brief(sql string) string {
	s := strings.Join(strings.Fields(sql), " ")
	if len(s) > 60 {
		return s[:57] + "..."
	}
	return s
}
