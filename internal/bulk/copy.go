package bulk

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/roach88/txdal/internal/dal"
)

// Copier streams rows from a Source into a table inside tx and reports
// how many rows it wrote.
type Copier interface {
	Copy(ctx context.Context, tx *dal.Transaction, table string, columns []string, src Source) (int64, error)
}

// CopierFor picks the fastest copier the transaction's driver supports:
// COPY FROM STDIN on lib/pq, batched INSERT everywhere else.
func CopierFor(tx *dal.Transaction) Copier {
	if tx.DAL().DB().DriverName() == "postgres" {
		return PQCopier{}
	}
	return InsertCopier{}
}

// PQCopier copies with lib/pq's COPY FROM STDIN protocol. It only works
// on connections opened with the "postgres" driver.
type PQCopier struct{}

// Copy implements Copier.
func (PQCopier) Copy(ctx context.Context, tx *dal.Transaction, table string, columns []string, src Source) (int64, error) {
	stmt, err := tx.Tx().PrepareContext(ctx, pq.CopyIn(table, columns...))
	if err != nil {
		return 0, errors.Wrapf(err, "preparing copy into %s", table)
	}
	defer stmt.Close()

	var n int64
	for {
		row, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, errors.Wrapf(err, "reading row %d", n+1)
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return n, errors.Wrapf(err, "copying row %d", n+1)
		}
		n++
	}
	// An argument-less Exec flushes the buffered rows.
	if _, err := stmt.ExecContext(ctx); err != nil {
		return n, errors.Wrapf(err, "finishing copy into %s", table)
	}
	return n, nil
}

// DefaultBatchSize is the number of rows per INSERT when InsertCopier's
// BatchSize is zero.
const DefaultBatchSize = 500

// InsertCopier copies with multi-row INSERT statements of BatchSize rows.
// A batch never carries more arguments than the dialect's MaxParams, so
// wide tables get fewer rows per statement.
type InsertCopier struct {
	BatchSize int
}

// Copy implements Copier.
func (c InsertCopier) Copy(ctx context.Context, tx *dal.Transaction, table string, columns []string, src Source) (int64, error) {
	if len(columns) == 0 {
		return 0, errors.Errorf("copy into %s: no columns", table)
	}
	size := c.rowsPerStatement(tx.Dialect().MaxParams(), len(columns))

	var (
		n     int64
		batch []any
		rows  int
	)
	flush := func() error {
		if rows == 0 {
			return nil
		}
		query := insertBatch(tx, table, columns, rows)
		if _, err := tx.ExecRaw(ctx, query, batch...); err != nil {
			return errors.Wrapf(err, "inserting rows %d-%d", n+1, n+int64(rows))
		}
		slog.Debug("copied batch", "table", table, "rows", rows)
		n += int64(rows)
		batch, rows = batch[:0], 0
		return nil
	}

	for {
		row, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, errors.Wrapf(err, "reading row %d", n+int64(rows)+1)
		}
		if len(row) != len(columns) {
			return n, errors.Errorf("row %d has %d values, want %d", n+int64(rows)+1, len(row), len(columns))
		}
		batch = append(batch, row...)
		rows++
		if rows == size {
			if err := flush(); err != nil {
				return n, err
			}
		}
	}
	return n, flush()
}

// rowsPerStatement is BatchSize (or DefaultBatchSize) capped so that rows
// times columns stays within maxParams. It is at least one.
func (c InsertCopier) rowsPerStatement(maxParams, columns int) int {
	size := c.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	if limit := maxParams / columns; size > limit {
		size = limit
	}
	if size < 1 {
		size = 1
	}
	return size
}

// insertBatch renders INSERT INTO t (cols) VALUES (?, ...), ... for rows
// rows, with ? markers for ExecRaw to rebind.
func insertBatch(tx *dal.Transaction, table string, columns []string, rows int) string {
	d := tx.Dialect()
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.QuoteIdent(c)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(d.QuoteIdent(table))
	b.WriteString(" (")
	b.WriteString(strings.Join(quoted, ", "))
	b.WriteString(") VALUES ")
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(tuple)
	}
	return b.String()
}
