package bulk

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/roach88/txdal/internal/dal"
)

// LoadOp stages Source in Temp and then runs Target, which moves the
// staged rows into real tables. PostCopy, when set, runs between the copy
// and Target, for example to index the staging table.
type LoadOp struct {
	Temp     TempTable
	Source   Source
	PostCopy Op
	Target   Op

	// Copier defaults to CopierFor(tx).
	Copier Copier
}

// Execute implements Op. The status is one line per step.
func (o LoadOp) Execute(ctx context.Context, tx *dal.Transaction) (string, error) {
	if o.Source == nil {
		return "", errors.Errorf("load %s: no source", o.Temp.Name)
	}
	if o.Target == nil {
		return "", errors.Errorf("load %s: no target", o.Temp.Name)
	}

	var out []string
	res, err := o.Temp.Execute(ctx, tx)
	if err != nil {
		return "", err
	}
	out = append(out, res)

	copier := o.Copier
	if copier == nil {
		copier = CopierFor(tx)
	}
	n, err := copier.Copy(ctx, tx, o.Temp.Name, o.Temp.ColumnNames(), o.Source)
	if err != nil {
		return "", errors.Wrapf(err, "copying into %s", o.Temp.Name)
	}
	out = append(out, fmt.Sprintf("COPY %d", n))

	if o.PostCopy != nil {
		res, err := o.PostCopy.Execute(ctx, tx)
		if err != nil {
			return "", errors.Wrap(err, "post copy")
		}
		out = append(out, res)
	}

	res, err = o.Target.Execute(ctx, tx)
	if err != nil {
		return "", errors.Wrap(err, "target")
	}
	out = append(out, res)

	res, err = o.Temp.drop(ctx, tx)
	if err != nil {
		return "", err
	}
	if res != "" {
		out = append(out, res)
	}
	return strings.Join(out, "\n"), nil
}

// ExportOp writes the result of Query to Output as CSV. The first record
// is the column names unless NoHeader is set. NULL is written as an empty
// field.
type ExportOp struct {
	Query    string
	Args     []any
	Output   io.Writer
	NoHeader bool
}

// Execute implements Op.
func (o ExportOp) Execute(ctx context.Context, tx *dal.Transaction) (string, error) {
	if o.Output == nil {
		return "", errors.New("export: no output")
	}
	rows, err := tx.QueryRaw(ctx, o.Query, o.Args...)
	if err != nil {
		return "", errors.Wrapf(err, "executing %q", brief(o.Query))
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return "", errors.Wrap(err, "reading columns")
	}
	w := csv.NewWriter(o.Output)
	if !o.NoHeader {
		if err := w.Write(columns); err != nil {
			return "", errors.Wrap(err, "writing header")
		}
	}

	var n int
	record := make([]string, len(columns))
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return "", errors.Wrapf(err, "scanning row %d", n+1)
		}
		for i, v := range values {
			record[i] = field(v)
		}
		if err := w.Write(record); err != nil {
			return "", errors.Wrapf(err, "writing row %d", n+1)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return "", errors.Wrap(err, "reading rows")
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", errors.Wrap(err, "flushing output")
	}
	return fmt.Sprintf("EXPORT %d", n), nil
}

func field(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(v)
	}
}

// Script runs its ops in order inside a single transaction. Any failure
// rolls back everything the script did.
type Script struct {
	Ops []Op

	// TxOptions, when set, is passed to Begin.
	TxOptions *sql.TxOptions
}

// Run executes the script against l and returns each op's status.
func (s Script) Run(ctx context.Context, l *dal.DataAccessLayer) ([]string, error) {
	var results []string
	var opts []dal.TxOption
	if s.TxOptions != nil {
		opts = append(opts, dal.WithTxOptions(s.TxOptions))
	}
	err := dal.InTransaction(ctx, l, func(tx *dal.Transaction) error {
		results = results[:0]
		for i, op := range s.Ops {
			res, err := op.Execute(ctx, tx)
			if err != nil {
				return errors.Wrapf(err, "op %d", i+1)
			}
			slog.Info("bulk op", "index", i+1, "result", res)
			results = append(results, res)
		}
		return nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return results, nil
}
