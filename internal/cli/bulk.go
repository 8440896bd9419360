package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/txdal/internal/bulk"
	"github.com/roach88/txdal/internal/dal"
	"github.com/roach88/txdal/internal/dialect"
)

// stagingMarker in --sql is replaced by the quoted staging table name.
const stagingMarker = "{staging}"

// BulkLoadOptions holds flags for the bulk load command.
type BulkLoadOptions struct {
	*RootOptions
	Table     string
	File      string
	Input     string // "csv" | "jsonl"; inferred from the file extension when empty
	Columns   []string
	Header    bool
	NullEmpty bool
	SQL       string
	BatchSize int
}

// BulkExportOptions holds flags for the bulk export command.
type BulkExportOptions struct {
	*RootOptions
	Query    string
	Args     []string
	Output   string
	NoHeader bool
}

// BulkResult is the output of a bulk command.
type BulkResult struct {
	Steps []string `json:"steps"`
}

// NewBulkCommand creates the bulk command group.
func NewBulkCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Bulk load and export",
	}
	cmd.AddCommand(newBulkLoadCommand(rootOpts))
	cmd.AddCommand(newBulkExportCommand(rootOpts))
	return cmd
}

func newBulkLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BulkLoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load a CSV or JSONL file through a staging table",
		Long: `Copy a file into a temporary staging table, then move the rows
into their destination in the same transaction.

CSV files are staged with the destination table's column types and
inserted into --table unless --sql is given. JSONL files are staged one
document per row in a single "record" column and require --sql. In --sql
the staging table is written ` + stagingMarker + `.

Examples:
  txdal bulk load --dsn ./library.db --table author --columns name --file authors.csv
  txdal bulk load --config txdal.yaml --file books.jsonl \
    --sql "INSERT INTO book (name) SELECT json_extract(record, '$.name') FROM {staging}"`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBulkLoad(commandContext(cmd), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Table, "table", "", "destination table (csv)")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "input file, - for stdin (required)")
	_ = cmd.MarkFlagRequired("file")
	cmd.Flags().StringVar(&opts.Input, "input", "", "input format (csv|jsonl)")
	cmd.Flags().StringSliceVar(&opts.Columns, "columns", nil, "csv columns in file order (default: every table column)")
	cmd.Flags().BoolVar(&opts.Header, "header", true, "csv file starts with a header record")
	cmd.Flags().BoolVar(&opts.NullEmpty, "null-empty", false, "load empty csv fields as NULL")
	cmd.Flags().StringVar(&opts.SQL, "sql", "", "statement moving staged rows into place")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 0, "copy with INSERT batches of this many rows")

	return cmd
}

func newBulkExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BulkExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a query result as CSV",
		Long: `Run a query in a read-only transaction and write the rows as CSV.

Examples:
  txdal bulk export --dsn ./library.db --query "SELECT * FROM book"
  txdal bulk export --config txdal.yaml --query "SELECT * FROM book WHERE author_id = ?" --arg 1 -o books.csv`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBulkExport(commandContext(cmd), opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "query with ? placeholders (required)")
	_ = cmd.MarkFlagRequired("query")
	cmd.Flags().StringArrayVar(&opts.Args, "arg", nil, "query argument, repeatable")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "-", "output file, - for stdout")
	cmd.Flags().BoolVar(&opts.NoHeader, "no-header", false, "omit the header record")

	return cmd
}

func runBulkLoad(ctx context.Context, opts *BulkLoadOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	in, err := openInput(opts.File, cmd.InOrStdin())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBulk, "failed to open input", err)
	}
	defer in.Close()

	l, err := opts.connect(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConnect, "failed to connect", err)
	}
	defer l.Close()

	op, err := loadOp(l, opts, in)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBulk, "invalid load", err)
	}
	formatter.VerboseLog("Staging %s into %s", opts.File, op.Temp.Name)

	results, err := bulk.Script{Ops: []bulk.Op{op}}.Run(ctx, l)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeBulk, "bulk load failed", err)
	}
	return outputBulk(formatter, results)
}

// loadOp builds the staging load described by opts.
func loadOp(l *dal.DataAccessLayer, opts *BulkLoadOptions, in io.Reader) (bulk.LoadOp, error) {
	d := l.Dialect()
	input := opts.Input
	if input == "" {
		input = inputFormat(opts.File)
	}

	var op bulk.LoadOp
	target := opts.SQL
	switch input {
	case "jsonl":
		if target == "" {
			return op, fmt.Errorf("jsonl input requires --sql")
		}
		op.Temp = bulk.NewTempTable("txdal_stage", bulk.TableColumn{Name: "record", Type: "TEXT"})
		op.Source = bulk.NewJSONLSource(in)
	case "csv":
		if opts.Table == "" {
			return op, fmt.Errorf("csv input requires --table")
		}
		t, err := l.GetTable(opts.Table)
		if err != nil {
			return op, err
		}
		names := opts.Columns
		if len(names) == 0 {
			names = t.ColumnNames()
		}
		cols := make([]bulk.TableColumn, len(names))
		quoted := make([]string, len(names))
		for i, name := range names {
			c, err := t.Column(name)
			if err != nil {
				return op, err
			}
			typ := c.Type
			if typ == "" {
				typ = "TEXT"
			}
			cols[i] = bulk.TableColumn{Name: name, Type: typ}
			quoted[i] = d.QuoteIdent(name)
		}
		op.Temp = bulk.NewTempTable("txdal_stage", cols...)
		src := bulk.NewCSVSource(in, opts.Header)
		src.NullEmpty = opts.NullEmpty
		op.Source = src

		if target == "" {
			list := strings.Join(quoted, ", ")
			target = fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
				dialect.QuoteQualified(d, t.QualifiedName()), list, list, stagingMarker)
		}
	default:
		return op, fmt.Errorf("unknown input format %q: must be csv or jsonl", input)
	}

	op.Target = bulk.StmtOp{SQL: strings.ReplaceAll(target, stagingMarker, d.QuoteIdent(op.Temp.Name))}
	if opts.BatchSize > 0 {
		op.Copier = bulk.InsertCopier{BatchSize: opts.BatchSize}
	}
	return op, nil
}

func runBulkExport(ctx context.Context, opts *BulkExportOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	out, err := openOutput(opts.Output, cmd.OutOrStdout())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBulk, "failed to open output", err)
	}

	l, err := opts.connect(ctx)
	if err != nil {
		out.Close()
		return formatter.Fail(ExitCommandError, ErrCodeConnect, "failed to connect", err)
	}
	defer l.Close()

	args := make([]any, len(opts.Args))
	for i, a := range opts.Args {
		args[i] = a
	}
	script := bulk.Script{
		Ops:       []bulk.Op{bulk.ExportOp{Query: opts.Query, Args: args, Output: out, NoHeader: opts.NoHeader}},
		TxOptions: &sql.TxOptions{ReadOnly: true},
	}
	results, err := script.Run(ctx, l)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeBulk, "bulk export failed", err)
	}

	// Rows on stdout are the output; the status goes to stderr there.
	if opts.Output == "-" {
		formatter.VerboseLog("%s", strings.Join(results, "\n"))
		return nil
	}
	return outputBulk(formatter, results)
}

func outputBulk(f *OutputFormatter, results []string) error {
	var steps []string
	for _, r := range results {
		steps = append(steps, strings.Split(r, "\n")...)
	}
	if f.Format == "json" {
		return f.Success(BulkResult{Steps: steps})
	}
	for _, s := range steps {
		fmt.Fprintln(f.Writer, s)
	}
	return nil
}

func inputFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return "jsonl"
	default:
		return "csv"
	}
}

func openInput(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(stdin), nil
	}
	return os.Open(path)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func openOutput(path string, stdout io.Writer) (io.WriteCloser, error) {
	if path == "-" {
		return nopWriteCloser{stdout}, nil
	}
	return os.Create(path)
}

// commandContext returns cmd's context, or Background when the command
// was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
