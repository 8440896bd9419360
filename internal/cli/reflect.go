package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/txdal/internal/dal"
	"github.com/roach88/txdal/internal/schema"
)

// ReflectOptions holds flags for the reflect command.
type ReflectOptions struct {
	*RootOptions
	Table string // optional - show one relation's columns
}

// RelationInfo describes one reflected table or view.
type RelationInfo struct {
	Name    string          `json:"name"`
	Kind    schema.Kind     `json:"kind"`
	Columns []schema.Column `json:"columns"`
	Unique  [][]string      `json:"unique,omitempty"`
}

// ReflectResult is the reflect command's output.
type ReflectResult struct {
	Driver    string         `json:"driver"`
	Relations []RelationInfo `json:"relations"`
}

// NewReflectCommand creates the reflect command.
func NewReflectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReflectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reflect",
		Short: "Show the reflected schema",
		Long: `Connect, reflect the schema and print the tables and views txdal
would serve queries against.

Examples:
  txdal reflect --driver sqlite3 --dsn ./library.db
  txdal reflect --config txdal.yaml --table book
  txdal reflect --config txdal.cue --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReflect(commandContext(cmd), opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Table, "table", "t", "", "show columns of one table or view")

	return cmd
}

func runReflect(ctx context.Context, opts *ReflectOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	l, err := opts.connect(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConnect, "failed to connect", err)
	}
	defer l.Close()

	formatter.VerboseLog("Reflected %s", l)

	result, err := describe(l, opts.Table)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeNotFound, "reflect", err)
	}
	result.Driver = opts.config.Database.Driver

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	outputReflectText(formatter, result, opts.Table != "")
	return nil
}

// describe collects relation metadata from l, or just the named relation.
func describe(l *dal.DataAccessLayer, only string) (ReflectResult, error) {
	var result ReflectResult
	if only != "" {
		t, err := l.GetTable(only)
		if err != nil {
			var verr error
			if t, verr = l.GetView(only); verr != nil {
				return result, err
			}
		}
		result.Relations = []RelationInfo{relationInfo(l, t)}
		return result, nil
	}

	for _, name := range l.Tables() {
		t, err := l.GetTable(name)
		if err != nil {
			return result, err
		}
		result.Relations = append(result.Relations, relationInfo(l, t))
	}
	for _, name := range l.Views() {
		t, err := l.GetView(name)
		if err != nil {
			return result, err
		}
		result.Relations = append(result.Relations, relationInfo(l, t))
	}
	return result, nil
}

func relationInfo(l *dal.DataAccessLayer, t *schema.Table) RelationInfo {
	info := RelationInfo{
		Name:    t.QualifiedName(),
		Kind:    t.Kind,
		Columns: append([]schema.Column{}, t.Columns...),
	}
	if t.Kind == schema.KindTable {
		info.Unique, _ = l.GetUniqueConstraints(t.QualifiedName())
	}
	return info
}

func outputReflectText(f *OutputFormatter, result ReflectResult, columns bool) {
	if !columns {
		rows := make([][]any, 0, len(result.Relations))
		for _, r := range result.Relations {
			rows = append(rows, []any{r.Name, r.Kind.String(), len(r.Columns), uniqueText(r.Unique)})
		}
		f.Table([]string{"relation", "kind", "columns", "unique"}, rows)
		return
	}

	for _, r := range result.Relations {
		fmt.Fprintf(f.Writer, "%s (%s)\n", r.Name, r.Kind)
		rows := make([][]any, 0, len(r.Columns))
		for _, c := range r.Columns {
			var def any
			if c.Default != nil {
				def = *c.Default
			}
			rows = append(rows, []any{c.Name, c.Type, c.Nullable, def, c.PrimaryKey})
		}
		f.Table([]string{"column", "type", "nullable", "default", "pk"}, rows)
	}
}

func uniqueText(groups [][]string) string {
	parts := make([]string, len(groups))
	for i, g := range groups {
		parts[i] = "(" + strings.Join(g, ", ") + ")"
	}
	return strings.Join(parts, " ")
}
