package cli

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/roach88/txdal/internal/dal"
	"github.com/roach88/txdal/internal/dialect"
)

// DatabaseResult is the output of db create and db drop.
type DatabaseResult struct {
	Database string `json:"database"`
	Action   string `json:"action"` // "created" | "dropped"
}

func (r DatabaseResult) String() string {
	return fmt.Sprintf("Database %s %s", r.Database, r.Action)
}

// databaseFunc is dal.CreateDatabase or dal.DropDatabase.
type databaseFunc func(ctx context.Context, db *sqlx.DB, d dialect.Dialect, name string) error

// NewDBCommand creates the db command group.
func NewDBCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Create or drop databases",
		Long: `Create or drop a database on the server the configured DSN points at.
Connect with an administrative DSN, e.g. one naming the postgres database.
Supported on PostgreSQL and MySQL.`,
	}
	cmd.AddCommand(newDatabaseCommand(rootOpts, "create", "Create a database", "created", dal.CreateDatabase))
	cmd.AddCommand(newDatabaseCommand(rootOpts, "drop", "Drop a database if it exists", "dropped", dal.DropDatabase))
	return cmd
}

func newDatabaseCommand(rootOpts *RootOptions, use, short, action string, fn databaseFunc) *cobra.Command {
	return &cobra.Command{
		Use:           use + " <name>",
		Short:         short,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDatabase(commandContext(cmd), rootOpts, cmd, args[0], action, fn)
		},
	}
}

func runDatabase(ctx context.Context, opts *RootOptions, cmd *cobra.Command, name, action string, fn databaseFunc) error {
	formatter := opts.formatter(cmd)

	l, err := opts.connect(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConnect, "failed to connect", err)
	}
	defer l.Close()

	if err := fn(ctx, l.DB(), l.Dialect(), name); err != nil {
		return formatter.Fail(ExitFailure, ErrCodeDatabase, fmt.Sprintf("%s %s", cmd.Name(), name), err)
	}
	return formatter.Success(DatabaseResult{Database: name, Action: action})
}
