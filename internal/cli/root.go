package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/txdal/internal/config"
	"github.com/roach88/txdal/internal/dal"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Driver     string
	DSN        string

	// config is resolved once in PersistentPreRunE.
	config config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the txdal CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "txdal",
		Short: "txdal - transaction-scoped data access",
		Long: `Operate on a database through txdal's reflected schema.

Connection settings come from --config (YAML or CUE), overridden by
--driver and --dsn.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			cfg, err := resolveConfig(opts)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			opts.config = cfg
			setupLogging(cmd.ErrOrStderr(), cfg.Log, opts.Verbose)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "configuration file (.yaml, .yml or .cue)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "database driver (sqlite3|postgres|pgx|mysql)")
	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", "", "database connection string")

	cmd.AddCommand(NewReflectCommand(opts))
	cmd.AddCommand(NewBulkCommand(opts))
	cmd.AddCommand(NewDBCommand(opts))

	return cmd
}

// resolveConfig loads --config when given, applies flag overrides and
// validates the result.
func resolveConfig(opts *RootOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	cfg.Override(opts.Driver, opts.DSN)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// setupLogging installs the default slog handler. --verbose forces debug.
func setupLogging(w io.Writer, cfg config.Log, verbose bool) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	hopts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(w, hopts)
	} else {
		h = slog.NewTextHandler(w, hopts)
	}
	slog.SetDefault(slog.New(h))
}

// connect opens and reflects the configured database.
func (o *RootOptions) connect(ctx context.Context) (*dal.DataAccessLayer, error) {
	return dal.Connect(ctx, o.config.Database)
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
