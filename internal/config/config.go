// Package config loads txdal configuration from YAML or CUE files and
// validates it against an embedded CUE schema.
//
// Both formats share one shape:
//
//	database:
//	  driver: postgres
//	  dsn: ${DATABASE_URL}
//	  schemas: [public, archive]
//	  views: true
//	  max_open_conns: 10
//	log:
//	  level: debug
//	  format: json
//
// ${VAR} references are expanded from the environment before parsing.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Config is the full configuration.
type Config struct {
	Database Database `yaml:"database" json:"database"`
	Log      Log      `yaml:"log" json:"log"`
}

// Database configures the connection pool and what gets reflected.
type Database struct {
	// Driver is a database/sql driver name: sqlite3, postgres, pgx or mysql.
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`

	// Schemas to reflect. Empty means the connection's default schema.
	Schemas []string `yaml:"schemas,omitempty" json:"schemas,omitempty"`

	// Views includes views in reflection.
	Views bool `yaml:"views" json:"views"`

	MaxOpenConns           int `yaml:"max_open_conns,omitempty" json:"max_open_conns,omitempty"`
	MaxIdleConns           int `yaml:"max_idle_conns,omitempty" json:"max_idle_conns,omitempty"`
	ConnMaxLifetimeSeconds int `yaml:"conn_max_lifetime_seconds,omitempty" json:"conn_max_lifetime_seconds,omitempty"`
}

// ConnMaxLifetime is ConnMaxLifetimeSeconds as a duration. Zero means
// connections are reused forever.
func (d Database) ConnMaxLifetime() time.Duration {
	return time.Duration(d.ConnMaxLifetimeSeconds) * time.Second
}

// Log configures the slog handler installed by the CLI.
type Log struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Database: Database{Driver: "sqlite3", Views: true},
		Log:      Log{Level: "info", Format: "text"},
	}
}

// LoadError reports a configuration file that could not be read, parsed
// or validated.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes.
const (
	ErrCodeReadFailed  = "C001" // File could not be read
	ErrCodeFormat      = "C002" // Unknown file extension
	ErrCodeParseFailed = "C003" // YAML or CUE syntax error
	ErrCodeInvalid     = "C004" // Schema validation failed
)

// Load reads a .yaml, .yml or .cue file. Defaults fill anything the file
// leaves out, and the result is validated.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &LoadError{Code: ErrCodeReadFailed, Message: err.Error()}
	}
	data = []byte(os.ExpandEnv(string(data)))

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return loadYAML(data)
	case ".cue":
		return loadCUE(path, data)
	default:
		return Config{}, &LoadError{
			Code:    ErrCodeFormat,
			Message: fmt.Sprintf("unsupported config format %q (want .yaml, .yml or .cue)", filepath.Ext(path)),
		}
	}
}

func loadYAML(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, &LoadError{Code: ErrCodeParseFailed, Message: err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadCUE(path string, data []byte) (Config, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return Config{}, cueLoadError(ErrCodeParseFailed, err)
	}

	u := definition(ctx).Unify(v)
	if err := u.Validate(cue.Concrete(true)); err != nil {
		return Config{}, cueLoadError(ErrCodeInvalid, err)
	}

	var cfg Config
	if err := u.Decode(&cfg); err != nil {
		return Config{}, cueLoadError(ErrCodeInvalid, err)
	}
	return cfg, nil
}

// Validate checks c against the embedded schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	v := ctx.Encode(c)
	if err := v.Err(); err != nil {
		return cueLoadError(ErrCodeInvalid, err)
	}
	u := definition(ctx).Unify(v)
	if err := u.Validate(cue.Concrete(true)); err != nil {
		return cueLoadError(ErrCodeInvalid, err)
	}
	return nil
}

// Override replaces the driver and DSN with non-empty flag values.
func (c *Config) Override(driver, dsn string) {
	if driver != "" {
		c.Database.Driver = driver
	}
	if dsn != "" {
		c.Database.DSN = dsn
	}
}

func definition(ctx *cue.Context) cue.Value {
	return ctx.CompileString(schemaCUE, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))
}

func cueLoadError(code string, err error) *LoadError {
	le := &LoadError{Code: code, Message: err.Error()}
	if errs := cueerrors.Errors(err); len(errs) > 0 {
		le.Pos = errs[0].Position()
	}
	return le
}
