package schema

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/roach88/txdal/internal/dialect"
)

// Options control what Reflect introspects. It plays the part of the
// metadata container handed to reflection.
type Options struct {
	// Schemas to reflect. Empty means the connection's default schema only.
	// Relations outside the default schema are keyed "schema.name".
	Schemas []string

	// Views includes views alongside tables.
	Views bool

	// Aliases are static table-valued aliases made available to every
	// transaction. Each must have Kind KindAlias and a unique Name.
	Aliases []*Table
}

// Queryer is the read side of *sql.DB, *sql.Conn, *sqlx.DB and friends.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// relation is a name/kind pair produced by an introspector.
type relation struct {
	name string
	kind Kind
}

// introspector is the per-dialect catalog reader.
//
// Implementations must fully drain and close every result set before
// issuing the next query: a single-connection pool (SQLite) would
// otherwise deadlock.
type introspector interface {
	currentSchema(ctx context.Context, q Queryer) (string, error)
	relations(ctx context.Context, q Queryer, schemaName string, views bool) ([]relation, error)
	columns(ctx context.Context, q Queryer, schemaName, name string) ([]Column, error)
	constraints(ctx context.Context, q Queryer, schemaName, name string) (pk []string, unique [][]string, err error)
}

func introspectorFor(d dialect.Dialect) (introspector, error) {
	switch d.Name() {
	case "sqlite":
		return sqliteIntrospector{d: d}, nil
	case "postgres":
		return infoSchemaIntrospector{d: d, currentSchemaSQL: "SELECT current_schema()"}, nil
	case "mysql":
		return infoSchemaIntrospector{d: d, currentSchemaSQL: "SELECT DATABASE()"}, nil
	default:
		return nil, fmt.Errorf("no introspector for dialect %q", d.Name())
	}
}

// Reflect introspects tables (and optionally views) with their columns,
// primary keys and unique constraints, and returns the frozen Cache.
//
// Any failure returns a *ReflectionError. Reflect is meant to run once at
// process start; it never retries.
func Reflect(ctx context.Context, q Queryer, d dialect.Dialect, opts Options) (*Cache, error) {
	in, err := introspectorFor(d)
	if err != nil {
		return nil, &ReflectionError{Stage: "schema", Err: err}
	}

	current, err := in.currentSchema(ctx, q)
	if err != nil {
		return nil, &ReflectionError{Stage: "schema", Err: err}
	}

	schemas := opts.Schemas
	if len(schemas) == 0 {
		schemas = []string{current}
	}

	c := &Cache{
		relations: make(map[string]*Table),
		unique:    make(map[string][][]string),
		aliases:   make(map[string]*Table),
	}

	for _, schemaName := range schemas {
		rels, err := in.relations(ctx, q, schemaName, opts.Views)
		if err != nil {
			return nil, &ReflectionError{Stage: "relations", Relation: schemaName, Err: err}
		}

		keySchema := schemaName
		if schemaName == current {
			keySchema = ""
		}

		for _, rel := range rels {
			key := qualify(keySchema, rel.name)

			cols, err := in.columns(ctx, q, schemaName, rel.name)
			if err != nil {
				return nil, &ReflectionError{Stage: "columns", Relation: key, Err: err}
			}

			t := &Table{Schema: keySchema, Name: rel.name, Kind: rel.kind, Columns: cols}

			if rel.kind == KindTable {
				pk, unique, err := in.constraints(ctx, q, schemaName, rel.name)
				if err != nil {
					return nil, &ReflectionError{Stage: "constraints", Relation: key, Err: err}
				}
				t.PrimaryKey = pk
				markPrimaryKey(t)
				if len(unique) > 0 {
					c.unique[key] = unique
				}
			}

			c.relations[key] = t
			slog.Debug("reflected relation", "name", key, "kind", rel.kind.String(), "columns", len(cols))
		}
	}

	for _, a := range opts.Aliases {
		if a == nil || a.Kind != KindAlias || a.Name == "" || a.Expr == "" {
			return nil, &ReflectionError{Stage: "aliases", Err: fmt.Errorf("invalid alias %+v", a)}
		}
		if _, dup := c.aliases[a.Name]; dup {
			return nil, &ReflectionError{Stage: "aliases", Relation: a.Name, Err: fmt.Errorf("duplicate alias")}
		}
		c.aliases[a.Name] = a
	}

	slog.Info("schema reflected",
		"dialect", d.Name(),
		"tables", len(c.TableNames()),
		"views", len(c.ViewNames()),
		"aliases", len(c.aliases))

	return c, nil
}

func markPrimaryKey(t *Table) {
	for _, name := range t.PrimaryKey {
		for i := range t.Columns {
			if t.Columns[i].Name == name {
				t.Columns[i].PrimaryKey = true
			}
		}
	}
}
