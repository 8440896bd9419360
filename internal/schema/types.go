package schema

import "fmt"

// Kind distinguishes reflected tables, reflected views and table-valued aliases.
type Kind int

const (
	KindTable Kind = iota
	KindView
	KindAlias
)

func (k Kind) String() string {
	switch k {
	case KindTable:
		return "table"
	case KindView:
		return "view"
	case KindAlias:
		return "alias"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name in JSON and YAML output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a name written by MarshalText.
func (k *Kind) UnmarshalText(text []byte) error {
	for _, c := range []Kind{KindTable, KindView, KindAlias} {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown relation kind %q", text)
}

// Column is one reflected column.
type Column struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Nullable   bool    `json:"nullable"`
	Default    *string `json:"default,omitempty"`
	PrimaryKey bool    `json:"primary_key,omitempty"`
	Position   int     `json:"position"`
}

// Table is the metadata of a table, a view or a table-valued alias.
//
// Tables are shared read-only between all transactions once reflected;
// nothing in txdal mutates a Table after construction.
type Table struct {
	// Schema is empty for relations in the connection's default schema.
	Schema     string   `json:"schema,omitempty"`
	Name       string   `json:"name"`
	Kind       Kind     `json:"kind"`
	Columns    []Column `json:"columns"`
	PrimaryKey []string `json:"primary_key,omitempty"`

	// Expr is the FROM expression of an alias, with ? argument markers.
	Expr string `json:"expr,omitempty"`
	// Args are bound into Expr, in order.
	Args []any `json:"-"`
}

// NewTable constructs table metadata by hand. Reflection is the normal
// source of Tables; this exists for statement building without a live
// database and for staging tables.
func NewTable(schemaName, name string, kind Kind, columns ...Column) *Table {
	t := &Table{Schema: schemaName, Name: name, Kind: kind}
	for i, c := range columns {
		if c.Position == 0 {
			c.Position = i + 1
		}
		t.Columns = append(t.Columns, c)
		if c.PrimaryKey {
			t.PrimaryKey = append(t.PrimaryKey, c.Name)
		}
	}
	return t
}

// NewAlias builds a table-valued alias: a named FROM expression such as
// json_each(?) or (SELECT ...) whose columns can be referenced like a table's.
// With no columns, references to any column name are accepted.
func NewAlias(name, expr string, args []any, columns ...string) *Table {
	t := &Table{Name: name, Kind: KindAlias, Expr: expr, Args: args}
	for i, c := range columns {
		t.Columns = append(t.Columns, Column{Name: c, Position: i + 1, Nullable: true})
	}
	return t
}

// QualifiedName is the lookup key: "name", or "schema.name" outside the
// default schema.
func (t *Table) QualifiedName() string {
	return qualify(t.Schema, t.Name)
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, error) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], nil
		}
	}
	if t.Kind == KindAlias && len(t.Columns) == 0 {
		return &Column{Name: name, Nullable: true}, nil
	}
	return nil, &LookupError{Code: ErrCodeColumnNotFound, Name: name, Table: t.QualifiedName()}
}

// HasColumn reports whether Column(name) would succeed.
func (t *Table) HasColumn(name string) bool {
	_, err := t.Column(name)
	return err == nil
}

// ColumnNames returns column names in ordinal order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

func qualify(schemaName, name string) string {
	if schemaName == "" {
		return name
	}
	return schemaName + "." + name
}

// Lookup resolves a relation name to its metadata. The DataAccessLayer and
// every Transaction implement it.
type Lookup interface {
	GetTable(name string) (*Table, error)
}
