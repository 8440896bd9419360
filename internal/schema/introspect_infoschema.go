package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/txdal/internal/dialect"
)

// infoSchemaIntrospector reads the SQL-standard information_schema views,
// shared by PostgreSQL and MySQL. Only placeholders and the current-schema
// query differ.
type infoSchemaIntrospector struct {
	d                dialect.Dialect
	currentSchemaSQL string
}

// bind rewrites ? markers to the dialect's placeholders.
func (s infoSchemaIntrospector) bind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(s.d.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s infoSchemaIntrospector) currentSchema(ctx context.Context, q Queryer) (string, error) {
	rows, err := q.QueryContext(ctx, s.currentSchemaSQL)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var name sql.NullString
	if rows.Next() {
		if err := rows.Scan(&name); err != nil {
			return "", err
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if !name.Valid || name.String == "" {
		return "", fmt.Errorf("connection has no current schema")
	}
	return name.String, nil
}

func (s infoSchemaIntrospector) relations(ctx context.Context, q Queryer, schemaName string, views bool) ([]relation, error) {
	rows, err := q.QueryContext(ctx, s.bind(`
		SELECT table_name, table_type FROM information_schema.tables
		WHERE table_schema = ? AND table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY table_name`), schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rels []relation
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, err
		}
		kind := KindTable
		if typ == "VIEW" {
			if !views {
				continue
			}
			kind = KindView
		}
		rels = append(rels, relation{name: name, kind: kind})
	}
	return rels, rows.Err()
}

func (s infoSchemaIntrospector) columns(ctx context.Context, q Queryer, schemaName, name string) ([]Column, error) {
	rows, err := q.QueryContext(ctx, s.bind(`
		SELECT column_name, data_type, is_nullable, column_default, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`), schemaName, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			col      Column
			nullable string
			dflt     sql.NullString
		)
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &dflt, &col.Position); err != nil {
			return nil, err
		}
		col.Nullable = nullable == "YES"
		if dflt.Valid {
			v := dflt.String
			col.Default = &v
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no columns for %s.%s", schemaName, name)
	}
	return cols, nil
}

func (s infoSchemaIntrospector) constraints(ctx context.Context, q Queryer, schemaName, name string) ([]string, [][]string, error) {
	rows, err := q.QueryContext(ctx, s.bind(`
		SELECT tc.constraint_name, tc.constraint_type, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_schema = tc.constraint_schema
		 AND kcu.constraint_name = tc.constraint_name
		 AND kcu.table_name = tc.table_name
		WHERE tc.table_schema = ? AND tc.table_name = ?
		  AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE')
		ORDER BY tc.constraint_name, kcu.ordinal_position`), schemaName, name)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var (
		pk     []string
		unique [][]string
		last   string
	)
	for rows.Next() {
		var constraint, typ, column string
		if err := rows.Scan(&constraint, &typ, &column); err != nil {
			return nil, nil, err
		}
		if typ == "PRIMARY KEY" {
			pk = append(pk, column)
			continue
		}
		if constraint != last || len(unique) == 0 {
			unique = append(unique, nil)
			last = constraint
		}
		unique[len(unique)-1] = append(unique[len(unique)-1], column)
	}
	return pk, unique, rows.Err()
}
