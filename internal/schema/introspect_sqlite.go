package schema

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/roach88/txdal/internal/dialect"
)

// sqliteIntrospector reads sqlite_master and the table_info / index_list /
// index_info pragmas. Attached databases are addressed as schemas.
type sqliteIntrospector struct {
	d dialect.Dialect
}

func (sqliteIntrospector) currentSchema(context.Context, Queryer) (string, error) {
	return "main", nil
}

func (s sqliteIntrospector) relations(ctx context.Context, q Queryer, schemaName string, views bool) ([]relation, error) {
	query := fmt.Sprintf(`
		SELECT name, type FROM %s.sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%%'
		ORDER BY name`, s.d.QuoteIdent(schemaName))

	rows, err := q.QueryContext(ctx, query)
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
		if typ == "view" {
			if !views {
				continue
			}
			kind = KindView
		}
		rels = append(rels, relation{name: name, kind: kind})
	}
	return rels, rows.Err()
}

func (s sqliteIntrospector) columns(ctx context.Context, q Queryer, schemaName, name string) ([]Column, error) {
	cols, _, err := s.tableInfo(ctx, q, schemaName, name)
	return cols, err
}

// tableInfo returns the columns and the primary key in key order.
func (s sqliteIntrospector) tableInfo(ctx context.Context, q Queryer, schemaName, name string) ([]Column, []string, error) {
	query := fmt.Sprintf("PRAGMA %s.table_info(%s)", s.d.QuoteIdent(schemaName), s.d.QuoteIdent(name))
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	type pkPart struct {
		name string
		seq  int
	}
	var (
		cols []Column
		pks  []pkPart
	)
	for rows.Next() {
		var (
			cid     int
			colName string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &colName, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, nil, err
		}
		col := Column{
			Name:     colName,
			Type:     typ,
			Nullable: notNull == 0 && pk == 0,
			Position: cid + 1,
		}
		if dflt.Valid {
			v := dflt.String
			col.Default = &v
		}
		if pk > 0 {
			pks = append(pks, pkPart{name: colName, seq: pk})
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	if len(cols) == 0 {
		return nil, nil, fmt.Errorf("no columns for %s.%s", schemaName, name)
	}

	sort.Slice(pks, func(i, j int) bool { return pks[i].seq < pks[j].seq })
	var pk []string
	for _, p := range pks {
		pk = append(pk, p.name)
	}
	return cols, pk, nil
}

func (s sqliteIntrospector) constraints(ctx context.Context, q Queryer, schemaName, name string) ([]string, [][]string, error) {
	_, pk, err := s.tableInfo(ctx, q, schemaName, name)
	if err != nil {
		return nil, nil, err
	}

	indexes, err := s.uniqueIndexes(ctx, q, schemaName, name)
	if err != nil {
		return nil, nil, err
	}

	var unique [][]string
	for _, idx := range indexes {
		cols, err := s.indexColumns(ctx, q, schemaName, idx)
		if err != nil {
			return nil, nil, err
		}
		unique = append(unique, cols)
	}
	return pk, unique, nil
}

// uniqueIndexes returns the names of indexes backing UNIQUE constraints
// (origin "u"), sorted by name. CREATE UNIQUE INDEX and primary keys
// are not constraints and are skipped.
func (s sqliteIntrospector) uniqueIndexes(ctx context.Context, q Queryer, schemaName, name string) ([]string, error) {
	query := fmt.Sprintf("PRAGMA %s.index_list(%s)", s.d.QuoteIdent(schemaName), s.d.QuoteIdent(name))
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var (
			seq     int
			idxName string
			unique  int
			origin  string
			partial int
		)
		if err := rows.Scan(&seq, &idxName, &unique, &origin, &partial); err != nil {
			return nil, err
		}
		if unique == 1 && origin == "u" {
			names = append(names, idxName)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (s sqliteIntrospector) indexColumns(ctx context.Context, q Queryer, schemaName, index string) ([]string, error) {
	query := fmt.Sprintf("PRAGMA %s.index_info(%s)", s.d.QuoteIdent(schemaName), s.d.QuoteIdent(index))
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			seqno int
			cid   int
			name  sql.NullString
		)
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		cols = append(cols, name.String)
	}
	return cols, rows.Err()
}
