// Package sqlb builds parameterized SELECT, INSERT, UPDATE and DELETE
// statements against reflected schema metadata.
//
// Statements are trees of Expr and Predicate nodes. Both are sealed
// interfaces: only types in this package implement them, so Build can
// switch over every node kind exhaustively.
//
// Node types:
//   - Column: a reflected column, qualified by its table ("book"."name")
//   - Param: a bound value, rendered as the dialect's placeholder
//   - Raw: caller SQL with ? argument markers
//   - Subquery: a nested *Select
//   - Aliased: any expression with AS "alias"
//   - AllColumns: every column of a table
//   - Compare, And, IsNull, Raw: predicates
//
// Values are never interpolated. Every argument becomes a placeholder and
// Build returns the arguments in placeholder order:
//
//	stmt := sqlb.NewSelect(sqlb.All(book)).
//		From(book).
//		Where(sqlb.Eq(sqlb.Col(book, "catalog"), "Boring")).
//		OrderBy(sqlb.Asc(sqlb.Col(book, "id")))
//
//	query, args, err := stmt.Build(dialect.SQLite{})
//	// SELECT "book"."id", "book"."name" FROM "book"
//	// WHERE "book"."catalog" = ? ORDER BY "book"."id"
//	// args: ["Boring"]
//
// Column references are checked against the table metadata at Build time,
// so a misspelled column fails before anything reaches the database.
package sqlb
