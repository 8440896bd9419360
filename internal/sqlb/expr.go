package sqlb

import "github.com/roach88/txdal/internal/schema"

// Expr is a value expression.
//
// This is a sealed interface - only types in this package implement it.
type Expr interface {
	exprNode()
}

// Predicate is a boolean expression usable in WHERE and JOIN ... ON.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	Expr
	predicateNode()
}

// Column references a column of a reflected table, view or alias.
// The column name is checked against Table at Build time.
type Column struct {
	Table *schema.Table
	Name  string
}

func (Column) exprNode() {}

// Col references table.name.
func Col(t *schema.Table, name string) Column {
	return Column{Table: t, Name: name}
}

// Param is a bound argument.
type Param struct {
	Value any
}

func (Param) exprNode() {}

// P binds v as an argument.
func P(v any) Param {
	return Param{Value: v}
}

// Raw is caller-supplied SQL. Each ? in SQL is replaced by the dialect's
// placeholder and bound to the next element of Args. Raw is both an Expr
// and a Predicate; inside an And it is parenthesized.
//
// Every ? counts as a marker, including one inside a string literal or
// PostgreSQL's jsonb ? operators. Pass such text as an argument, or use
// jsonb_exists and friends instead of the operators.
type Raw struct {
	SQL  string
	Args []any
}

func (Raw) exprNode()      {}
func (Raw) predicateNode() {}

// R builds a Raw fragment.
func R(sql string, args ...any) Raw {
	return Raw{SQL: sql, Args: args}
}

// Subquery embeds a SELECT as an expression: (SELECT ...).
type Subquery struct {
	Select *Select
}

func (Subquery) exprNode() {}

// Sub wraps s as a parenthesized subquery expression.
func Sub(s *Select) Subquery {
	return Subquery{Select: s}
}

// Aliased renders Expr AS "Alias".
type Aliased struct {
	Expr  Expr
	Alias string
}

func (Aliased) exprNode() {}

// As names an expression in a select list.
func As(e Expr, alias string) Aliased {
	return Aliased{Expr: e, Alias: alias}
}

// AllColumns expands to every column of Table in ordinal order, each
// qualified. An alias declared without columns renders "alias".*.
type AllColumns struct {
	Table *schema.Table
}

func (AllColumns) exprNode() {}

// All selects every column of t.
func All(t *schema.Table) AllColumns {
	return AllColumns{Table: t}
}

// TotalCount is the window expression count(*) OVER () AS "total_count".
// Selected alongside a page of rows it carries the unpaginated row count.
func TotalCount() Aliased {
	return As(Raw{SQL: "count(*) OVER ()"}, "total_count")
}

// Op is a comparison operator.
type Op string

const (
	OpEq   Op = "="
	OpNe   Op = "<>"
	OpGe   Op = ">="
	OpLe   Op = "<="
	OpGt   Op = ">"
	OpLt   Op = "<"
	OpLike Op = "LIKE"
)

// Compare is Left <op> Right.
type Compare struct {
	Left  Expr
	Op    Op
	Right Expr
}

func (Compare) exprNode()      {}
func (Compare) predicateNode() {}

// And is the conjunction of Predicates, rendered in order and joined with
// " AND ". An empty And renders 1 = 1.
type And struct {
	Predicates []Predicate
}

func (And) exprNode()      {}
func (And) predicateNode() {}

// IsNull is Expr IS NULL, or IS NOT NULL when Not is set.
type IsNull struct {
	Expr Expr
	Not  bool
}

func (IsNull) exprNode()      {}
func (IsNull) predicateNode() {}

// value turns a Go value into an expression: Exprs pass through, anything
// else is bound as a Param.
func value(v any) Expr {
	if e, ok := v.(Expr); ok {
		return e
	}
	return Param{Value: v}
}

func compare(left Expr, op Op, right any) Compare {
	return Compare{Left: left, Op: op, Right: value(right)}
}

// Eq is left = right. A non-Expr right is bound as a parameter.
func Eq(left Expr, right any) Compare { return compare(left, OpEq, right) }

// Ne is left <> right.
func Ne(left Expr, right any) Compare { return compare(left, OpNe, right) }

// Ge is left >= right.
func Ge(left Expr, right any) Compare { return compare(left, OpGe, right) }

// Le is left <= right.
func Le(left Expr, right any) Compare { return compare(left, OpLe, right) }

// Gt is left > right.
func Gt(left Expr, right any) Compare { return compare(left, OpGt, right) }

// Lt is left < right.
func Lt(left Expr, right any) Compare { return compare(left, OpLt, right) }

// Like is left LIKE right.
func Like(left Expr, right any) Compare { return compare(left, OpLike, right) }

// Null is e IS NULL.
func Null(e Expr) IsNull { return IsNull{Expr: e} }

// NotNull is e IS NOT NULL.
func NotNull(e Expr) IsNull { return IsNull{Expr: e, Not: true} }

// Conjoin returns the conjunction of the non-nil predicates: nil when there
// are none, the predicate itself when there is one, otherwise an And.
// Nested Ands are flattened.
func Conjoin(preds ...Predicate) Predicate {
	var flat []Predicate
	for _, p := range preds {
		switch p := p.(type) {
		case nil:
		case And:
			flat = append(flat, p.Predicates...)
		case *And:
			if p != nil {
				flat = append(flat, p.Predicates...)
			}
		default:
			flat = append(flat, p)
		}
	}
	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	default:
		return And{Predicates: flat}
	}
}

// Order is one ORDER BY term.
type Order struct {
	Expr Expr
	Desc bool
}

// Asc orders by e ascending.
func Asc(e Expr) Order { return Order{Expr: e} }

// Desc orders by e descending.
func Desc(e Expr) Order { return Order{Expr: e, Desc: true} }
