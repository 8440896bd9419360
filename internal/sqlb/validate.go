package sqlb

import (
	"fmt"

	"github.com/roach88/txdal/internal/schema"
)

// ValidationResult lists statement shapes that are legal SQL but usually
// a mistake.
type ValidationResult struct {
	// Clean is true when there are no warnings.
	Clean bool

	// Warnings describe each suspicious shape found.
	Warnings []string
}

// Validate inspects stmt without building it. It never fails; Build is
// what reports errors.
//
// Warnings:
//   - UPDATE or DELETE without WHERE touches every row
//   - LIMIT or OFFSET without ORDER BY pages non-deterministically
//   - JOIN without an ON predicate is a cross join
//
// Validate is a pure function with no side effects.
func Validate(stmt Statement) ValidationResult {
	v := &validator{warnings: []string{}}

	switch s := stmt.(type) {
	case *Select:
		v.validateSelect(s)
	case *Update:
		if len(s.where) == 0 {
			v.addWarning("UPDATE %s without WHERE affects every row", name(s.table))
		}
	case *Delete:
		if len(s.where) == 0 {
			v.addWarning("DELETE FROM %s without WHERE affects every row", name(s.table))
		}
	case *Insert, nil:
	default:
		v.addWarning("unknown statement type %T", stmt)
	}

	return ValidationResult{
		Clean:    len(v.warnings) == 0,
		Warnings: v.warnings,
	}
}

type validator struct {
	warnings []string
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateSelect(s *Select) {
	if (s.limit > 0 || s.offset > 0) && len(s.orderBy) == 0 {
		v.addWarning("LIMIT/OFFSET without ORDER BY on %s gives unstable pages", name(s.from))
	}
	for _, j := range s.joins {
		if j.on == nil {
			v.addWarning("JOIN %s without ON is a cross join", name(j.table))
		}
	}
	for _, c := range s.columns {
		if sub, ok := c.(Subquery); ok && sub.Select != nil {
			v.validateSelect(sub.Select)
		}
	}
}

func name(t *schema.Table) string {
	if t == nil {
		return "<nil>"
	}
	return t.QualifiedName()
}
