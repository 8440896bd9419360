package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// SQLSnapshot renders generated SQL and its bound args in the golden file
// format:
//
//	<sql>
//	-- args: <arg1>, <arg2>
//
// Args are rendered with %#v so strings stay quoted and types stay visible.
func SQLSnapshot(sql string, args []any) []byte {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprintf("%#v", a)
	}
	return []byte(sql + "\n-- args: " + strings.Join(parts, ", ") + "\n")
}

// AssertGoldenSQL compares generated SQL against testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/... -update
func AssertGoldenSQL(t *testing.T, name, sql string, args []any) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, SQLSnapshot(sql, args))
}
