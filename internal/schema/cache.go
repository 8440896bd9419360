package schema

import "sort"

// Cache is the reflected schema: relations by qualified name, unique
// constraint column-groups by table, and table-valued aliases by name.
//
// A Cache is built once by Reflect and never mutated afterwards, so it is
// shared by every concurrent transaction without locking.
type Cache struct {
	relations map[string]*Table
	unique    map[string][][]string
	aliases   map[string]*Table
}

// Table returns a reflected table or view.
func (c *Cache) Table(name string) (*Table, error) {
	if t, ok := c.relations[name]; ok {
		return t, nil
	}
	return nil, &LookupError{Code: ErrCodeTableNotFound, Name: name}
}

// View returns a reflected view. Tables are not views.
func (c *Cache) View(name string) (*Table, error) {
	if t, ok := c.relations[name]; ok && t.Kind == KindView {
		return t, nil
	}
	return nil, &LookupError{Code: ErrCodeViewNotFound, Name: name}
}

// Alias returns a static table-valued alias.
func (c *Cache) Alias(name string) (*Table, error) {
	if t, ok := c.aliases[name]; ok {
		return t, nil
	}
	return nil, &LookupError{Code: ErrCodeAliasNotFound, Name: name}
}

// UniqueConstraints returns the column-groups guaranteed unique on a table,
// one group per constraint. A table with no unique constraints yields nil.
// The primary key is not included.
func (c *Cache) UniqueConstraints(table string) ([][]string, error) {
	if _, ok := c.relations[table]; !ok {
		return nil, &LookupError{Code: ErrCodeTableNotFound, Name: table}
	}
	groups := c.unique[table]
	out := make([][]string, len(groups))
	for i, g := range groups {
		out[i] = append([]string(nil), g...)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// TableNames returns reflected table names (views excluded), sorted.
func (c *Cache) TableNames() []string {
	return c.names(KindTable)
}

// ViewNames returns reflected view names, sorted.
func (c *Cache) ViewNames() []string {
	return c.names(KindView)
}

// AliasNames returns static alias names, sorted.
func (c *Cache) AliasNames() []string {
	names := make([]string, 0, len(c.aliases))
	for n := range c.aliases {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (c *Cache) names(kind Kind) []string {
	var names []string
	for n, t := range c.relations {
		if t.Kind == kind {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}
