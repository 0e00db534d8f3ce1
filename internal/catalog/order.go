// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

package catalog

import "github.com/uptrace/bun/schema"

// Dependencies returns the registered types that name references through a
// foreign key, i.e. the types whose rows must exist before rows of name can
// be written.
//
// belongs-to puts the key on the base table; has-one and has-many put it on
// the joined table. many-to-many is expressed through its own join model,
// which carries belongs-to relations of its own.
func (c *Catalog) Dependencies(name string) []string {
	var deps []string
	seen := map[string]bool{}
	add := func(n string) {
		if n != "" && n != name && !seen[n] {
			seen[n] = true
			deps = append(deps, n)
		}
	}

	d, ok := c.descs[name]
	if !ok {
		return nil
	}
	for _, rel := range d.table.Relations {
		if rel.Type == schema.BelongsToRelation {
			add(c.byType[rel.JoinTable.Type])
		}
	}
	// Reverse edges: other types declaring has-one/has-many onto name.
	for _, other := range c.reg.Names() {
		od := c.descs[other]
		for _, rel := range od.table.Relations {
			if rel.JoinTable.Type != d.table.Type {
				continue
			}
			if rel.Type == schema.HasOneRelation || rel.Type == schema.HasManyRelation {
				add(other)
			}
		}
	}
	return deps
}

// DependencyOrder sorts names so every type comes after the types it
// depends on. Ties keep registration order; unknown names go last in their
// given order. Types caught in a cycle are appended in registration order,
// leaving the store's own constraint checks to decide.
func (c *Catalog) DependencyOrder(names []string) []string {
	want := map[string]bool{}
	for _, n := range names {
		want[n] = true
	}

	var known []string
	for _, n := range c.reg.Names() {
		if want[n] {
			known = append(known, n)
		}
	}

	indegree := map[string]int{}
	dependents := map[string][]string{}
	for _, n := range known {
		indegree[n] += 0
		for _, dep := range c.Dependencies(n) {
			if !want[dep] {
				continue
			}
			indegree[n]++
			dependents[dep] = append(dependents[dep], n)
		}
	}

	out := make([]string, 0, len(names))
	done := map[string]bool{}
	for len(out) < len(known) {
		progressed := false
		for _, n := range known {
			if done[n] || indegree[n] > 0 {
				continue
			}
			done[n] = true
			out = append(out, n)
			for _, m := range dependents[n] {
				indegree[m]--
			}
			progressed = true
			break
		}
		if !progressed {
			for _, n := range known {
				if !done[n] {
					done[n] = true
					out = append(out, n)
				}
			}
		}
	}

	for _, n := range names {
		if _, ok := c.descs[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// ReverseDependencyOrder is DependencyOrder reversed: the order in which
// rows can be deleted without violating foreign keys.
func (c *Catalog) ReverseDependencyOrder(names []string) []string {
	ordered := c.DependencyOrder(names)
	out := make([]string, 0, len(ordered))
	for i := len(ordered) - 1; i >= 0; i-- {
		if _, ok := c.descs[ordered[i]]; ok {
			out = append(out, ordered[i])
		}
	}
	return out
}
