package rbac

import (
	"fmt"
	"sort"
)

// Catalog is an immutable snapshot of the known permissions and their
// implication graph. A Catalog is safe for concurrent use.
type Catalog struct {
	version  int64
	names    map[string]struct{}
	children map[string][]string
	parents  map[string][]string
}

// ErrCatalogCycle is returned when the implication graph contains a cycle.
type ErrCatalogCycle struct {
	Path []string
}

func (e *ErrCatalogCycle) Error() string {
	return fmt.Sprintf("rbac: implication cycle %v", e.Path)
}

// NewCatalog validates the graph and builds a snapshot.
func NewCatalog(version int64, perms []Permission, edges []Implication) (*Catalog, error) {
	c := &Catalog{
		version:  version,
		names:    make(map[string]struct{}, len(perms)),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
	}
	for _, p := range perms {
		name := Normalize(p.Name)
		if name == "" {
			continue
		}
		c.names[name] = struct{}{}
	}
	seen := make(map[Implication]struct{}, len(edges))
	for _, e := range edges {
		edge := Implication{Parent: Normalize(e.Parent), Child: Normalize(e.Child)}
		if !c.Has(edge.Parent) || !c.Has(edge.Child) {
			return nil, fmt.Errorf("rbac: implication %s -> %s references unknown permission", edge.Parent, edge.Child)
		}
		if _, dup := seen[edge]; dup {
			continue
		}
		seen[edge] = struct{}{}
		c.children[edge.Parent] = append(c.children[edge.Parent], edge.Child)
		c.parents[edge.Child] = append(c.parents[edge.Child], edge.Parent)
	}
	for _, list := range c.children {
		sort.Strings(list)
	}
	for _, list := range c.parents {
		sort.Strings(list)
	}
	if path := c.findCycle(); path != nil {
		return nil, &ErrCatalogCycle{Path: path}
	}
	return c, nil
}

// Version returns the catalog revision the snapshot was built from.
func (c *Catalog) Version() int64 {
	if c == nil {
		return 0
	}
	return c.version
}

// Has reports whether name is a known permission.
func (c *Catalog) Has(name string) bool {
	if c == nil {
		return false
	}
	_, ok := c.names[Normalize(name)]
	return ok
}

// Names returns all permission names sorted.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.names))
	for n := range c.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Children returns the permissions directly implied by name.
func (c *Catalog) Children(name string) []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.children[Normalize(name)]...)
}

// Ancestors returns every permission that transitively implies name.
func (c *Catalog) Ancestors(name string) []string {
	if c == nil {
		return nil
	}
	start := Normalize(name)
	visited := map[string]struct{}{start: {}}
	queue := []string{start}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, p := range c.parents[cur] {
			if _, ok := visited[p]; ok {
				continue
			}
			visited[p] = struct{}{}
			out = append(out, p)
			queue = append(queue, p)
		}
	}
	sort.Strings(out)
	return out
}

// ExpandOne returns granted plus every permission one implication hop below it.
func (c *Catalog) ExpandOne(granted []string) map[string]struct{} {
	out := make(map[string]struct{}, len(granted))
	for _, g := range granted {
		g = Normalize(g)
		out[g] = struct{}{}
		if c == nil {
			continue
		}
		for _, child := range c.children[g] {
			out[child] = struct{}{}
		}
	}
	return out
}

// Categories returns the permissions that imply at least one other permission.
func (c *Catalog) Categories() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.children))
	for p := range c.children {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// HasEdge reports whether parent directly implies child.
func (c *Catalog) HasEdge(parent, child string) bool {
	if c == nil {
		return false
	}
	child = Normalize(child)
	for _, ch := range c.children[Normalize(parent)] {
		if ch == child {
			return true
		}
	}
	return false
}

// WouldCycle reports whether adding parent -> child would close a cycle.
func (c *Catalog) WouldCycle(parent, child string) bool {
	parent, child = Normalize(parent), Normalize(child)
	if parent == child {
		return true
	}
	for _, a := range c.Ancestors(parent) {
		if a == child {
			return true
		}
	}
	return false
}

func (c *Catalog) findCycle() []string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(c.names))
	var stack []string
	var visit func(string) []string
	visit = func(n string) []string {
		color[n] = grey
		stack = append(stack, n)
		for _, ch := range c.children[n] {
			switch color[ch] {
			case grey:
				for i, s := range stack {
					if s == ch {
						return append(append([]string(nil), stack[i:]...), ch)
					}
				}
			case white:
				if path := visit(ch); path != nil {
					return path
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
		return nil
	}
	for _, n := range c.Names() {
		if color[n] == white {
			if path := visit(n); path != nil {
				return path
			}
		}
	}
	return nil
}
