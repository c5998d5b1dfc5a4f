package rbac

import "sync/atomic"

// Resolve reports whether granted satisfies any one of required under the
// catalog's implication graph. A required permission is satisfied when it is
// granted directly or when a granted permission transitively implies it.
// Names unknown to the catalog are never satisfied. An empty required list
// is trivially satisfied.
func Resolve(c *Catalog, granted []string, required []string) bool {
	if len(required) == 0 {
		return true
	}
	if c == nil {
		return false
	}
	set := make(map[string]struct{}, len(granted))
	for _, g := range granted {
		set[Normalize(g)] = struct{}{}
	}
	for _, r := range required {
		r = Normalize(r)
		if !c.Has(r) {
			continue
		}
		if _, ok := set[r]; ok {
			return true
		}
		for _, a := range c.Ancestors(r) {
			if _, ok := set[a]; ok {
				return true
			}
		}
	}
	return false
}

// Resolver holds the current catalog snapshot and swaps it atomically.
type Resolver struct {
	current atomic.Pointer[Catalog]
}

// NewResolver returns a Resolver seeded with c (which may be nil).
func NewResolver(c *Catalog) *Resolver {
	r := &Resolver{}
	if c != nil {
		r.current.Store(c)
	}
	return r
}

// Catalog returns the snapshot in use.
func (r *Resolver) Catalog() *Catalog {
	return r.current.Load()
}

// Swap installs c unless a newer version is already installed. It reports
// whether c became current.
func (r *Resolver) Swap(c *Catalog) bool {
	for {
		old := r.current.Load()
		if old != nil && c.Version() < old.Version() {
			return false
		}
		if r.current.CompareAndSwap(old, c) {
			return true
		}
	}
}

// Resolve evaluates against the current snapshot.
func (r *Resolver) Resolve(granted []string, required []string) bool {
	return Resolve(r.current.Load(), granted, required)
}
