package rbac

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func marketplaceCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog(1,
		perms("admin", "item_assign", "interest_assign", "interest_view", "item_reject", "user_view"),
		[]Implication{
			{Parent: "admin", Child: "item_assign"},
			{Parent: "admin", Child: "item_reject"},
			{Parent: "admin", Child: "user_view"},
			{Parent: "item_assign", Child: "interest_assign"},
		})
	require.NoError(t, err)
	return c
}

func TestResolve(t *testing.T) {
	c := marketplaceCatalog(t)

	cases := []struct {
		name     string
		granted  []string
		required []string
		want     bool
	}{
		{"direct grant", []string{"interest_view"}, []string{"interest_view"}, true},
		{"implied by parent", []string{"item_assign"}, []string{"interest_assign"}, true},
		{"implied transitively", []string{"admin"}, []string{"interest_assign"}, true},
		{"implication is one-way", []string{"interest_assign"}, []string{"item_assign"}, false},
		{"any of required", []string{"interest_view"}, []string{"item_reject", "interest_view"}, true},
		{"nothing granted", nil, []string{"interest_view"}, false},
		{"unknown required", []string{"ghost"}, []string{"ghost"}, false},
		{"empty required", nil, nil, true},
		{"case insensitive", []string{"Item_Assign"}, []string{" INTEREST_ASSIGN"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Resolve(c, tc.granted, tc.required))
		})
	}
}

func TestResolveIsMonotonic(t *testing.T) {
	c := marketplaceCatalog(t)
	base := []string{"item_assign"}
	for _, required := range c.Names() {
		if !Resolve(c, base, []string{required}) {
			continue
		}
		for _, extra := range c.Names() {
			require.True(t, Resolve(c, append([]string{extra}, base...), []string{required}),
				"adding %s must not revoke %s", extra, required)
		}
	}
}

func TestResolveNilCatalogDenies(t *testing.T) {
	require.False(t, Resolve(nil, []string{"admin"}, []string{"admin"}))
}

func TestResolverSwapKeepsNewest(t *testing.T) {
	older, err := NewCatalog(1, perms("a"), nil)
	require.NoError(t, err)
	newer, err := NewCatalog(2, perms("a", "b"), nil)
	require.NoError(t, err)

	r := NewResolver(nil)
	require.True(t, r.Swap(newer))
	require.False(t, r.Swap(older))
	require.Same(t, newer, r.Catalog())
	require.True(t, r.Resolve([]string{"b"}, []string{"b"}))
}
