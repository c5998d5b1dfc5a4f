package rbac

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func perms(names ...string) []Permission {
	out := make([]Permission, 0, len(names))
	for _, n := range names {
		out = append(out, Permission{Name: n})
	}
	return out
}

func TestNewCatalogRejectsCycle(t *testing.T) {
	_, err := NewCatalog(1, perms("a", "b", "c"), []Implication{
		{Parent: "a", Child: "b"},
		{Parent: "b", Child: "c"},
		{Parent: "c", Child: "a"},
	})
	var cycle *ErrCatalogCycle
	require.ErrorAs(t, err, &cycle)
	require.Equal(t, cycle.Path[0], cycle.Path[len(cycle.Path)-1])
}

func TestNewCatalogRejectsUnknownEndpoint(t *testing.T) {
	_, err := NewCatalog(1, perms("a"), []Implication{{Parent: "a", Child: "ghost"}})
	require.Error(t, err)
}

func TestCatalogAncestorsAreTransitive(t *testing.T) {
	c, err := NewCatalog(3, perms("admin", "item_assign", "interest_assign", "interest_view"), []Implication{
		{Parent: "admin", Child: "item_assign"},
		{Parent: "item_assign", Child: "interest_assign"},
		{Parent: "item_assign", Child: "interest_assign"},
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), c.Version())
	require.Equal(t, []string{"admin", "item_assign"}, c.Ancestors("interest_assign"))
	require.Empty(t, c.Ancestors("interest_view"))
	require.Equal(t, []string{"interest_assign"}, c.Children("item_assign"))
	require.Equal(t, []string{"admin", "item_assign"}, c.Categories())
}

func TestCatalogWouldCycle(t *testing.T) {
	c, err := NewCatalog(1, perms("a", "b", "c"), []Implication{
		{Parent: "a", Child: "b"},
		{Parent: "b", Child: "c"},
	})
	require.NoError(t, err)
	require.True(t, c.WouldCycle("c", "a"))
	require.True(t, c.WouldCycle("b", "b"))
	require.False(t, c.WouldCycle("a", "c"))
	require.True(t, c.HasEdge("A ", "b"))
}

func TestExpandOneStopsAfterOneHop(t *testing.T) {
	c, err := NewCatalog(1, perms("a", "b", "c"), []Implication{
		{Parent: "a", Child: "b"},
		{Parent: "b", Child: "c"},
	})
	require.NoError(t, err)
	got := c.ExpandOne([]string{"a"})
	require.Contains(t, got, "a")
	require.Contains(t, got, "b")
	require.NotContains(t, got, "c")
}

func TestNilCatalogIsEmpty(t *testing.T) {
	var c *Catalog
	require.False(t, c.Has("a"))
	require.Nil(t, c.Names())
	require.Equal(t, int64(0), c.Version())
	require.Contains(t, c.ExpandOne([]string{"a"}), "a")
}
