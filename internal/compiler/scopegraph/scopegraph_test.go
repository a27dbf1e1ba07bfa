package scopegraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSample() (*ScopeGraph, ScopeID, ScopeID, ScopeID) {
	b := NewBuilder()
	api := b.AddScope(Root, "api")
	admin := b.AddScope(api, "admin")
	public := b.AddScope(Root, "public")
	return b.Build(), api, admin, public
}

func TestChainWalksToRoot(t *testing.T) {
	g, api, admin, _ := buildSample()

	require.Equal(t, []ScopeID{admin, api, Root}, g.Chain(admin))
	require.Equal(t, []ScopeID{Root}, g.Chain(Root))
}

func TestIsDescendantOf(t *testing.T) {
	g, api, admin, public := buildSample()

	assert.True(t, g.IsDescendantOf(admin, Root))
	assert.True(t, g.IsDescendantOf(admin, api))
	assert.True(t, g.IsDescendantOf(api, api))
	assert.False(t, g.IsDescendantOf(api, admin))
	assert.False(t, g.IsDescendantOf(admin, public), "sibling subtrees must not observe each other")
}

func TestCommonAncestor(t *testing.T) {
	g, api, admin, public := buildSample()

	assert.Equal(t, api, g.CommonAncestor([]ScopeID{api, admin}))
	assert.Equal(t, Root, g.CommonAncestor([]ScopeID{admin, public}))
	assert.Equal(t, admin, g.CommonAncestor([]ScopeID{admin}))
}

func TestCommonAncestorPanicsOnEmptyInput(t *testing.T) {
	g, _, _, _ := buildSample()
	assert.Panics(t, func() { g.CommonAncestor(nil) })
}
