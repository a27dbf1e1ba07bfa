// Package scopegraph assigns a unique id to each lexical scope.
//
// All components are assigned to a scope. The root scope covers the whole
// application; child scopes correspond to nested route groups. All the
// components registered in a scope are visible to every scope in its
// subtree.
package scopegraph

import "fmt"

// ScopeID is the unique id of a scope in a ScopeGraph.
type ScopeID int

// Root is the id of the root scope.
const Root ScopeID = 0

func (id ScopeID) String() string {
	return fmt.Sprintf("scope %d", int(id))
}

// ScopeGraph is an immutable tree of lexical scopes.
// Build one with a Builder.
type ScopeGraph struct {
	parents []ScopeID
	labels  []string
}

// Builder accumulates scopes before the graph is finalized.
type Builder struct {
	parents []ScopeID
	labels  []string
}

// NewBuilder creates a builder whose graph already contains the root scope.
func NewBuilder() *Builder {
	return &Builder{
		parents: []ScopeID{-1},
		labels:  []string{"root"},
	}
}

// AddScope adds a new scope as a child of parent and returns its id.
// The label is used in diagnostics only.
func (b *Builder) AddScope(parent ScopeID, label string) ScopeID {
	if int(parent) < 0 || int(parent) >= len(b.parents) {
		panic(fmt.Sprintf("scopegraph: unknown parent scope %d", int(parent)))
	}
	id := ScopeID(len(b.parents))
	b.parents = append(b.parents, parent)
	b.labels = append(b.labels, label)
	return id
}

// Build finalizes the graph. The builder must not be used afterwards.
func (b *Builder) Build() *ScopeGraph {
	return &ScopeGraph{parents: b.parents, labels: b.labels}
}

// Parent returns the parent of the given scope, or false for the root.
func (g *ScopeGraph) Parent(id ScopeID) (ScopeID, bool) {
	p := g.parents[id]
	if p < 0 {
		return 0, false
	}
	return p, true
}

// Label returns the diagnostic label of the given scope.
func (g *ScopeGraph) Label(id ScopeID) string {
	return g.labels[id]
}

// Len returns the number of scopes in the graph.
func (g *ScopeGraph) Len() int {
	return len(g.parents)
}

// Chain returns the scope chain from id up to and including the root.
func (g *ScopeGraph) Chain(id ScopeID) []ScopeID {
	chain := []ScopeID{id}
	for {
		p, ok := g.Parent(id)
		if !ok {
			return chain
		}
		chain = append(chain, p)
		id = p
	}
}

// IsDescendantOf reports whether id is other itself or one of its
// descendants.
func (g *ScopeGraph) IsDescendantOf(id, other ScopeID) bool {
	for {
		if id == other {
			return true
		}
		p, ok := g.Parent(id)
		if !ok {
			return false
		}
		id = p
	}
}

// CommonAncestor returns the deepest scope that is an ancestor (inclusive)
// of every id in ids.
// Panics if ids is empty: the graph always has a root, so callers must pass
// at least one scope.
func (g *ScopeGraph) CommonAncestor(ids []ScopeID) ScopeID {
	if len(ids) == 0 {
		panic("scopegraph: CommonAncestor requires at least one scope")
	}
	ancestor := ids[0]
	for _, id := range ids[1:] {
		for !g.IsDescendantOf(id, ancestor) {
			p, ok := g.Parent(ancestor)
			if !ok {
				return Root
			}
			ancestor = p
		}
	}
	return ancestor
}
