// Package pipeline implements the per-route assembler: it orders a handler's
// middleware chain into stages, builds one ownership-checked call graph per
// stage, threads request-scoped state between stages through synthesized
// continuation types, and hands the result to the code-generation back-end.
package pipeline

import (
	"github.com/vireo-lang/vireo/internal/compiler/component"
	"github.com/vireo-lang/vireo/internal/compiler/componentdb"
	"github.com/vireo-lang/vireo/internal/compiler/language"
)

// Pipeline is the fully assembled processing sequence of one route.
type Pipeline struct {
	Method  string
	Pattern string
	Handler componentdb.ComponentID
	Stages  []*Stage
}

// Stage is one (pre*, middle, post*) segment of a pipeline. The middle
// component is a wrapping middleware (possibly the synthetic outermost
// anchor) or, in the last stage, the request handler.
type Stage struct {
	Name   string
	Middle componentdb.ComponentID
	Pre    []componentdb.ComponentID
	Post   []componentdb.ComponentID

	// Bindings are the middle component's inputs in declaration order,
	// named after the graph nodes that produce them.
	Bindings []Binding

	// State describes the continuation state handed to the next stage;
	// nil for the last stage.
	State *StateDescriptor

	// Graph is the stage's call graph: every component the stage invokes,
	// topologically sorted so that dependencies precede consumers.
	Graph *Graph

	// ResponseConversion converts the middle component's output into the
	// canonical response type, when one was needed.
	ResponseConversion componentdb.ComponentID

	// Duplicates maps a type key to the invocation-order indexes at which
	// the generated code must insert a duplicate of the value to satisfy a
	// later consumer.
	Duplicates map[string][]int
}

// Binding names one input of a stage's middle component.
type Binding struct {
	Name string
	Type language.Type
	Mode component.ConsumptionMode

	// nodeComponent backs state-field bindings: the component whose output
	// the field carries.
	nodeComponent componentdb.ComponentID
}

// StateDescriptor is the synthesized continuation-state type of a wrapping
// stage, with its ordered field bindings.
type StateDescriptor struct {
	Type        language.Type
	Constructor componentdb.ComponentID
	Fields      []Binding
}

// Graph is a topologically ordered call graph.
type Graph struct {
	Nodes []*Node
}

// Node is one invocation in a stage's call graph.
type Node struct {
	ID   componentdb.ComponentID
	Name string

	// Deps are the node's inputs in declaration order.
	Deps []Edge

	// Provided marks values that arrive through the stage's incoming
	// continuation state instead of being built locally.
	Provided bool

	// Branch carries the failure path of a fallible invocation.
	Branch *Branch
}

// Edge points at the node producing one input, with the mode the consumer
// uses it in.
type Edge struct {
	Node int
	Mode component.ConsumptionMode
}

// Branch is the failure path of a fallible node: project the error, upcast
// it, notify the observers, then let the error handler produce the response.
type Branch struct {
	OkMatcher  componentdb.ComponentID
	ErrMatcher componentdb.ComponentID
	Upcast     componentdb.ComponentID
	Observers  []componentdb.ComponentID
	Handler    componentdb.ComponentID
}

// NodeByComponent returns the index of the node invoking the component, or -1.
func (g *Graph) NodeByComponent(id componentdb.ComponentID) int {
	for i, n := range g.Nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}
