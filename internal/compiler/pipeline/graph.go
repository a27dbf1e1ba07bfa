package pipeline

import (
	"fmt"

	"github.com/vireo-lang/vireo/internal/compiler/component"
	"github.com/vireo-lang/vireo/internal/compiler/componentdb"
	"github.com/vireo-lang/vireo/internal/compiler/diagnostics"
	"github.com/vireo-lang/vireo/internal/compiler/language"
	"github.com/vireo-lang/vireo/internal/compiler/scopegraph"
)

// graphBuilder constructs one stage's call graph. Nodes are appended in
// post-order, so the slice is already topologically sorted: every dependency
// precedes its consumers.
type graphBuilder struct {
	a         *Assembler
	observers []componentdb.ComponentID
	graph     *Graph
	memo      map[string]int
	building  map[string]bool
	stack     []string
	names     map[string]int

	// provided maps a type key to the component whose output arrives through
	// the incoming continuation state.
	provided map[string]componentdb.ComponentID

	failed bool
}

func (a *Assembler) newGraphBuilder(observers []componentdb.ComponentID, provided map[string]componentdb.ComponentID) *graphBuilder {
	return &graphBuilder{
		a:         a,
		observers: observers,
		graph:     &Graph{},
		memo:      make(map[string]int),
		building:  make(map[string]bool),
		names:     make(map[string]int),
		provided:  provided,
	}
}

// addRoot adds a stage component (pre, middle, or post) and resolves its
// ordinary inputs transitively. Continuation and response inputs are wired by
// the assembler, not resolved here.
func (b *graphBuilder) addRoot(id componentdb.ComponentID) int {
	c := b.a.registry.Get(id)
	comp := b.a.registry.ComputationOf(id)

	var deps []Edge
	for _, in := range comp.Inputs {
		if b.skipRootInput(c.Role, in) {
			deps = append(deps, Edge{Node: -1, Mode: component.Move})
			continue
		}
		_, mode := component.ConsumptionOf(in)
		idx, ok := b.buildValue(c.Scope, in)
		if !ok {
			return -1
		}
		deps = append(deps, Edge{Node: idx, Mode: mode})
	}

	node := &Node{
		ID:   id,
		Name: b.uniqueName(shortName(comp.Path)),
		Deps: deps,
	}
	if comp.Fallible() {
		node.Branch = b.branchOf(id)
	}
	b.graph.Nodes = append(b.graph.Nodes, node)
	return len(b.graph.Nodes) - 1
}

func (b *graphBuilder) skipRootInput(role component.Role, in language.Type) bool {
	if _, ok := language.IsContinuation(in); ok {
		return true
	}
	return role == component.PostProcessingMiddleware && language.IsResponse(in)
}

// buildValue resolves the producer of one value type, adding its node (and
// its dependencies' nodes) to the graph.
func (b *graphBuilder) buildValue(scope scopegraph.ScopeID, t language.Type) (int, bool) {
	value, _ := component.ConsumptionOf(t)
	key := value.Key()

	if idx, done := b.memo[key]; done {
		return idx, true
	}
	if provider, ok := b.provided[key]; ok {
		idx := b.addNode(&Node{
			ID:       provider,
			Name:     b.uniqueName(shortName(value.String())),
			Provided: true,
		})
		b.memo[key] = idx
		return idx, true
	}
	if b.building[key] {
		b.pushCycle(value)
		return -1, false
	}

	producer, _, ok := b.a.index.ResolveOrSpecialize(scope, value)
	if !ok {
		b.pushMissing(scope, value)
		return -1, false
	}

	b.building[key] = true
	b.stack = append(b.stack, value.String())

	producerScope := b.a.registry.ScopeOf(producer)
	comp := b.a.registry.ComputationOf(producer)
	var deps []Edge
	resolved := true
	for _, in := range comp.Inputs {
		_, mode := component.ConsumptionOf(in)
		idx, ok := b.buildValue(producerScope, in)
		if !ok {
			resolved = false
			break
		}
		deps = append(deps, Edge{Node: idx, Mode: mode})
	}

	b.stack = b.stack[:len(b.stack)-1]
	delete(b.building, key)
	if !resolved {
		return -1, false
	}

	node := &Node{
		ID:   producer,
		Name: b.uniqueName(shortName(value.String())),
		Deps: deps,
	}
	if comp.Fallible() {
		node.Branch = b.branchOf(producer)
	}
	idx := b.addNode(node)
	b.memo[key] = idx
	return idx, true
}

func (b *graphBuilder) addNode(n *Node) int {
	b.graph.Nodes = append(b.graph.Nodes, n)
	return len(b.graph.Nodes) - 1
}

// branchOf assembles the failure path of a fallible component. A fallible
// component wired into a pipeline without an error handler is diagnosed here:
// the deferred missing-handler fact only matters once the component is
// actually reachable from a route.
func (b *graphBuilder) branchOf(id componentdb.ComponentID) *Branch {
	pair, ok := b.a.registry.MatchersOf(id)
	if !ok {
		return nil
	}
	branch := &Branch{
		OkMatcher:  pair.Ok,
		ErrMatcher: pair.Err,
		Observers:  b.observers,
	}
	if upcast, ok := b.a.registry.UpcastOf(pair.Err); ok {
		branch.Upcast = upcast
	}
	handler, bound := b.a.registry.ErrorHandlerOf(pair.Err)
	if !bound {
		branch.Handler = componentdb.Invalid
		if b.a.registry.UnhandledFallible(id) {
			b.pushMissingHandler(id)
			b.failed = true
		}
		return branch
	}
	branch.Handler = handler
	return branch
}

func (b *graphBuilder) pushMissing(scope scopegraph.ScopeID, value language.Type) {
	b.failed = true
	if b.a.reportedMissing[value.Key()] {
		return
	}
	b.a.reportedMissing[value.Key()] = true
	b.a.sink.Push(&diagnostics.Diagnostic{
		Code:       diagnostics.ErrMissingConstructor,
		Severity:   diagnostics.SeverityError,
		Message:    fmt.Sprintf("nothing constructs `%s`, required while assembling a pipeline", value),
		Scope:      b.a.scopes.Label(scope),
		Type:       value.String(),
		Chain:      append([]string(nil), b.stack...),
		Suggestion: fmt.Sprintf("register a constructor for `%s`, or provide it as a prebuilt value", value),
	})
}

func (b *graphBuilder) pushCycle(value language.Type) {
	b.failed = true
	chain := append(append([]string(nil), b.stack...), value.String())
	b.a.sink.Push(&diagnostics.Diagnostic{
		Code:       diagnostics.ErrDependencyCycle,
		Severity:   diagnostics.SeverityError,
		Message:    fmt.Sprintf("`%s` depends on itself through its constructor chain", value),
		Type:       value.String(),
		Chain:      chain,
		Suggestion: "break the cycle by taking one of the values by reference from an outer scope, or by restructuring the constructors",
	})
}

func (b *graphBuilder) pushMissingHandler(id componentdb.ComponentID) {
	if b.a.reportedHandlers[id] {
		return
	}
	b.a.reportedHandlers[id] = true
	path, scopeLabel := b.a.registry.AttributeTo(id)
	errType := b.a.registry.ComputationOf(id).Output.(*language.ResultType).Err
	b.a.sink.Push(&diagnostics.Diagnostic{
		Code:       diagnostics.ErrMissingErrorHandler,
		Severity:   diagnostics.SeverityError,
		Message:    fmt.Sprintf("`%s` can fail, but no error handler is registered for it", path),
		Component:  path,
		Scope:      scopeLabel,
		Type:       errType.String(),
		Suggestion: fmt.Sprintf("register an error handler taking `&%s` for `%s`", errType, path),
	})
}

func (b *graphBuilder) uniqueName(base string) string {
	n := b.names[base]
	b.names[base] = n + 1
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s_%d", base, n)
}
