package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vireo-lang/vireo/internal/compiler/blueprint"
	"github.com/vireo-lang/vireo/internal/compiler/component"
	"github.com/vireo-lang/vireo/internal/compiler/componentdb"
	"github.com/vireo-lang/vireo/internal/compiler/computation"
	"github.com/vireo-lang/vireo/internal/compiler/constructible"
	"github.com/vireo-lang/vireo/internal/compiler/diagnostics"
	"github.com/vireo-lang/vireo/internal/compiler/language"
	"github.com/vireo-lang/vireo/internal/compiler/scopegraph"
)

// Assembler builds one pipeline per route. It reads the registry and the
// constructible index, mutating them only through the specialization entry
// points (continuation materialization registers new components).
type Assembler struct {
	registry *componentdb.Db
	index    *constructible.Db
	scopes   *scopegraph.ScopeGraph
	sink     *diagnostics.Sink

	// Diagnostic dedup across pipelines: the same unhandled fallible or
	// unresolvable type is reported once, not once per route that hits it.
	reportedHandlers map[componentdb.ComponentID]bool
	reportedMissing  map[string]bool
}

// New creates an assembler over a settled registry/index pair.
func New(registry *componentdb.Db, index *constructible.Db, scopes *scopegraph.ScopeGraph, sink *diagnostics.Sink) *Assembler {
	return &Assembler{
		registry:         registry,
		index:            index,
		scopes:           scopes,
		sink:             sink,
		reportedHandlers: make(map[componentdb.ComponentID]bool),
		reportedMissing:  make(map[string]bool),
	}
}

// AssembleAll assembles every route of the blueprint, in registration order.
// Failures are route-local: a route that cannot be assembled contributes its
// diagnostics and is skipped, the rest proceed.
func (a *Assembler) AssembleAll(bp *blueprint.Blueprint) []*Pipeline {
	var pipelines []*Pipeline
	for _, route := range bp.Routes() {
		if p, ok := a.Assemble(route); ok {
			pipelines = append(pipelines, p)
		}
	}
	return pipelines
}

// Assemble builds the pipeline of one route.
func (a *Assembler) Assemble(route *blueprint.Route) (*Pipeline, bool) {
	handler, ok := a.registry.ComponentOfDeclaration(route.Handler.Index)
	if !ok {
		// The handler declaration failed validation and was diagnosed.
		return nil, false
	}
	observers := a.registry.ErrorObserversOf(handler)
	stages := a.partition(handler)

	// First pass: build every stage's call graph without state threading, to
	// learn which request-scoped values each stage needs.
	for _, st := range stages {
		if !a.buildStageGraph(st, observers, nil) {
			return nil, false
		}
	}

	a.materializeStates(route, stages)

	// Second pass: rebuild with the specialized middles and the incoming
	// state of each stage; the set of locally built values shrinks to what
	// the state does not already carry.
	var provided map[string]componentdb.ComponentID
	for _, st := range stages {
		if !a.buildStageGraph(st, observers, provided) {
			return nil, false
		}
		provided = nil
		if st.State != nil {
			provided = make(map[string]componentdb.ComponentID, len(st.State.Fields))
			for _, f := range st.State.Fields {
				provided[f.Type.Key()] = f.nodeComponent
			}
		}
	}

	a.assertSingleInvocation(route, stages)

	if !a.validateOwnership(stages) {
		return nil, false
	}

	a.finalize(route, stages)
	return &Pipeline{
		Method:  route.Method,
		Pattern: route.Pattern,
		Handler: handler,
		Stages:  stages,
	}, true
}

// partition splits the ordered sequence (no-op anchor, middleware chain,
// handler) into (pre*, middle, post*) stages. Every wrapping middleware and
// the handler anchor a stage of their own.
func (a *Assembler) partition(handler componentdb.ComponentID) []*Stage {
	seq := []componentdb.ComponentID{a.registry.SynthesizeNoopWrapper()}
	seq = append(seq, a.registry.MiddlewareChainOf(handler)...)
	seq = append(seq, handler)

	var stages []*Stage
	var cur *Stage
	var pendingPre, pendingPost []componentdb.ComponentID
	for _, id := range seq {
		switch a.registry.Get(id).Role {
		case component.PreProcessingMiddleware:
			if cur != nil {
				stages = append(stages, cur)
				cur = nil
			}
			pendingPre = append(pendingPre, id)
		case component.PostProcessingMiddleware:
			// A post-processor registered ahead of its stage's middle (after
			// a pre-processor, before the next wrap) still runs after the
			// middle: hold it for the stage about to open.
			if cur != nil {
				cur.Post = append(cur.Post, id)
			} else {
				pendingPost = append(pendingPost, id)
			}
		default:
			if cur != nil {
				stages = append(stages, cur)
			}
			cur = &Stage{Middle: id, Pre: pendingPre, Post: pendingPost}
			pendingPre, pendingPost = nil, nil
		}
	}
	return append(stages, cur)
}

func (a *Assembler) buildStageGraph(st *Stage, observers []componentdb.ComponentID, provided map[string]componentdb.ComponentID) bool {
	b := a.newGraphBuilder(observers, provided)
	for _, id := range st.Pre {
		if b.addRoot(id) < 0 {
			st.Graph = b.graph
			return false
		}
	}
	if b.addRoot(st.Middle) < 0 {
		st.Graph = b.graph
		return false
	}
	for _, id := range st.Post {
		if b.addRoot(id) < 0 {
			st.Graph = b.graph
			return false
		}
	}

	// The outgoing state's fields must exist as nodes even when nothing in
	// this stage consumes them: pass-through values still have to be packed.
	if st.State != nil {
		scope := a.registry.ScopeOf(st.Middle)
		for _, f := range st.State.Fields {
			if _, ok := b.buildValue(scope, f.Type); !ok {
				st.Graph = b.graph
				return false
			}
		}
	}

	st.Graph = b.graph
	return !b.failed
}

// materializeStates runs the state-threading pass: find every request-scoped
// value needed by more than one stage, synthesize one continuation-state type
// per wrapping stage carrying exactly the values that must cross it, and
// specialize each wrapping middleware's continuation parameter to its state.
func (a *Assembler) materializeStates(route *blueprint.Route, stages []*Stage) {
	earliest := make(map[componentdb.ComponentID]int)
	latest := make(map[componentdb.ComponentID]int)
	for i, st := range stages {
		for _, n := range st.Graph.Nodes {
			if !a.isThreadableValue(n.ID) {
				continue
			}
			if _, seen := earliest[n.ID]; !seen {
				earliest[n.ID] = i
			}
			latest[n.ID] = i
		}
	}

	token := routeToken(route)
	for i := 0; i < len(stages)-1; i++ {
		st := stages[i]

		var fields []componentdb.ComponentID
		for id, first := range earliest {
			if first <= i && latest[id] > i {
				fields = append(fields, id)
			}
		}
		sort.Slice(fields, func(x, y int) bool { return fields[x] < fields[y] })

		stateType := language.NewNamedType(fmt.Sprintf("vireo.generated.%s_stage%d_state", token, i))
		fieldTypes := make([]language.Type, len(fields))
		descriptor := &StateDescriptor{Type: stateType}
		for j, id := range fields {
			fieldTypes[j] = a.registry.OutputOf(id)
			descriptor.Fields = append(descriptor.Fields, Binding{
				Type:          fieldTypes[j],
				Mode:          component.Move,
				nodeComponent: id,
			})
		}

		ctor := a.registry.SynthesizeStateConstructor(a.registry.ScopeOf(st.Middle), stateType, fieldTypes)
		a.index.Insert(ctor)
		descriptor.Constructor = ctor
		st.State = descriptor

		if param := continuationParam(a.registry.ComputationOf(st.Middle)); param != "" {
			st.Middle = a.registry.BindGenericTypeParameters(st.Middle, map[string]language.Type{
				param: stateType,
			})
		}
	}
	a.index.Settle()
}

// isThreadableValue reports whether the component produces a request-scoped
// value that could be carried across stages. Matchers count through their
// fallible base's lifecycle.
func (a *Assembler) isThreadableValue(id componentdb.ComponentID) bool {
	switch a.registry.Get(id).Role {
	case component.Constructor, component.PrebuiltType, component.Transformer:
	default:
		return false
	}
	return a.effectiveLifecycle(id) == component.RequestScoped
}

func (a *Assembler) effectiveLifecycle(id componentdb.ComponentID) component.Lifecycle {
	if base, ok := a.registry.FallibleOf(id); ok {
		return a.registry.Lifecycle(base)
	}
	return a.registry.Lifecycle(id)
}

// assertSingleInvocation enforces the structural invariant behind state
// threading: after the second pass, a request-scoped value is built by
// exactly one stage and carried everywhere else. A violation is a bug in the
// assembler, not a user error.
func (a *Assembler) assertSingleInvocation(route *blueprint.Route, stages []*Stage) {
	built := make(map[componentdb.ComponentID]int)
	for _, st := range stages {
		for _, n := range st.Graph.Nodes {
			if n.Provided || !a.isThreadableValue(n.ID) {
				continue
			}
			built[n.ID]++
			if built[n.ID] > 1 {
				path, _ := a.registry.AttributeTo(n.ID)
				panic(fmt.Sprintf(
					"pipeline assembler: request-scoped component %s invoked %d times in pipeline %s %s",
					path, built[n.ID], route.Method, route.Pattern))
			}
		}
	}
}

// finalize assigns the deterministic stage names and the middle components'
// input bindings consumed by the code generator.
func (a *Assembler) finalize(route *blueprint.Route, stages []*Stage) {
	for i, st := range stages {
		comp := a.registry.ComputationOf(st.Middle)
		st.Name = fmt.Sprintf("stage_%d_%s", i, shortName(comp.Path))
		if conv, ok := a.registry.ResponseConversionOf(st.Middle); ok {
			st.ResponseConversion = conv
		} else {
			st.ResponseConversion = componentdb.Invalid
		}

		middleIdx := st.Graph.NodeByComponent(st.Middle)
		middle := st.Graph.Nodes[middleIdx]
		for j, in := range comp.Inputs {
			value, mode := component.ConsumptionOf(in)
			binding := Binding{Type: value, Mode: mode}
			switch {
			case middle.Deps[j].Node >= 0:
				binding.Name = st.Graph.Nodes[middle.Deps[j].Node].Name
			case language.IsResponse(in):
				binding.Name = "response"
			default:
				binding.Name = "next"
			}
			st.Bindings = append(st.Bindings, binding)
		}

		if st.State != nil {
			for j := range st.State.Fields {
				idx := st.Graph.NodeByComponent(st.State.Fields[j].nodeComponent)
				st.State.Fields[j].Name = st.Graph.Nodes[idx].Name
			}
		}
	}
}

// continuationParam returns the name of the generic state parameter of a
// wrapping middleware's continuation input, or "" when the state is already
// concrete.
func continuationParam(c *computation.Computation) string {
	for _, in := range c.Inputs {
		state, ok := language.IsContinuation(in)
		if !ok {
			continue
		}
		if p, isParam := state.(*language.GenericParam); isParam {
			return p.Name
		}
	}
	return ""
}

// routeToken derives a stable identifier token from a route's method and
// pattern, e.g. "GET /users/:id" becomes "get_users_id".
func routeToken(route *blueprint.Route) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(route.Method + " " + route.Pattern) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
