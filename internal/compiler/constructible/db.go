// Package constructible implements the scope-aware index from concrete types
// to the components that produce them. Lookups walk the scope chain toward
// the root; misses against a generic template trigger on-demand specialization
// in the component registry. A fixpoint driver grows the index until every
// reachable input either resolves or is diagnosed.
package constructible

import (
	"fmt"

	"github.com/vireo-lang/vireo/internal/compiler/component"
	"github.com/vireo-lang/vireo/internal/compiler/componentdb"
	"github.com/vireo-lang/vireo/internal/compiler/diagnostics"
	"github.com/vireo-lang/vireo/internal/compiler/language"
	"github.com/vireo-lang/vireo/internal/compiler/scopegraph"
	"github.com/vireo-lang/vireo/internal/pkg/collection"
)

// template is a constructor whose output still carries unassigned generic
// parameters, held back for structural matching against concrete requests.
type template struct {
	shape language.Type
	base  componentdb.ComponentID
}

// entry records one constructible registration, shadowed or not, for the
// post-fixpoint consistency checks.
type entry struct {
	typeKey string
	id      componentdb.ComponentID
}

// Db is the constructible index.
type Db struct {
	registry *componentdb.Db
	scopes   *scopegraph.ScopeGraph
	sink     *diagnostics.Sink

	byScope   map[scopegraph.ScopeID]map[string]componentdb.ComponentID
	templates []template
	entries   []entry

	pending *collection.Queue[componentdb.ComponentID]
	visited map[componentdb.ComponentID]bool
}

// New creates an empty index over the given registry.
func New(registry *componentdb.Db, scopes *scopegraph.ScopeGraph, sink *diagnostics.Sink) *Db {
	return &Db{
		registry: registry,
		scopes:   scopes,
		sink:     sink,
		byScope:  make(map[scopegraph.ScopeID]map[string]componentdb.ComponentID),
		pending:  collection.NewQueue[componentdb.ComponentID](),
		visited:  make(map[componentdb.ComponentID]bool),
	}
}

// Insert records that the component's output type is available in its scope.
//
// Fallible constructors are indexed three ways: the raw result type resolves
// to the constructor itself, while the success and failure variants resolve
// to the derived matchers. A generic output is additionally held as a
// template for later specialization.
func (db *Db) Insert(id componentdb.ComponentID) {
	comp := db.registry.ComputationOf(id)
	if comp.Output == nil {
		return
	}
	scope := db.registry.ScopeOf(id)

	if !language.IsConcrete(comp.Output) {
		db.templates = append(db.templates, template{shape: comp.OkOutput(), base: id})
		return
	}

	db.record(scope, comp.Output, id)
	if pair, ok := db.registry.MatchersOf(id); ok {
		db.record(scope, db.registry.OutputOf(pair.Ok), pair.Ok)
		db.record(scope, db.registry.OutputOf(pair.Err), pair.Err)
	}
}

func (db *Db) record(scope scopegraph.ScopeID, t language.Type, id componentdb.ComponentID) {
	bucket, ok := db.byScope[scope]
	if !ok {
		bucket = make(map[string]componentdb.ComponentID)
		db.byScope[scope] = bucket
	}
	key := t.Key()
	if _, taken := bucket[key]; !taken {
		// First registration wins; conflicting singletons are diagnosed by
		// the uniqueness check, which sees every entry.
		bucket[key] = id
	}
	db.entries = append(db.entries, entry{typeKey: key, id: id})
}

// Lookup resolves a type from the given scope, walking the scope chain toward
// the root. References resolve when the referent itself is constructible,
// yielding a borrow instead of a move.
func (db *Db) Lookup(scope scopegraph.ScopeID, t language.Type) (componentdb.ComponentID, component.ConsumptionMode, bool) {
	value, mode := component.ConsumptionOf(t)
	for _, s := range db.scopes.Chain(scope) {
		if id, ok := db.byScope[s][value.Key()]; ok {
			return id, mode, true
		}
	}
	return componentdb.Invalid, mode, false
}

// ResolveOrSpecialize resolves a type like Lookup, falling back to the
// registered templates on a miss: the first template the request structurally
// instantiates is specialized in the registry, its derived constructors are
// inserted, and the lookup is retried. Template order is registration order,
// so resolution is deterministic.
func (db *Db) ResolveOrSpecialize(scope scopegraph.ScopeID, t language.Type) (componentdb.ComponentID, component.ConsumptionMode, bool) {
	if id, mode, ok := db.Lookup(scope, t); ok {
		return id, mode, ok
	}
	value, mode := component.ConsumptionOf(t)
	if !language.IsConcrete(value) {
		return componentdb.Invalid, mode, false
	}
	for _, tmpl := range db.templates {
		bindings, ok := language.MatchTemplate(tmpl.shape, value)
		if !ok {
			continue
		}
		spec := db.registry.BindGenericTypeParameters(tmpl.base, bindings)
		db.Insert(spec)
		db.enqueue(spec)
		if pair, matched := db.registry.MatchersOf(spec); matched {
			if handler, bound := db.registry.ErrorHandlerOf(pair.Err); bound {
				db.enqueue(handler)
			}
		}
		return db.Lookup(scope, t)
	}
	return componentdb.Invalid, mode, false
}

// Visited reports whether the fixpoint reached the component through some
// consumer. Seeded constructors nothing ever asked for stay unvisited.
func (db *Db) Visited(id componentdb.ComponentID) bool {
	return db.visited[id]
}

func (db *Db) enqueue(id componentdb.ComponentID) {
	if !db.visited[id] {
		db.pending.Push(id)
	}
}

// pushMissingConstructor reports an unresolvable input against the user
// declaration the consumer was derived from.
func (db *Db) pushMissingConstructor(consumer componentdb.ComponentID, input language.Type, position int) {
	path, scopeLabel := db.registry.AttributeTo(consumer)
	value, _ := component.ConsumptionOf(input)
	db.sink.Push(&diagnostics.Diagnostic{
		Code:      diagnostics.ErrMissingConstructor,
		Severity:  diagnostics.SeverityError,
		Message:   fmt.Sprintf("`%s` needs `%s` (input %d), but nothing constructs `%s`", path, input, position, value),
		Component: path,
		Scope:     scopeLabel,
		Type:      value.String(),
		Suggestion: fmt.Sprintf(
			"register a constructor for `%s`, or provide it as a prebuilt value", value),
	})
}
