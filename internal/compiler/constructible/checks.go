package constructible

import (
	"fmt"
	"strings"

	"github.com/vireo-lang/vireo/internal/compiler/component"
	"github.com/vireo-lang/vireo/internal/compiler/componentdb"
	"github.com/vireo-lang/vireo/internal/compiler/diagnostics"
	"github.com/vireo-lang/vireo/internal/compiler/language"
	"github.com/vireo-lang/vireo/internal/compiler/scopegraph"
)

// Check runs the global consistency checks. Call it once Populate has drained:
// every check assumes the index is complete.
func (db *Db) Check() {
	db.checkSingletonUniqueness()
	db.checkLifecycleLayering()
	db.checkObserverPurity()
	db.checkMutableRefs()
}

// checkSingletonUniqueness enforces one producer per singleton type across
// the whole scope tree. Identical registrations in several scopes get a
// "register once" error pointing at the common ancestor; different
// computations targeting the same type are an ambiguity.
func (db *Db) checkSingletonUniqueness() {
	byType := make(map[string][]componentdb.ComponentID)
	var order []string
	for _, e := range db.entries {
		role := db.registry.Get(e.id).Role
		if role != component.Constructor && role != component.PrebuiltType {
			continue
		}
		if db.registry.Lifecycle(e.id) != component.Singleton {
			continue
		}
		if !containsID(byType[e.typeKey], e.id) {
			if len(byType[e.typeKey]) == 0 {
				order = append(order, e.typeKey)
			}
			byType[e.typeKey] = append(byType[e.typeKey], e.id)
		}
	}

	for _, typeKey := range order {
		ids := byType[typeKey]
		if len(ids) < 2 {
			continue
		}

		first := db.registry.ComputationOf(ids[0]).Key()
		identical := true
		for _, id := range ids[1:] {
			if db.registry.ComputationOf(id).Key() != first {
				identical = false
				break
			}
		}

		path, scopeLabel := db.registry.AttributeTo(ids[0])
		if identical {
			scopes := make([]scopegraph.ScopeID, len(ids))
			for i, id := range ids {
				scopes[i] = db.registry.ScopeOf(id)
			}
			ancestor := db.scopes.CommonAncestor(scopes)
			db.sink.Push(&diagnostics.Diagnostic{
				Code:      diagnostics.ErrDuplicatedSingleton,
				Severity:  diagnostics.SeverityError,
				Message:   fmt.Sprintf("`%s` is registered as a singleton %d times; a singleton is built once for the whole application", path, len(ids)),
				Component: path,
				Scope:     scopeLabel,
				Type:      db.registry.OutputOf(ids[0]).String(),
				Suggestion: fmt.Sprintf(
					"register it once, on the `%s` group", db.scopes.Label(ancestor)),
			})
			continue
		}

		paths := make([]string, len(ids))
		for i, id := range ids {
			paths[i], _ = db.registry.AttributeTo(id)
		}
		db.sink.Push(&diagnostics.Diagnostic{
			Code:       diagnostics.ErrAmbiguousSingleton,
			Severity:   diagnostics.SeverityError,
			Message:    fmt.Sprintf("the singleton type `%s` has conflicting producers: %s", db.registry.OutputOf(ids[0]), strings.Join(paths, ", ")),
			Component:  path,
			Scope:      scopeLabel,
			Type:       db.registry.OutputOf(ids[0]).String(),
			Suggestion: "keep exactly one of the conflicting registrations",
		})
	}
}

// checkLifecycleLayering forbids singleton constructors from depending on
// request-scoped or transient values: singletons are built before the first
// request exists.
func (db *Db) checkLifecycleLayering() {
	for id := componentdb.ComponentID(0); int(id) < db.registry.Len(); id++ {
		c := db.registry.Get(id)
		if c.Role != component.Constructor || db.registry.Lifecycle(id) != component.Singleton {
			continue
		}
		comp := db.registry.ComputationOf(id)
		for _, in := range comp.Inputs {
			producer, _, ok := db.Lookup(c.Scope, in)
			if !ok {
				continue
			}
			if db.effectiveLifecycle(producer) == component.Singleton {
				continue
			}
			path, scopeLabel := db.registry.AttributeTo(id)
			depPath, _ := db.registry.AttributeTo(producer)
			value, _ := component.ConsumptionOf(in)
			db.sink.Push(&diagnostics.Diagnostic{
				Code:     diagnostics.ErrLifecycleLayering,
				Severity: diagnostics.SeverityError,
				Message: fmt.Sprintf(
					"`%s` is a singleton but depends on `%s`, a %s value built by `%s`; singletons are built before any request exists",
					path, value, db.effectiveLifecycle(producer), depPath),
				Component:  path,
				Scope:      scopeLabel,
				Type:       value.String(),
				Suggestion: fmt.Sprintf("make `%s` a singleton, or stop `%s` from being one", depPath, path),
			})
		}
	}
}

// checkObserverPurity rejects error observers whose non-error inputs depend,
// transitively, on a fallible constructor: observing that constructor's own
// failure would have to re-run it.
func (db *Db) checkObserverPurity() {
	for id := componentdb.ComponentID(0); int(id) < db.registry.Len(); id++ {
		c := db.registry.Get(id)
		if c.Role != component.ErrorObserver {
			continue
		}
		comp := db.registry.ComputationOf(id)
		for _, in := range comp.Inputs {
			value, _ := component.ConsumptionOf(in)
			if value.Equals(language.FrameworkError()) {
				continue
			}
			seen := make(map[string]bool)
			chain, fallible := db.fallibleDependency(c.Scope, value, seen)
			if !fallible {
				continue
			}
			path, scopeLabel := db.registry.AttributeTo(id)
			db.sink.Push(&diagnostics.Diagnostic{
				Code:     diagnostics.ErrImpureErrorObserver,
				Severity: diagnostics.SeverityError,
				Message: fmt.Sprintf(
					"`%s` depends on `%s`, which is built by a fallible constructor; observing a failure can't require re-running a fallible path",
					path, value),
				Component:  path,
				Scope:      scopeLabel,
				Type:       value.String(),
				Chain:      chain,
				Suggestion: "depend only on infallible values in error observers",
			})
		}
	}
}

// fallibleDependency walks producer edges from value, returning the dependency
// chain down to the first fallible producer. The seen set keeps cyclic but
// otherwise legal graphs from looping.
func (db *Db) fallibleDependency(scope scopegraph.ScopeID, value language.Type, seen map[string]bool) ([]string, bool) {
	if seen[value.Key()] {
		return nil, false
	}
	seen[value.Key()] = true

	producer, _, ok := db.Lookup(scope, value)
	if !ok {
		return nil, false
	}
	if _, isMatcher := db.registry.FallibleOf(producer); isMatcher {
		return []string{value.String()}, true
	}
	if db.registry.ComputationOf(producer).Fallible() {
		return []string{value.String()}, true
	}

	producerScope := db.registry.ScopeOf(producer)
	for _, in := range db.registry.ComputationOf(producer).Inputs {
		inValue, _ := component.ConsumptionOf(in)
		if chain, fallible := db.fallibleDependency(producerScope, inValue, seen); fallible {
			return append([]string{value.String()}, chain...), true
		}
	}
	return nil, false
}

// checkMutableRefs validates every exclusive borrow against the lifecycle and
// cloning policy of its target. Only request-scoped values that are never
// cloned can be mutated meaningfully.
func (db *Db) checkMutableRefs() {
	for id := componentdb.ComponentID(0); int(id) < db.registry.Len(); id++ {
		if !db.visited[id] {
			continue
		}
		c := db.registry.Get(id)
		comp := db.registry.ComputationOf(id)
		for _, in := range comp.Inputs {
			value, mode := component.ConsumptionOf(in)
			if mode != component.ExclusiveBorrow {
				continue
			}
			producer, _, ok := db.Lookup(c.Scope, in)
			if !ok {
				continue
			}

			var reason string
			switch db.effectiveLifecycle(producer) {
			case component.Singleton:
				reason = "singletons are shared by every request and can't be mutated"
			case component.Transient:
				reason = "a fresh copy is built at every consumption site, so the mutation would be discarded"
			case component.RequestScoped:
				if db.registry.CloningStrategy(producer) == component.CloneIfNecessary {
					reason = "it may be cloned to resolve ownership conflicts, so other consumers might not observe the mutation"
				}
			}
			if reason == "" {
				continue
			}

			path, scopeLabel := db.registry.AttributeTo(id)
			db.sink.Push(&diagnostics.Diagnostic{
				Code:       diagnostics.ErrIllegalMutableRef,
				Severity:   diagnostics.SeverityError,
				Message:    fmt.Sprintf("`%s` takes `&mut %s`, but %s", path, value, reason),
				Component:  path,
				Scope:      scopeLabel,
				Type:       value.String(),
				Suggestion: fmt.Sprintf("take `&%s` or `%s` instead", value, value),
			})
		}
	}
}

// effectiveLifecycle resolves a matcher to its fallible base's lifecycle:
// matchers are synthesized as transient projections, but the value they
// project lives as long as the base's output.
func (db *Db) effectiveLifecycle(id componentdb.ComponentID) component.Lifecycle {
	if base, ok := db.registry.FallibleOf(id); ok {
		return db.registry.Lifecycle(base)
	}
	return db.registry.Lifecycle(id)
}

func containsID(ids []componentdb.ComponentID, id componentdb.ComponentID) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
