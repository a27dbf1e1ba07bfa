package componentdb

import (
	"github.com/vireo-lang/vireo/internal/compiler/component"
	"github.com/vireo-lang/vireo/internal/compiler/computation"
	"github.com/vireo-lang/vireo/internal/compiler/language"
	"github.com/vireo-lang/vireo/internal/compiler/scopegraph"
)

// NoopWrapperPath is the synthetic callable anchoring the outermost stage of
// every pipeline: it invokes its continuation and returns the response as is.
const NoopWrapperPath = "vireo.wrap_noop"

// SynthesizeNoopWrapper interns the no-op wrapping middleware used as the
// outermost stage anchor. Interning makes repeated calls cheap: every
// pipeline shares the same base component and specializes its continuation
// state independently.
func (db *Db) SynthesizeNoopWrapper() ComponentID {
	id := db.intern(&Component{
		Role: component.WrappingMiddleware,
		Computation: db.store.Intern(&computation.Computation{
			Path:   NoopWrapperPath,
			Inputs: []language.Type{language.Next(language.NewGenericParam("S"))},
			Output: language.Response(),
		}),
		Scope:       scopegraph.Root,
		DerivedFrom: Invalid,
		Declaration: -1,
	})
	if _, seen := db.lifecycles[id]; !seen {
		db.lifecycles[id] = component.RequestScoped
		db.cloning[id] = component.NeverClone
	}
	return id
}

// SynthesizeStateConstructor interns the structural build-from-fields
// constructor of a continuation-state type, making the state constructible in
// the given scope.
func (db *Db) SynthesizeStateConstructor(scope scopegraph.ScopeID, state language.Type, fields []language.Type) ComponentID {
	id := db.intern(&Component{
		Role:        component.Constructor,
		Computation: db.store.Intern(computation.BuildFromFields(state, fields)),
		Scope:       scope,
		DerivedFrom: Invalid,
		Declaration: -1,
	})
	if _, seen := db.lifecycles[id]; !seen {
		db.lifecycles[id] = component.RequestScoped
		db.cloning[id] = component.NeverClone
	}
	return id
}
