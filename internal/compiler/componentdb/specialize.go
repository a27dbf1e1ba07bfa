package componentdb

import (
	"github.com/vireo-lang/vireo/internal/compiler/component"
	"github.com/vireo-lang/vireo/internal/compiler/language"
)

// BindGenericTypeParameters specializes a generic component by applying the
// given bindings to its signature. The specialized component is interned like
// any other, so repeated specialization with the same bindings is a no-op
// returning the same id. Derived components and any bound error handler are
// specialized along with their base.
func (db *Db) BindGenericTypeParameters(id ComponentID, bindings map[string]language.Type) ComponentID {
	if len(bindings) == 0 {
		return id
	}
	base := db.Get(id)
	baseComp := db.ComputationOf(id)
	specComp := baseComp.Substitute(bindings)
	if specComp.Key() == baseComp.Key() {
		return id
	}

	spec := db.intern(&Component{
		Role:        base.Role,
		Computation: db.store.Intern(specComp),
		Scope:       base.Scope,
		DerivedFrom: id,
		Declaration: base.Declaration,
	})
	if _, seen := db.lifecycles[spec]; seen {
		return spec
	}
	db.lifecycles[spec] = db.lifecycles[id]
	db.cloning[spec] = db.cloning[id]

	db.synthesizeDerived(spec)
	db.specializeErrorHandler(id, spec, bindings)
	return spec
}

// specializeErrorHandler carries the base component's error handler over to
// the specialized component. Handler generics were renamed to the base's
// parameter names at bind time, so the base's bindings apply directly.
func (db *Db) specializeErrorHandler(base, spec ComponentID, bindings map[string]language.Type) {
	basePair, fallible := db.matchers[base]
	if !fallible {
		return
	}
	handler, bound := db.errorHandlers[basePair.Err]
	if !bound {
		return
	}
	specPair, ok := db.matchers[spec]
	if !ok {
		return
	}
	if _, done := db.errorHandlers[specPair.Err]; done {
		return
	}

	h := db.Get(handler)
	specHandler := db.intern(&Component{
		Role:        component.ErrorHandler,
		Computation: db.store.Intern(db.ComputationOf(handler).Substitute(bindings)),
		Scope:       h.Scope,
		DerivedFrom: handler,
		Declaration: h.Declaration,
	})
	db.lifecycles[specHandler] = component.RequestScoped
	db.cloning[specHandler] = component.NeverClone
	db.errorHandlers[specPair.Err] = specHandler
	delete(db.unhandledFallibles, spec)

	db.synthesizeDerived(specHandler)
}
