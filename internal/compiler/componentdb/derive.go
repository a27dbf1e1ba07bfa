package componentdb

import (
	"fmt"

	"github.com/vireo-lang/vireo/internal/compiler/component"
	"github.com/vireo-lang/vireo/internal/compiler/computation"
	"github.com/vireo-lang/vireo/internal/compiler/diagnostics"
	"github.com/vireo-lang/vireo/internal/compiler/language"
	"github.com/vireo-lang/vireo/internal/compiler/oracle"
)

// synthesizeDerived runs after every successful registration and after every
// specialization: it splits fallible outputs into Ok/Err matchers, attaches
// the error-upcast transformer, and resolves response conversions for
// response-producing roles.
func (db *Db) synthesizeDerived(id ComponentID) {
	c := db.Get(id)
	comp := db.ComputationOf(id)

	if comp.Fallible() {
		if _, done := db.matchers[id]; !done {
			db.deriveMatchers(id, c, comp)
		}
	}

	switch c.Role {
	case component.RequestHandler, component.WrappingMiddleware, component.PostProcessingMiddleware, component.ErrorHandler:
		db.resolveResponseConversion(id, comp)
	}
}

func (db *Db) deriveMatchers(id ComponentID, c *Component, comp *computation.Computation) {
	ok := db.intern(&Component{
		Role:        component.Transformer,
		Computation: db.store.Intern(computation.MatchOk(comp)),
		Scope:       c.Scope,
		DerivedFrom: id,
		Declaration: c.Declaration,
	})
	errID := db.intern(&Component{
		Role:        component.Transformer,
		Computation: db.store.Intern(computation.MatchErr(comp)),
		Scope:       c.Scope,
		DerivedFrom: id,
		Declaration: c.Declaration,
	})

	// Matchers are pure projections: rebuilt at each consumption site.
	db.lifecycles[ok] = component.Transient
	db.lifecycles[errID] = component.Transient
	// The Ok matcher produces the constructor's declared output value, so it
	// inherits the constructor's cloning policy.
	db.cloning[ok] = db.cloning[id]
	db.cloning[errID] = component.NeverClone

	db.matchers[id] = MatcherPair{Ok: ok, Err: errID}
	db.fallibleOf[ok] = id
	db.fallibleOf[errID] = id

	db.deriveUpcast(errID, comp)

	// A fallible non-singleton component without an error handler is a
	// deferred fact: it only becomes a diagnostic if the component ends up
	// wired into a pipeline.
	switch c.Role {
	case component.Constructor, component.RequestHandler,
		component.WrappingMiddleware, component.PreProcessingMiddleware, component.PostProcessingMiddleware:
		if db.lifecycles[id] != component.Singleton {
			db.unhandledFallibles[id] = true
		}
	}
}

func (db *Db) deriveUpcast(errMatcher ComponentID, base *computation.Computation) {
	errType := base.Output.(*language.ResultType).Err
	c := db.Get(errMatcher)
	upcast := db.intern(&Component{
		Role:        component.Transformer,
		Computation: db.store.Intern(computation.ErrorUpcast(errType)),
		Scope:       c.Scope,
		DerivedFrom: errMatcher,
		Declaration: c.Declaration,
	})
	db.lifecycles[upcast] = component.Transient
	db.cloning[upcast] = component.NeverClone
	db.upcasts[errMatcher] = upcast
}

// resolveResponseConversion makes sure the component's success output can be
// used as a response, synthesizing the conversion transformer when the type
// is convertible and reporting a hard error against the original declaration
// when it is not.
func (db *Db) resolveResponseConversion(id ComponentID, comp *computation.Computation) {
	out := comp.OkOutput()
	if out == nil || language.IsResponse(out) {
		return
	}
	// Wrapping middlewares stay generic over their continuation state until
	// the assembler materializes it; conversion is re-checked after
	// specialization.
	if !language.IsConcrete(out) {
		return
	}
	if _, done := db.conversions[id]; done {
		return
	}

	implements, err := db.oracle.ImplementsCapability(out, oracle.CapabilityIntoResponse)
	if err != nil || !implements {
		path, scopeLabel := db.AttributeTo(id)
		db.sink.Push(&diagnostics.Diagnostic{
			Code:      diagnostics.ErrUnconvertibleResponse,
			Severity:  diagnostics.SeverityError,
			Message:   fmt.Sprintf("`%s` can't be used as a response: `%s` doesn't satisfy %s", path, out, oracle.CapabilityIntoResponse),
			Component: path,
			Scope:     scopeLabel,
			Type:      out.String(),
			Suggestion: fmt.Sprintf(
				"return vireo.Response directly, or implement %s for `%s`", oracle.CapabilityIntoResponse, out),
		})
		return
	}

	c := db.Get(id)
	conv := db.intern(&Component{
		Role:        component.Transformer,
		Computation: db.store.Intern(computation.ResponseConversion(out)),
		Scope:       c.Scope,
		DerivedFrom: id,
		Declaration: c.Declaration,
	})
	db.lifecycles[conv] = component.Transient
	db.cloning[conv] = component.NeverClone
	db.conversions[id] = conv
}
