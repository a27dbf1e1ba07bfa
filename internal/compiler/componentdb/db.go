// Package componentdb implements the component registry: the interning
// arena for typed roles wrapping computations, the automatic synthesis of
// derived components (result matchers, response conversions, error upcasts),
// error-handler binding, and on-demand generic specialization.
//
// The registry is append-only for the duration of one compilation.
// Registration and specialization are its only mutating operations.
package componentdb

import (
	"fmt"

	"github.com/vireo-lang/vireo/internal/compiler/blueprint"
	"github.com/vireo-lang/vireo/internal/compiler/component"
	"github.com/vireo-lang/vireo/internal/compiler/computation"
	"github.com/vireo-lang/vireo/internal/compiler/diagnostics"
	"github.com/vireo-lang/vireo/internal/compiler/language"
	"github.com/vireo-lang/vireo/internal/compiler/oracle"
	"github.com/vireo-lang/vireo/internal/compiler/scopegraph"
)

// ComponentID is the stable identifier of an interned component.
type ComponentID int

// Invalid is the sentinel for a missing component id.
const Invalid ComponentID = -1

// Component is one typed role wrapping a computation.
//
// Components are immutable after creation: specialization produces a new
// component instead of editing an existing one.
type Component struct {
	Role        component.Role
	Computation computation.ID
	Scope       scopegraph.ScopeID

	// DerivedFrom points back at the component this one was synthesized
	// from, or Invalid for user-registered components.
	DerivedFrom ComponentID

	// Declaration is the index of the originating user declaration, carried
	// through the derived-from chain for diagnostic attribution. -1 for
	// framework-synthesized components with no user origin.
	Declaration int
}

func (c *Component) key(store *computation.Store) string {
	return fmt.Sprintf("%d|%s|%d", c.Role, store.Get(c.Computation).Key(), c.Scope)
}

// MatcherPair holds the derived Ok/Err projections of a fallible component.
type MatcherPair struct {
	Ok  ComponentID
	Err ComponentID
}

// Db is the component registry.
type Db struct {
	store  *computation.Store
	scopes *scopegraph.ScopeGraph
	oracle oracle.TypeOracle
	sink   *diagnostics.Sink

	components []*Component
	index      map[string]ComponentID

	lifecycles map[ComponentID]component.Lifecycle
	cloning    map[ComponentID]component.CloningStrategy

	// Derived-component relations.
	matchers      map[ComponentID]MatcherPair
	fallibleOf    map[ComponentID]ComponentID
	errorHandlers map[ComponentID]ComponentID
	upcasts       map[ComponentID]ComponentID
	conversions   map[ComponentID]ComponentID

	// Per-scope registration order, used to assemble middleware chains and
	// observer sets for each route.
	scopeMiddlewares map[scopegraph.ScopeID][]ComponentID
	scopeObservers   map[scopegraph.ScopeID][]ComponentID

	declarations []*blueprint.Declaration
	declToComp   map[int]ComponentID

	// Deferred facts: fallible non-singleton components still lacking an
	// error handler. Reported only for components wired into a pipeline.
	unhandledFallibles map[ComponentID]bool

	frameworkInputs []ComponentID
}

// Build validates every declaration of the blueprint, interning the valid
// ones and pushing a diagnostic for each invalid one. Derived components
// are synthesized eagerly; error handlers are bound to their targets.
func Build(bp *blueprint.Blueprint, scopes *scopegraph.ScopeGraph, store *computation.Store, typeOracle oracle.TypeOracle, sink *diagnostics.Sink) *Db {
	db := &Db{
		store:              store,
		scopes:             scopes,
		oracle:             typeOracle,
		sink:               sink,
		index:              make(map[string]ComponentID),
		lifecycles:         make(map[ComponentID]component.Lifecycle),
		cloning:            make(map[ComponentID]component.CloningStrategy),
		matchers:           make(map[ComponentID]MatcherPair),
		fallibleOf:         make(map[ComponentID]ComponentID),
		errorHandlers:      make(map[ComponentID]ComponentID),
		upcasts:            make(map[ComponentID]ComponentID),
		conversions:        make(map[ComponentID]ComponentID),
		scopeMiddlewares:   make(map[scopegraph.ScopeID][]ComponentID),
		scopeObservers:     make(map[scopegraph.ScopeID][]ComponentID),
		declarations:       bp.Declarations(),
		declToComp:         make(map[int]ComponentID),
		unhandledFallibles: make(map[ComponentID]bool),
	}

	db.registerFrameworkInputs()

	for _, decl := range bp.Declarations() {
		if decl.Role == component.ErrorHandler {
			// Bound after its target, below.
			continue
		}
		db.registerDeclaration(decl)
	}
	for _, decl := range bp.Declarations() {
		if decl.Role == component.ErrorHandler {
			db.bindErrorHandlerDeclaration(decl)
		}
	}
	return db
}

// registerFrameworkInputs makes the framework-supplied request-scoped values
// available in the root scope without user constructors.
func (db *Db) registerFrameworkInputs() {
	for _, path := range []string{language.RequestPath, language.PathParamsPath} {
		comp := db.intern(&Component{
			Role: component.PrebuiltType,
			Computation: db.store.Intern(&computation.Computation{
				Path:   path,
				Output: language.NewNamedType(path),
			}),
			Scope:       scopegraph.Root,
			DerivedFrom: Invalid,
			Declaration: -1,
		})
		db.lifecycles[comp] = component.RequestScoped
		db.cloning[comp] = component.NeverClone
		db.frameworkInputs = append(db.frameworkInputs, comp)
	}
}

// FrameworkInputs returns the components the framework supplies per request.
func (db *Db) FrameworkInputs() []ComponentID {
	return db.frameworkInputs
}

func (db *Db) registerDeclaration(decl *blueprint.Declaration) {
	var comp *computation.Computation
	if decl.Role == component.PrebuiltType {
		if err := component.ValidatePrebuilt(decl.Type); err != nil {
			db.pushValidationError(decl, err)
			return
		}
		comp = &computation.Computation{Path: decl.Path, Output: decl.Type}
	} else {
		sig, ok := db.oracle.ResolveCallable(decl.Path)
		if !ok {
			db.sink.Push(&diagnostics.Diagnostic{
				Code:       diagnostics.ErrUnresolvablePath,
				Severity:   diagnostics.SeverityError,
				Message:    fmt.Sprintf("can't resolve `%s` to a callable", decl.Path),
				Component:  decl.Path,
				Scope:      db.scopes.Label(decl.Scope),
				Suggestion: "check the path for typos and make sure the symbol is exported",
			})
			return
		}
		comp = &computation.Computation{Path: sig.Path, Inputs: sig.Inputs, Output: sig.Output}

		var err error
		switch decl.Role {
		case component.Constructor:
			err = component.ValidateConstructor(comp)
		case component.RequestHandler:
			err = component.ValidateRequestHandler(comp)
		case component.WrappingMiddleware:
			err = component.ValidateWrappingMiddleware(comp)
		case component.PreProcessingMiddleware:
			err = component.ValidatePreProcessingMiddleware(comp)
		case component.PostProcessingMiddleware:
			err = component.ValidatePostProcessingMiddleware(comp)
		case component.ErrorObserver:
			err = component.ValidateErrorObserver(comp)
		}
		if err != nil {
			db.pushValidationError(decl, err)
			return
		}
	}

	id := db.intern(&Component{
		Role:        decl.Role,
		Computation: db.store.Intern(comp),
		Scope:       decl.Scope,
		DerivedFrom: Invalid,
		Declaration: decl.Index,
	})
	db.declToComp[decl.Index] = id

	switch decl.Role {
	case component.Constructor, component.PrebuiltType:
		db.lifecycles[id] = decl.Lifecycle
		db.cloning[id] = decl.Cloning
	default:
		db.lifecycles[id] = component.RequestScoped
		db.cloning[id] = component.NeverClone
	}

	switch decl.Role {
	case component.WrappingMiddleware, component.PreProcessingMiddleware, component.PostProcessingMiddleware:
		db.scopeMiddlewares[decl.Scope] = append(db.scopeMiddlewares[decl.Scope], id)
	case component.ErrorObserver:
		db.scopeObservers[decl.Scope] = append(db.scopeObservers[decl.Scope], id)
	}

	db.synthesizeDerived(id)
}

// intern adds the component, returning the existing id when an equivalent
// component was interned before.
func (db *Db) intern(c *Component) ComponentID {
	key := c.key(db.store)
	if id, ok := db.index[key]; ok {
		return id
	}
	id := ComponentID(len(db.components))
	db.components = append(db.components, c)
	db.index[key] = id
	return id
}

func (db *Db) pushValidationError(decl *blueprint.Declaration, err error) {
	d := &diagnostics.Diagnostic{
		Severity:  diagnostics.SeverityError,
		Message:   fmt.Sprintf("invalid %s: %s", decl.Role, err),
		Component: decl.Path,
		Scope:     db.scopes.Label(decl.Scope),
	}
	switch e := err.(type) {
	case *component.MutableRefInputError:
		d.Code = diagnostics.ErrMutableRefInput
		d.Type = e.Input.String()
		d.Suggestion = "take the value by shared reference, or by value if you need ownership"
	case *component.UnderconstrainedGenericsError:
		d.Code = diagnostics.ErrUnderconstrainedGenerics
		d.Suggestion = "assign concrete types to the problematic generic parameters when registering the component"
	case *component.PrebuiltGenericsError:
		d.Code = diagnostics.ErrUnderconstrainedGenerics
		d.Suggestion = "register the prebuilt value with a fully concrete type"
	case *component.NakedGenericOutputError:
		d.Code = diagnostics.ErrNakedGenericOutput
		d.Suggestion = "return a concrete type, or wrap the parameter in a non-generic container"
	case *component.MiddlewareShapeError:
		d.Code = diagnostics.ErrInvalidMiddlewareShape
	default:
		switch err {
		case component.ErrNoOutput, component.ErrUnitOutput:
			d.Code = diagnostics.ErrVoidConstructor
		case component.ErrFallibleUnitOutput:
			d.Code = diagnostics.ErrFallibleUnitOutput
		default:
			if decl.Role == component.ErrorObserver {
				d.Code = diagnostics.ErrInvalidErrorObserver
			} else {
				d.Code = diagnostics.ErrInvalidErrorHandler
			}
		}
	}
	db.sink.Push(d)
}

// Get returns the component with the given id.
func (db *Db) Get(id ComponentID) *Component {
	if id < 0 || int(id) >= len(db.components) {
		panic(fmt.Sprintf("component registry: no component with id %d", id))
	}
	return db.components[id]
}

// Len returns the number of interned components.
func (db *Db) Len() int {
	return len(db.components)
}

// ComputationOf returns the computation backing the component.
func (db *Db) ComputationOf(id ComponentID) *computation.Computation {
	return db.store.Get(db.Get(id).Computation)
}

// OutputOf returns the type the component produces, or nil.
func (db *Db) OutputOf(id ComponentID) language.Type {
	return db.ComputationOf(id).Output
}

// Lifecycle returns the component's lifecycle.
func (db *Db) Lifecycle(id ComponentID) component.Lifecycle {
	return db.lifecycles[id]
}

// CloningStrategy returns the component's cloning policy.
func (db *Db) CloningStrategy(id ComponentID) component.CloningStrategy {
	return db.cloning[id]
}

// ScopeOf returns the component's lexical scope.
func (db *Db) ScopeOf(id ComponentID) scopegraph.ScopeID {
	return db.Get(id).Scope
}

// MatchersOf returns the Ok/Err matcher pair of a fallible component.
func (db *Db) MatchersOf(id ComponentID) (MatcherPair, bool) {
	pair, ok := db.matchers[id]
	return pair, ok
}

// FallibleOf returns the fallible component a matcher was derived from.
func (db *Db) FallibleOf(matcher ComponentID) (ComponentID, bool) {
	id, ok := db.fallibleOf[matcher]
	return id, ok
}

// ErrorHandlerOf returns the error handler bound to an Err matcher.
func (db *Db) ErrorHandlerOf(errMatcher ComponentID) (ComponentID, bool) {
	id, ok := db.errorHandlers[errMatcher]
	return id, ok
}

// UpcastOf returns the error-upcast transformer of an Err matcher.
func (db *Db) UpcastOf(errMatcher ComponentID) (ComponentID, bool) {
	id, ok := db.upcasts[errMatcher]
	return id, ok
}

// ResponseConversionOf returns the transformer converting the component's
// success output into the canonical response type, when one was needed.
func (db *Db) ResponseConversionOf(id ComponentID) (ComponentID, bool) {
	conv, ok := db.conversions[id]
	return conv, ok
}

// ComponentOfDeclaration returns the component a user declaration produced.
func (db *Db) ComponentOfDeclaration(index int) (ComponentID, bool) {
	id, ok := db.declToComp[index]
	return id, ok
}

// MiddlewareChainOf returns the ordered middleware chain of a request
// handler: every middleware registered on the handler's scope chain, from
// the root group inward, in registration order within each scope.
func (db *Db) MiddlewareChainOf(handler ComponentID) []ComponentID {
	chain := db.scopes.Chain(db.Get(handler).Scope)
	var out []ComponentID
	for i := len(chain) - 1; i >= 0; i-- {
		out = append(out, db.scopeMiddlewares[chain[i]]...)
	}
	return out
}

// ErrorObserversOf returns the error observers visible to a request handler,
// outermost scope first.
func (db *Db) ErrorObserversOf(handler ComponentID) []ComponentID {
	chain := db.scopes.Chain(db.Get(handler).Scope)
	var out []ComponentID
	for i := len(chain) - 1; i >= 0; i-- {
		out = append(out, db.scopeObservers[chain[i]]...)
	}
	return out
}

// UnhandledFallible reports whether the component is a fallible
// non-singleton still lacking an error handler.
func (db *Db) UnhandledFallible(id ComponentID) bool {
	return db.unhandledFallibles[id]
}

// AttributeTo walks the derived-from chain back to the originating user
// declaration, so diagnostics never name a synthesized component.
func (db *Db) AttributeTo(id ComponentID) (path, scopeLabel string) {
	for {
		c := db.Get(id)
		if c.Declaration >= 0 {
			decl := db.declarations[c.Declaration]
			return decl.Path, db.scopes.Label(decl.Scope)
		}
		if c.DerivedFrom == Invalid {
			return db.store.Get(c.Computation).Path, db.scopes.Label(c.Scope)
		}
		id = c.DerivedFrom
	}
}
