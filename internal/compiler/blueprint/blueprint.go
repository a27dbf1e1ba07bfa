// Package blueprint is the declarative front-end contract of the resolution
// engine: an ordered list of raw, unvalidated component declarations plus a
// tree of route groups. The engine validates everything; the blueprint only
// records what the user registered, where, and in which order.
package blueprint

import (
	"github.com/vireo-lang/vireo/internal/compiler/component"
	"github.com/vireo-lang/vireo/internal/compiler/language"
	"github.com/vireo-lang/vireo/internal/compiler/scopegraph"
)

// Declaration is one raw user registration.
type Declaration struct {
	// Index is the registration order, used for diagnostic attribution and
	// deterministic processing.
	Index int
	Role  component.Role

	// Path is the callable path for computation-backed roles, or the type
	// path for prebuilt values.
	Path string

	// Type is set for prebuilt declarations only.
	Type language.Type

	// Lifecycle applies to constructors and prebuilt values; other roles get
	// theirs assigned by the registry.
	Lifecycle component.Lifecycle
	Cloning   component.CloningStrategy

	Scope scopegraph.ScopeID

	// TargetIndex links an error handler to the fallible declaration it
	// handles. -1 for every other role.
	TargetIndex int
}

// Route binds a request handler declaration to a method/path pair.
// Each route gets a dedicated leaf scope.
type Route struct {
	Method  string
	Pattern string
	Handler *Declaration
}

// Blueprint accumulates declarations and routes.
type Blueprint struct {
	scopes *scopegraph.Builder
	decls  []*Declaration
	routes []*Route
}

// New creates an empty blueprint with a root group.
func New() *Blueprint {
	return &Blueprint{scopes: scopegraph.NewBuilder()}
}

// Root returns the root group of the blueprint.
func (bp *Blueprint) Root() *Group {
	return &Group{bp: bp, scope: scopegraph.Root}
}

// Declarations returns all declarations in registration order.
func (bp *Blueprint) Declarations() []*Declaration {
	return bp.decls
}

// Routes returns all routes in registration order.
func (bp *Blueprint) Routes() []*Route {
	return bp.routes
}

// ScopeGraph finalizes and returns the scope tree.
func (bp *Blueprint) ScopeGraph() *scopegraph.ScopeGraph {
	return bp.scopes.Build()
}

func (bp *Blueprint) add(d *Declaration) *Declaration {
	d.Index = len(bp.decls)
	if d.Role != component.ErrorHandler {
		d.TargetIndex = -1
	}
	bp.decls = append(bp.decls, d)
	return d
}

// Group is a node in the route-group tree; registrations against a group are
// visible to every route nested under it.
type Group struct {
	bp    *Blueprint
	scope scopegraph.ScopeID
}

// Scope returns the scope backing this group.
func (g *Group) Scope() scopegraph.ScopeID {
	return g.scope
}

// Nest creates a child group.
func (g *Group) Nest(label string) *Group {
	child := g.bp.scopes.AddScope(g.scope, label)
	return &Group{bp: g.bp, scope: child}
}

// Constructor registers a constructor with its declared lifecycle and
// cloning policy.
func (g *Group) Constructor(path string, lc component.Lifecycle, cloning component.CloningStrategy) *Declaration {
	return g.bp.add(&Declaration{
		Role:      component.Constructor,
		Path:      path,
		Lifecycle: lc,
		Cloning:   cloning,
		Scope:     g.scope,
	})
}

// Prebuilt registers a caller-supplied value of the given type.
func (g *Group) Prebuilt(t language.Type, lc component.Lifecycle, cloning component.CloningStrategy) *Declaration {
	return g.bp.add(&Declaration{
		Role:      component.PrebuiltType,
		Path:      t.String(),
		Type:      t,
		Lifecycle: lc,
		Cloning:   cloning,
		Scope:     g.scope,
	})
}

// Wrap registers a wrapping middleware.
func (g *Group) Wrap(path string) *Declaration {
	return g.bp.add(&Declaration{Role: component.WrappingMiddleware, Path: path, Scope: g.scope})
}

// PreProcess registers a pre-processing middleware.
func (g *Group) PreProcess(path string) *Declaration {
	return g.bp.add(&Declaration{Role: component.PreProcessingMiddleware, Path: path, Scope: g.scope})
}

// PostProcess registers a post-processing middleware.
func (g *Group) PostProcess(path string) *Declaration {
	return g.bp.add(&Declaration{Role: component.PostProcessingMiddleware, Path: path, Scope: g.scope})
}

// ErrorObserver registers an error observer.
func (g *Group) ErrorObserver(path string) *Declaration {
	return g.bp.add(&Declaration{Role: component.ErrorObserver, Path: path, Scope: g.scope})
}

// ErrorHandlerFor registers an error handler for a previously registered
// fallible declaration.
func (g *Group) ErrorHandlerFor(target *Declaration, path string) *Declaration {
	return g.bp.add(&Declaration{
		Role:        component.ErrorHandler,
		Path:        path,
		Scope:       target.Scope,
		TargetIndex: target.Index,
	})
}

// Route registers a request handler for a method/path pair.
// The handler gets a dedicated leaf scope so that request-local components
// are invisible to sibling routes.
func (g *Group) Route(method, pattern, handlerPath string) *Declaration {
	handlerScope := g.bp.scopes.AddScope(g.scope, method+" "+pattern)
	d := g.bp.add(&Declaration{
		Role:  component.RequestHandler,
		Path:  handlerPath,
		Scope: handlerScope,
	})
	g.bp.routes = append(g.bp.routes, &Route{Method: method, Pattern: pattern, Handler: d})
	return d
}
