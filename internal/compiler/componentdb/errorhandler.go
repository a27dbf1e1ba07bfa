package componentdb

import (
	"fmt"
	"strings"

	"github.com/vireo-lang/vireo/internal/compiler/blueprint"
	"github.com/vireo-lang/vireo/internal/compiler/component"
	"github.com/vireo-lang/vireo/internal/compiler/computation"
	"github.com/vireo-lang/vireo/internal/compiler/diagnostics"
	"github.com/vireo-lang/vireo/internal/compiler/language"
)

// bindErrorHandlerDeclaration attaches an error handler to the Err matcher of
// its fallible target. Error handlers are registered against a specific
// declaration, so binding happens after every target had its chance to
// register.
func (db *Db) bindErrorHandlerDeclaration(decl *blueprint.Declaration) {
	target, ok := db.declToComp[decl.TargetIndex]
	if !ok {
		// The target declaration failed validation and was already diagnosed;
		// a second error against the handler would only add noise.
		return
	}

	targetComp := db.ComputationOf(target)
	if !targetComp.Fallible() {
		db.pushHandlerError(decl, fmt.Sprintf(
			"`%s` is infallible: it can never fail, so there is nothing to handle", targetComp.Path),
			"remove the error handler, or attach it to a fallible component")
		return
	}
	if db.lifecycles[target] == component.Singleton {
		db.pushHandlerError(decl, fmt.Sprintf(
			"`%s` is a singleton: it runs before the application starts serving traffic, outside any request pipeline", targetComp.Path),
			"singleton construction failures abort startup; error handlers only apply to request-scoped and transient components")
		return
	}

	sig, found := db.oracle.ResolveCallable(decl.Path)
	if !found {
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
	handlerComp := &computation.Computation{Path: sig.Path, Inputs: sig.Inputs, Output: sig.Output}

	if handlerComp.Output == nil || language.IsUnit(handlerComp.Output) {
		db.pushHandlerError(decl, fmt.Sprintf(
			"`%s` doesn't return a response", decl.Path),
			"error handlers must convert the error into a response for the caller")
		return
	}
	if handlerComp.Fallible() {
		db.pushHandlerError(decl, fmt.Sprintf(
			"`%s` is fallible: error handlers are the end of the line and must always succeed", decl.Path),
			"return the fallback response directly instead of a result")
		return
	}

	errType := targetComp.Output.(*language.ResultType).Err
	bindings, ok := db.matchErrorInput(decl, handlerComp, errType)
	if !ok {
		return
	}
	if len(bindings) > 0 {
		handlerComp = handlerComp.Substitute(bindings)
	}
	// After renaming, any remaining free parameter must be one of the
	// target's own template parameters: those get assigned when the target
	// itself is specialized. Anything else can never be determined.
	targetParams := make(map[string]bool)
	for _, p := range targetComp.FreeParams() {
		targetParams[p] = true
	}
	var orphaned []string
	for _, p := range handlerComp.FreeParams() {
		if !targetParams[p] {
			orphaned = append(orphaned, p)
		}
	}
	if len(orphaned) > 0 {
		db.pushHandlerError(decl, fmt.Sprintf(
			"`%s` has generic parameters that can't be determined from the error type: %s",
			decl.Path, strings.Join(orphaned, ", ")),
			"every generic parameter of an error handler must be determined by its error reference input")
		return
	}

	id := db.intern(&Component{
		Role:        component.ErrorHandler,
		Computation: db.store.Intern(handlerComp),
		Scope:       decl.Scope,
		DerivedFrom: Invalid,
		Declaration: decl.Index,
	})
	db.declToComp[decl.Index] = id
	db.lifecycles[id] = component.RequestScoped
	db.cloning[id] = component.NeverClone

	pair := db.matchers[target]
	db.errorHandlers[pair.Err] = id
	delete(db.unhandledFallibles, target)

	db.synthesizeDerived(id)
}

// matchErrorInput finds the handler input that receives the error and binds
// the handler's generic parameters against the target's error type. The error
// must come in by shared reference.
func (db *Db) matchErrorInput(decl *blueprint.Declaration, handler *computation.Computation, errType language.Type) (map[string]language.Type, bool) {
	for _, in := range handler.Inputs {
		ref, isRef := in.(*language.RefType)
		if !isRef {
			if bindable(in, errType) {
				db.pushHandlerError(decl, fmt.Sprintf(
					"`%s` takes the error by value", decl.Path),
					"take the error by shared reference: the pipeline still owns it when observers run")
				return nil, false
			}
			continue
		}
		if !bindable(ref.Elem, errType) {
			continue
		}
		if ref.Mutable {
			db.pushHandlerError(decl, fmt.Sprintf(
				"`%s` takes the error by mutable reference", decl.Path),
				"take the error by shared reference; error handlers must not modify it")
			return nil, false
		}
		if bindings, matched := language.MatchTemplate(ref.Elem, errType); matched {
			return bindings, true
		}
		// Both sides are generic templates: rename the handler's parameters
		// to the target's so the two views of the error type line up.
		if renames, equiv := language.EquivalenceMapping(ref.Elem, errType); equiv {
			bindings := make(map[string]language.Type, len(renames))
			for from, to := range renames {
				bindings[from] = language.NewGenericParam(to)
			}
			return bindings, true
		}
	}
	db.pushHandlerError(decl, fmt.Sprintf(
		"`%s` never receives the error: no input is a shared reference to `%s`", decl.Path, errType),
		fmt.Sprintf("add a `&%s` input to the handler", errType))
	return nil, false
}

// bindable reports whether t could stand for errType: either an exact match,
// a template that errType instantiates, or an equivalent generic template.
func bindable(t, errType language.Type) bool {
	if t.Equals(errType) {
		return true
	}
	if _, ok := language.MatchTemplate(t, errType); ok {
		return true
	}
	_, ok := language.EquivalenceMapping(t, errType)
	return ok
}

func (db *Db) pushHandlerError(decl *blueprint.Declaration, message, suggestion string) {
	db.sink.Push(&diagnostics.Diagnostic{
		Code:       diagnostics.ErrInvalidErrorHandler,
		Severity:   diagnostics.SeverityError,
		Message:    message,
		Component:  decl.Path,
		Scope:      db.scopes.Label(decl.Scope),
		Suggestion: suggestion,
	})
}
