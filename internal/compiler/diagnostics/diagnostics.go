// Package diagnostics defines the structured error model of the resolution
// engine. Diagnostics are collected, not short-circuited: the engine keeps
// analyzing to surface as many independent problems as possible in one pass,
// and every diagnostic is attributed to the original user declaration.
package diagnostics

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Code identifies a specific resolution error.
type Code string

const (
	// ErrVoidConstructor indicates a constructor returning the unit type.
	ErrVoidConstructor Code = "RES101"
	// ErrFallibleUnitOutput indicates a fallible component whose success variant is the unit type.
	ErrFallibleUnitOutput Code = "RES102"
	// ErrMutableRefInput indicates a component taking a mutable reference as input.
	ErrMutableRefInput Code = "RES103"
	// ErrUnderconstrainedGenerics indicates generic parameters that cannot be inferred from the output.
	ErrUnderconstrainedGenerics Code = "RES104"
	// ErrNakedGenericOutput indicates a constructor returning a bare generic parameter.
	ErrNakedGenericOutput Code = "RES105"
	// ErrInvalidMiddlewareShape indicates a middleware with the wrong special-parameter arity.
	ErrInvalidMiddlewareShape Code = "RES106"
	// ErrInvalidErrorHandler indicates a malformed or misplaced error handler.
	ErrInvalidErrorHandler Code = "RES107"
	// ErrUnconvertibleResponse indicates an output type that cannot be converted into a response.
	ErrUnconvertibleResponse Code = "RES108"
	// ErrInvalidErrorObserver indicates a malformed error observer.
	ErrInvalidErrorObserver Code = "RES109"
	// ErrUnresolvablePath indicates a registered path the type oracle cannot resolve.
	ErrUnresolvablePath Code = "RES110"

	// ErrMissingConstructor indicates an input type with no registered constructor.
	ErrMissingConstructor Code = "RES200"
	// ErrAmbiguousSingleton indicates two distinct computations producing the same singleton type.
	ErrAmbiguousSingleton Code = "RES201"
	// ErrDuplicatedSingleton indicates the same singleton registered in multiple scopes.
	ErrDuplicatedSingleton Code = "RES202"
	// ErrLifecycleLayering indicates a singleton depending on request-scoped data.
	ErrLifecycleLayering Code = "RES203"
	// ErrImpureErrorObserver indicates an error observer depending on a fallible constructor.
	ErrImpureErrorObserver Code = "RES204"
	// ErrIllegalMutableRef indicates exclusive-borrow consumption of an illegal target.
	ErrIllegalMutableRef Code = "RES205"
	// ErrMissingErrorHandler indicates a fallible component wired into a pipeline without a handler.
	ErrMissingErrorHandler Code = "RES206"
	// ErrDependencyCycle indicates a cycle in a call graph.
	ErrDependencyCycle Code = "RES207"

	// ErrOwnershipConflict indicates a move/borrow conflict that cloning policy forbids resolving.
	ErrOwnershipConflict Code = "RES300"

	// WarnUnusedComponent indicates a registered constructor no pipeline ended up using.
	WarnUnusedComponent Code = "RES400"
)

// Severity indicates the severity level of a diagnostic.
type Severity string

const (
	// SeverityError prevents the compilation from succeeding.
	SeverityError Severity = "error"
	// SeverityWarning flags a likely problem without failing the compilation.
	SeverityWarning Severity = "warning"
)

// Diagnostic is one user-facing resolution problem, attributed to the user
// declaration that caused it (never to a synthesized component).
type Diagnostic struct {
	Code     Code     `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`

	// Component is the path of the offending user declaration.
	Component string `json:"component,omitempty"`
	// Scope is the label of the scope the declaration was registered in.
	Scope string `json:"scope,omitempty"`
	// Type is the offending type, when one exists.
	Type string `json:"type,omitempty"`
	// Chain is a dependency chain supporting the diagnostic, outermost first.
	Chain []string `json:"chain,omitempty"`
	// Suggestion is a remedy the user can apply.
	Suggestion string `json:"suggestion,omitempty"`
}

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	return d.Format()
}

// Format returns the plain-text rendering of the diagnostic.
func (d *Diagnostic) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]", strings.ToUpper(string(d.Severity)), d.Code)
	if d.Component != "" {
		fmt.Fprintf(&b, " %s", d.Component)
	}
	fmt.Fprintf(&b, ": %s", d.Message)
	if d.Type != "" {
		fmt.Fprintf(&b, "\n  type: %s", d.Type)
	}
	for _, link := range d.Chain {
		fmt.Fprintf(&b, "\n    -> %s", link)
	}
	if d.Suggestion != "" {
		fmt.Fprintf(&b, "\n  suggestion: %s", d.Suggestion)
	}
	return b.String()
}

// IsError reports whether the diagnostic fails the compilation.
func (d *Diagnostic) IsError() bool {
	return d.Severity == SeverityError
}

// List is an ordered collection of diagnostics.
type List []*Diagnostic

// Error implements the error interface.
func (l List) Error() string {
	if len(l) == 0 {
		return "no diagnostics"
	}
	parts := make([]string, len(l))
	for i, d := range l {
		parts[i] = d.Format()
	}
	return strings.Join(parts, "\n")
}

// HasErrors reports whether the list contains at least one error-severity
// diagnostic.
func (l List) HasErrors() bool {
	for _, d := range l {
		if d.IsError() {
			return true
		}
	}
	return false
}

// ToJSON returns the list as an indented JSON array, for tooling.
func (l List) ToJSON() (string, error) {
	bytes, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Sink collects diagnostics in emission order.
//
// The engine shares one sink across all phases of a compilation pass;
// emission order is deterministic because the engine itself is.
type Sink struct {
	diagnostics List
}

// NewSink creates an empty sink.
func NewSink() *Sink {
	return &Sink{}
}

// Push appends a diagnostic to the sink.
func (s *Sink) Push(d *Diagnostic) {
	s.diagnostics = append(s.diagnostics, d)
}

// HasErrors reports whether any collected diagnostic is an error.
func (s *Sink) HasErrors() bool {
	return s.diagnostics.HasErrors()
}

// Len returns the number of collected diagnostics.
func (s *Sink) Len() int {
	return len(s.diagnostics)
}

// All returns the collected diagnostics in emission order.
func (s *Sink) All() List {
	return s.diagnostics
}
