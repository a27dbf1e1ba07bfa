// Package language implements the structural type representation used by the
// Vireo resolution engine. It provides type equality, canonical keys for
// interning, free generic-parameter collection, substitution, template
// matching, and the synchronized structural equivalence used when remapping
// generic parameters between components.
package language

import (
	"fmt"
	"strings"
)

// Well-known framework type paths.
const (
	UnitPath       = "unit"
	ResponsePath   = "vireo.Response"
	ErrorPath      = "vireo.Error"
	NextPath       = "vireo.Next"
	RequestPath    = "vireo.Request"
	PathParamsPath = "vireo.PathParams"
)

// Type represents a type in the Vireo type system.
// Types are immutable: every transformation returns a new value.
type Type interface {
	// String returns the human-readable representation of the type
	String() string

	// Key returns a canonical representation suitable for use as a map key.
	// Two types have the same key iff they are structurally equal.
	Key() string

	// Equals checks if two types are exactly equal
	Equals(other Type) bool
}

// NamedType is a nominal type, optionally instantiated with generic arguments.
type NamedType struct {
	Path string
	Args []Type
}

// NewNamedType creates a named type with the given path and generic arguments.
func NewNamedType(path string, args ...Type) *NamedType {
	return &NamedType{Path: path, Args: args}
}

func (n *NamedType) String() string {
	if len(n.Args) == 0 {
		return n.Path
	}
	parts := make([]string, len(n.Args))
	for i, a := range n.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s<%s>", n.Path, strings.Join(parts, ", "))
}

// Key returns the canonical key of the named type.
func (n *NamedType) Key() string {
	return n.String()
}

// Equals checks if two named types are exactly equal.
func (n *NamedType) Equals(other Type) bool {
	o, ok := other.(*NamedType)
	if !ok {
		return false
	}
	if n.Path != o.Path || len(n.Args) != len(o.Args) {
		return false
	}
	for i, a := range n.Args {
		if !a.Equals(o.Args[i]) {
			return false
		}
	}
	return true
}

// GenericParam is an unassigned generic type parameter.
type GenericParam struct {
	Name string
}

// NewGenericParam creates an unassigned generic parameter.
func NewGenericParam(name string) *GenericParam {
	return &GenericParam{Name: name}
}

func (g *GenericParam) String() string {
	return g.Name
}

// Key returns the canonical key of the generic parameter.
func (g *GenericParam) Key() string {
	return "$" + g.Name
}

// Equals checks if two generic parameters have the same name.
func (g *GenericParam) Equals(other Type) bool {
	o, ok := other.(*GenericParam)
	return ok && g.Name == o.Name
}

// RefType is a reference to another type, either shared or mutable.
type RefType struct {
	Elem    Type
	Mutable bool
}

// NewRef creates a shared reference to the given type.
func NewRef(elem Type) *RefType {
	return &RefType{Elem: elem}
}

// NewMutRef creates a mutable reference to the given type.
func NewMutRef(elem Type) *RefType {
	return &RefType{Elem: elem, Mutable: true}
}

func (r *RefType) String() string {
	if r.Mutable {
		return "&mut " + r.Elem.String()
	}
	return "&" + r.Elem.String()
}

// Key returns the canonical key of the reference type.
func (r *RefType) Key() string {
	if r.Mutable {
		return "&mut " + r.Elem.Key()
	}
	return "&" + r.Elem.Key()
}

// Equals checks if two reference types are exactly equal.
func (r *RefType) Equals(other Type) bool {
	o, ok := other.(*RefType)
	return ok && r.Mutable == o.Mutable && r.Elem.Equals(o.Elem)
}

// ResultType is a two-variant fallible output: Ok on success, Err on failure.
type ResultType struct {
	Ok  Type
	Err Type
}

// NewResult creates a result type with the given success and failure variants.
func NewResult(ok, err Type) *ResultType {
	return &ResultType{Ok: ok, Err: err}
}

func (r *ResultType) String() string {
	return fmt.Sprintf("Result<%s, %s>", r.Ok.String(), r.Err.String())
}

// Key returns the canonical key of the result type.
func (r *ResultType) Key() string {
	return fmt.Sprintf("Result<%s, %s>", r.Ok.Key(), r.Err.Key())
}

// Equals checks if two result types are exactly equal.
func (r *ResultType) Equals(other Type) bool {
	o, ok := other.(*ResultType)
	return ok && r.Ok.Equals(o.Ok) && r.Err.Equals(o.Err)
}

// Unit returns the unit (void) type.
func Unit() Type {
	return &NamedType{Path: UnitPath}
}

// Response returns the canonical framework response type.
func Response() Type {
	return &NamedType{Path: ResponsePath}
}

// FrameworkError returns the canonical framework error type that error
// observers consume.
func FrameworkError() Type {
	return &NamedType{Path: ErrorPath}
}

// Next returns the continuation type for wrapping middlewares, parameterized
// over the threaded state type.
func Next(state Type) Type {
	return &NamedType{Path: NextPath, Args: []Type{state}}
}

// IsUnit reports whether t is the unit type.
func IsUnit(t Type) bool {
	n, ok := t.(*NamedType)
	return ok && n.Path == UnitPath && len(n.Args) == 0
}

// IsResponse reports whether t is the canonical response type.
func IsResponse(t Type) bool {
	n, ok := t.(*NamedType)
	return ok && n.Path == ResponsePath && len(n.Args) == 0
}

// IsContinuation reports whether t is a wrapping-middleware continuation,
// returning its state type argument when it is.
func IsContinuation(t Type) (Type, bool) {
	n, ok := t.(*NamedType)
	if !ok || n.Path != NextPath || len(n.Args) != 1 {
		return nil, false
	}
	return n.Args[0], true
}

var scalarPaths = map[string]bool{
	"bool":    true,
	"int":     true,
	"int32":   true,
	"int64":   true,
	"uint":    true,
	"uint32":  true,
	"uint64":  true,
	"float32": true,
	"float64": true,
	"byte":    true,
	"rune":    true,
}

// IsScalar reports whether t is a copyable scalar. Scalars are exempt from
// move/borrow analysis: duplicating them is always free.
func IsScalar(t Type) bool {
	n, ok := t.(*NamedType)
	return ok && len(n.Args) == 0 && scalarPaths[n.Path]
}
