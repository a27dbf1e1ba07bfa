// Package oracle declares the type-introspection collaborator the resolution
// engine consumes. The engine never resolves symbols itself: it asks the
// oracle for callable signatures and capability checks through a
// synchronous, already-resolved interface.
package oracle

import (
	"fmt"

	"github.com/vireo-lang/vireo/internal/compiler/language"
)

// Capability paths the engine cares about.
const (
	// CapabilityIntoResponse marks types convertible into the canonical response.
	CapabilityIntoResponse = "vireo.IntoResponse"
	// CapabilityClone marks types the generated code can duplicate.
	CapabilityClone = "vireo.Clone"
)

// Signature is the resolved shape of a callable.
type Signature struct {
	Path   string
	Inputs []language.Type
	Output language.Type
}

// TypeOracle answers symbol and capability questions about user types.
// Implementations must be deterministic: the engine's output order depends
// on it.
type TypeOracle interface {
	// ResolveCallable maps a textual path to a callable signature.
	ResolveCallable(path string) (*Signature, bool)

	// ImplementsCapability reports whether the type satisfies the capability.
	ImplementsCapability(t language.Type, capability string) (bool, error)

	// StructuralShape returns the canonical description of the type used for
	// template matching.
	StructuralShape(t language.Type) string
}

// StaticOracle is an in-memory TypeOracle backed by explicit registrations.
// The CLI front-end and the test suites populate one from a manifest.
type StaticOracle struct {
	callables    map[string]*Signature
	capabilities map[string]bool
}

// NewStaticOracle creates an empty static oracle.
func NewStaticOracle() *StaticOracle {
	return &StaticOracle{
		callables:    make(map[string]*Signature),
		capabilities: make(map[string]bool),
	}
}

// RegisterCallable records a callable signature under its path.
func (o *StaticOracle) RegisterCallable(sig *Signature) {
	o.callables[sig.Path] = sig
}

// Grant records that t satisfies the given capability.
func (o *StaticOracle) Grant(t language.Type, capability string) {
	o.capabilities[capabilityKey(t, capability)] = true
}

// ResolveCallable implements TypeOracle.
func (o *StaticOracle) ResolveCallable(path string) (*Signature, bool) {
	sig, ok := o.callables[path]
	return sig, ok
}

// ImplementsCapability implements TypeOracle.
//
// The canonical response type always satisfies IntoResponse; everything else
// must have been granted explicitly.
func (o *StaticOracle) ImplementsCapability(t language.Type, capability string) (bool, error) {
	if capability == CapabilityIntoResponse && language.IsResponse(t) {
		return true, nil
	}
	return o.capabilities[capabilityKey(t, capability)], nil
}

// StructuralShape implements TypeOracle.
func (o *StaticOracle) StructuralShape(t language.Type) string {
	return t.Key()
}

func capabilityKey(t language.Type, capability string) string {
	return fmt.Sprintf("%s as %s", t.Key(), capability)
}
