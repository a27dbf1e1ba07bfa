// Package computation implements the computation store: an append-only,
// interning arena for callable descriptors. Every other database in the
// resolution engine refers to computations through the stable integer ids
// handed out here.
package computation

import (
	"fmt"
	"strings"

	"github.com/vireo-lang/vireo/internal/compiler/language"
)

// ID is the stable identifier of an interned computation.
type ID int

// Invalid is the zero-value sentinel for a missing computation id.
const Invalid ID = -1

// Computation describes a callable operation: an ordered list of input types
// and an optional output type. Immutable once interned.
type Computation struct {
	// Path is the fully qualified name of the callable, e.g. "app.NewLogger".
	// Synthesized computations carry a synthetic path.
	Path   string
	Inputs []language.Type
	Output language.Type
}

// Fallible reports whether the computation's output is a two-variant result.
func (c *Computation) Fallible() bool {
	_, ok := c.Output.(*language.ResultType)
	return ok
}

// OkOutput returns the success variant of a fallible computation's output,
// or the output itself when the computation is infallible.
func (c *Computation) OkOutput() language.Type {
	if r, ok := c.Output.(*language.ResultType); ok {
		return r.Ok
	}
	return c.Output
}

// Key returns the canonical structural key of the computation.
func (c *Computation) Key() string {
	parts := make([]string, len(c.Inputs))
	for i, in := range c.Inputs {
		parts[i] = in.Key()
	}
	out := ""
	if c.Output != nil {
		out = c.Output.Key()
	}
	return fmt.Sprintf("%s(%s) -> %s", c.Path, strings.Join(parts, ", "), out)
}

func (c *Computation) String() string {
	return c.Key()
}

// FreeParams returns the unassigned generic parameters of the computation's
// signature, inputs first, in encounter order.
func (c *Computation) FreeParams() []string {
	var names []string
	seen := make(map[string]bool)
	for _, in := range c.Inputs {
		for _, p := range language.FreeParams(in) {
			if !seen[p] {
				seen[p] = true
				names = append(names, p)
			}
		}
	}
	if c.Output != nil {
		for _, p := range language.FreeParams(c.Output) {
			if !seen[p] {
				seen[p] = true
				names = append(names, p)
			}
		}
	}
	return names
}

// Substitute returns a copy of the computation with the given generic-type
// bindings applied to every input and to the output.
func (c *Computation) Substitute(bindings map[string]language.Type) *Computation {
	inputs := make([]language.Type, len(c.Inputs))
	for i, in := range c.Inputs {
		inputs[i] = language.Substitute(in, bindings)
	}
	var output language.Type
	if c.Output != nil {
		output = language.Substitute(c.Output, bindings)
	}
	return &Computation{Path: c.Path, Inputs: inputs, Output: output}
}

// Store interns computations and hands out stable ids.
//
// Interning is structural: two computations with the same path and signature
// share an id. The store is append-only for the duration of a compilation.
type Store struct {
	computations []*Computation
	index        map[string]ID
}

// NewStore creates an empty computation store.
func NewStore() *Store {
	return &Store{index: make(map[string]ID)}
}

// Intern adds the computation to the store, returning the existing id if an
// equivalent computation was interned before.
func (s *Store) Intern(c *Computation) ID {
	key := c.Key()
	if id, ok := s.index[key]; ok {
		return id
	}
	id := ID(len(s.computations))
	s.computations = append(s.computations, c)
	s.index[key] = id
	return id
}

// Get returns the computation with the given id.
// Panics on an out-of-range id: that is an engine bug, not a user error.
func (s *Store) Get(id ID) *Computation {
	if id < 0 || int(id) >= len(s.computations) {
		panic(fmt.Sprintf("computation store: no computation with id %d", id))
	}
	return s.computations[id]
}

// Len returns the number of interned computations.
func (s *Store) Len() int {
	return len(s.computations)
}
