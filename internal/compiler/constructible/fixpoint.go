package constructible

import (
	"github.com/vireo-lang/vireo/internal/compiler/component"
	"github.com/vireo-lang/vireo/internal/compiler/componentdb"
	"github.com/vireo-lang/vireo/internal/compiler/language"
)

// Populate seeds the index with every registered producer, then runs the
// worklist to a fixpoint: each pipeline-facing component's inputs are resolved
// transitively, specializing templates on demand. Specialization registers
// new components, which are pushed back onto the same worklist; the loop ends
// when the queue drains. Inputs still unresolved at that point are diagnosed
// as missing constructors.
func (db *Db) Populate() {
	for id := componentdb.ComponentID(0); int(id) < db.registry.Len(); id++ {
		switch db.registry.Get(id).Role {
		case component.Constructor, component.PrebuiltType:
			db.Insert(id)
		}
	}
	for id := componentdb.ComponentID(0); int(id) < db.registry.Len(); id++ {
		switch db.registry.Get(id).Role {
		case component.RequestHandler, component.WrappingMiddleware,
			component.PreProcessingMiddleware, component.PostProcessingMiddleware,
			component.ErrorHandler, component.ErrorObserver:
			db.enqueue(id)
		}
	}

	db.Settle()
}

// Settle drains the worklist. Pipeline assembly can specialize components
// after Populate returned; calling Settle afterwards resolves the inputs of
// everything queued since the last drain.
func (db *Db) Settle() {
	db.pending.Drain(func(id componentdb.ComponentID) bool {
		if !db.visited[id] {
			db.visited[id] = true
			db.resolveInputs(id)
		}
		return true
	})
}

func (db *Db) resolveInputs(id componentdb.ComponentID) {
	c := db.registry.Get(id)
	comp := db.registry.ComputationOf(id)
	for i, in := range comp.Inputs {
		if skipInput(c.Role, in) {
			continue
		}
		value, _ := component.ConsumptionOf(in)
		if !language.IsConcrete(value) {
			// A template's generic inputs are resolved against the
			// specialized copies, never against the template itself.
			continue
		}
		producer, _, ok := db.ResolveOrSpecialize(c.Scope, in)
		if !ok {
			db.pushMissingConstructor(id, in, i)
			continue
		}
		db.enqueue(producer)
	}
}

// skipInput filters the framework-synthesized inputs the assembler wires
// directly: continuations of wrapping middlewares, the response parameter of
// post-processing middlewares, and the upcast error fed to observers at fault
// time.
func skipInput(role component.Role, in language.Type) bool {
	if _, ok := language.IsContinuation(in); ok {
		return true
	}
	if role == component.PostProcessingMiddleware && language.IsResponse(in) {
		return true
	}
	if role == component.ErrorObserver {
		value, _ := component.ConsumptionOf(in)
		if value.Equals(language.FrameworkError()) {
			return true
		}
	}
	return false
}
