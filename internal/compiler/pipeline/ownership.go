package pipeline

import (
	"fmt"
	"sort"

	"github.com/vireo-lang/vireo/internal/compiler/component"
	"github.com/vireo-lang/vireo/internal/compiler/componentdb"
	"github.com/vireo-lang/vireo/internal/compiler/diagnostics"
	"github.com/vireo-lang/vireo/internal/compiler/language"
)

// consumptionEvent is one use of a value by a stage component, in invocation
// order.
type consumptionEvent struct {
	consumer componentdb.ComponentID
	value    language.Type
	position int
	mode     component.ConsumptionMode
}

// validateOwnership checks every stage, innermost first: once a component
// moves a value, nothing may use it afterwards unless its cloning policy
// allows inserting a duplicate. A wrapping middleware's continuation runs the
// inner stages, so the middle position inherits their consumptions; that is
// how a handler's move conflicts with an outer post-processor. At most one
// conflict is reported per pipeline, aborting it to avoid cascading noise.
func (a *Assembler) validateOwnership(stages []*Stage) bool {
	inner := make(map[string][]consumptionEvent)
	for i := len(stages) - 1; i >= 0; i-- {
		direct, ok := a.validateStageOwnership(stages[i], inner)
		if !ok {
			return false
		}
		for key, evs := range direct {
			inner[key] = append(inner[key], evs...)
		}
	}
	return true
}

func (a *Assembler) validateStageOwnership(st *Stage, inner map[string][]consumptionEvent) (map[string][]consumptionEvent, bool) {
	order := make([]componentdb.ComponentID, 0, len(st.Pre)+1+len(st.Post))
	order = append(order, st.Pre...)
	order = append(order, st.Middle)
	order = append(order, st.Post...)
	middlePos := len(st.Pre)

	direct := make(map[string][]consumptionEvent)
	var keys []string
	for pos, id := range order {
		role := a.registry.Get(id).Role
		for _, in := range a.registry.ComputationOf(id).Inputs {
			if _, ok := language.IsContinuation(in); ok {
				continue
			}
			if role == component.PostProcessingMiddleware && language.IsResponse(in) {
				continue
			}
			value, mode := component.ConsumptionOf(in)
			if !language.IsConcrete(value) || language.IsScalar(value) {
				continue
			}
			key := value.Key()
			if len(direct[key]) == 0 {
				keys = append(keys, key)
			}
			direct[key] = append(direct[key], consumptionEvent{
				consumer: id,
				value:    value,
				position: pos,
				mode:     mode,
			})
		}
	}

	st.Duplicates = make(map[string][]int)
	for _, key := range keys {
		evs := append([]consumptionEvent(nil), direct[key]...)
		// The inner stages' consumptions happen while the middle runs.
		for _, e := range inner[key] {
			e.position = middlePos
			evs = append(evs, e)
		}
		sort.SliceStable(evs, func(x, y int) bool { return evs[x].position < evs[y].position })
		if len(evs) < 2 {
			continue
		}

		cloning := component.NeverClone
		if producer, _, ok := a.index.Lookup(a.registry.ScopeOf(evs[0].consumer), evs[0].value); ok {
			cloning = a.registry.CloningStrategy(producer)
		}

		var dupPositions []int
		for i, e := range evs[:len(evs)-1] {
			if e.mode != component.Move {
				continue
			}
			// Something still needs the value after this move.
			if cloning == component.NeverClone {
				a.pushOwnershipConflict(e, evs[i+1])
				return nil, false
			}
			dupPositions = append(dupPositions, e.position)
		}
		if len(dupPositions) > 0 {
			st.Duplicates[key] = dupPositions
		}
	}
	return direct, true
}

func (a *Assembler) pushOwnershipConflict(move, later consumptionEvent) {
	movePath, scopeLabel := a.registry.AttributeTo(move.consumer)
	laterPath, _ := a.registry.AttributeTo(later.consumer)
	a.sink.Push(&diagnostics.Diagnostic{
		Code:     diagnostics.ErrOwnershipConflict,
		Severity: diagnostics.SeverityError,
		Message: fmt.Sprintf(
			"`%s` consumes `%s` by value, but `%s` still needs it afterwards and `%s` is marked never-clone",
			movePath, move.value, laterPath, move.value),
		Component: movePath,
		Scope:     scopeLabel,
		Type:      move.value.String(),
		Suggestion: fmt.Sprintf(
			"mark `%s` as clone-if-necessary, or take it by reference in `%s`", move.value, movePath),
	})
}
