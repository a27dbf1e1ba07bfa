package component

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vireo-lang/vireo/internal/compiler/computation"
	"github.com/vireo-lang/vireo/internal/compiler/language"
)

// Role-agnostic validation errors. The registry attributes these to the user
// declaration that registered the offending computation.
var (
	// ErrNoOutput rejects computations used as producers without an output.
	ErrNoOutput = errors.New("must return a value")
	// ErrUnitOutput rejects producers of the unit type.
	ErrUnitOutput = errors.New("must not return the unit type")
	// ErrFallibleUnitOutput rejects fallible producers whose success variant is the unit type.
	ErrFallibleUnitOutput = errors.New("must not return the unit type on the happy path")
)

// MutableRefInputError rejects mutable-reference inputs on roles that must
// not mutate their dependencies. Handlers and middlewares may declare them;
// whether the borrow target tolerates mutation is checked once the
// constructible index is complete.
type MutableRefInputError struct {
	Input language.Type
}

func (e *MutableRefInputError) Error() string {
	return fmt.Sprintf("can't take a mutable reference as input, found %s", e.Input)
}

// UnderconstrainedGenericsError names the generic parameters that cannot be
// inferred from the output type.
type UnderconstrainedGenericsError struct {
	Parameters []string
}

func (e *UnderconstrainedGenericsError) Error() string {
	verb := "appear"
	if len(e.Parameters) == 1 {
		verb = "appears"
	}
	return fmt.Sprintf(
		"all unassigned generic parameters must be used by the output type; %s only %s in the inputs",
		quoteList(e.Parameters), verb)
}

// PrebuiltGenericsError rejects prebuilt value types that still carry
// unassigned generic parameters.
type PrebuiltGenericsError struct {
	Parameters []string
}

func (e *PrebuiltGenericsError) Error() string {
	verb := "is"
	if len(e.Parameters) > 1 {
		verb = "are"
	}
	return fmt.Sprintf("prebuilt types must be fully concrete; %s %s unassigned",
		quoteList(e.Parameters), verb)
}

// NakedGenericOutputError rejects constructors returning a bare generic
// parameter: such a constructor could build any type whatsoever.
type NakedGenericOutputError struct {
	Parameter string
}

func (e *NakedGenericOutputError) Error() string {
	return fmt.Sprintf("constructors can't return a naked generic parameter like `$%s`", e.Parameter)
}

// MiddlewareShapeError reports a wrong arity for a middleware's special
// parameter (continuation or response).
type MiddlewareShapeError struct {
	Special string // "continuation" or "response"
	Count   int
}

func (e *MiddlewareShapeError) Error() string {
	if e.Count == 0 {
		return fmt.Sprintf("must take exactly one %s parameter, found none", e.Special)
	}
	return fmt.Sprintf("must take exactly one %s parameter, found %d", e.Special, e.Count)
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "`$" + n + "`"
	}
	return strings.Join(quoted, ", ")
}

func checkNoMutableRefInputs(c *computation.Computation) error {
	for _, in := range c.Inputs {
		if ref, ok := in.(*language.RefType); ok && ref.Mutable {
			return &MutableRefInputError{Input: in}
		}
	}
	return nil
}

func checkProducesValue(c *computation.Computation) error {
	if c.Output == nil {
		return ErrNoOutput
	}
	if language.IsUnit(c.Output) {
		return ErrUnitOutput
	}
	if language.IsUnit(c.OkOutput()) {
		return ErrFallibleUnitOutput
	}
	return nil
}

// checkGenericsConstrainedByOutput rejects free generic parameters that do
// not appear in the output: they can never be inferred by specialization.
func checkGenericsConstrainedByOutput(c *computation.Computation) error {
	outputParams := make(map[string]bool)
	if c.Output != nil {
		for _, p := range language.FreeParams(c.Output) {
			outputParams[p] = true
		}
	}
	var loose []string
	for _, in := range c.Inputs {
		for _, p := range language.FreeParams(in) {
			if !outputParams[p] {
				loose = append(loose, p)
			}
		}
	}
	if len(loose) > 0 {
		return &UnderconstrainedGenericsError{Parameters: dedupe(loose)}
	}
	return nil
}

func checkFullyConcrete(c *computation.Computation) error {
	if free := c.FreeParams(); len(free) > 0 {
		return &UnderconstrainedGenericsError{Parameters: free}
	}
	return nil
}

func dedupe(names []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// ValidateConstructor checks the rules of the constructor role.
func ValidateConstructor(c *computation.Computation) error {
	if err := checkProducesValue(c); err != nil {
		return err
	}
	if err := checkNoMutableRefInputs(c); err != nil {
		return err
	}
	if p, ok := c.OkOutput().(*language.GenericParam); ok {
		return &NakedGenericOutputError{Parameter: p.Name}
	}
	return checkGenericsConstrainedByOutput(c)
}

// ValidateRequestHandler checks the rules of the request-handler role.
// Handlers must be fully concrete: there is no later chance to specialize them.
func ValidateRequestHandler(c *computation.Computation) error {
	if err := checkProducesValue(c); err != nil {
		return err
	}
	return checkFullyConcrete(c)
}

// ValidateWrappingMiddleware checks the rules of the wrapping-middleware
// role: exactly one continuation parameter, whose state type stays generic
// until the assembler materializes the threaded state.
func ValidateWrappingMiddleware(c *computation.Computation) error {
	if err := checkProducesValue(c); err != nil {
		return err
	}

	continuations := 0
	var stateParam string
	for _, in := range c.Inputs {
		state, ok := language.IsContinuation(in)
		if !ok {
			continue
		}
		continuations++
		if p, isParam := state.(*language.GenericParam); isParam {
			stateParam = p.Name
		}
	}
	if continuations != 1 {
		return &MiddlewareShapeError{Special: "continuation", Count: continuations}
	}

	var loose []string
	for _, p := range c.FreeParams() {
		if p != stateParam {
			loose = append(loose, p)
		}
	}
	if len(loose) > 0 {
		return &UnderconstrainedGenericsError{Parameters: loose}
	}
	return nil
}

// ValidatePreProcessingMiddleware checks the rules of the pre-processing
// role.
func ValidatePreProcessingMiddleware(c *computation.Computation) error {
	for _, in := range c.Inputs {
		if _, ok := language.IsContinuation(in); ok {
			return &MiddlewareShapeError{Special: "continuation", Count: 1}
		}
	}
	return checkFullyConcrete(c)
}

// ValidatePostProcessingMiddleware checks the rules of the post-processing
// role: exactly one response-typed parameter.
func ValidatePostProcessingMiddleware(c *computation.Computation) error {
	if err := checkProducesValue(c); err != nil {
		return err
	}

	responses := 0
	for _, in := range c.Inputs {
		if language.IsResponse(in) {
			responses++
		}
	}
	if responses != 1 {
		return &MiddlewareShapeError{Special: "response", Count: responses}
	}
	return checkFullyConcrete(c)
}

// ValidateErrorObserver checks the rules of the error-observer role:
// observers consume the framework error by reference, return nothing, and
// cannot themselves fail.
func ValidateErrorObserver(c *computation.Computation) error {
	if err := checkNoMutableRefInputs(c); err != nil {
		return err
	}
	if c.Output != nil && !language.IsUnit(c.Output) {
		return errors.New("error observers can't return a value")
	}

	errorInputs := 0
	for _, in := range c.Inputs {
		target, mode := ConsumptionOf(in)
		if target.Equals(language.FrameworkError()) {
			if mode != SharedBorrow {
				return errors.New("error observers must take the error by reference")
			}
			errorInputs++
		}
	}
	if errorInputs != 1 {
		return &MiddlewareShapeError{Special: "error", Count: errorInputs}
	}
	return checkFullyConcrete(c)
}

// ValidatePrebuilt checks the rules of the prebuilt-type role.
func ValidatePrebuilt(t language.Type) error {
	if !language.IsConcrete(t) {
		return &PrebuiltGenericsError{Parameters: language.FreeParams(t)}
	}
	if language.IsUnit(t) {
		return ErrUnitOutput
	}
	return nil
}
