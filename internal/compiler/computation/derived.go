package computation

import (
	"fmt"
	"strings"

	"github.com/vireo-lang/vireo/internal/compiler/language"
)

// The synthesized computations below are the building blocks for derived
// components: result-variant projections, response conversions, error
// upcasts, and continuation-state builders.

// MatchOk builds the projection that extracts the success variant out of a
// fallible computation's output.
func MatchOk(base *Computation) *Computation {
	result := base.Output.(*language.ResultType)
	return &Computation{
		Path:   base.Path + "::match_ok",
		Inputs: []language.Type{result},
		Output: result.Ok,
	}
}

// MatchErr builds the projection that extracts the failure variant out of a
// fallible computation's output.
func MatchErr(base *Computation) *Computation {
	result := base.Output.(*language.ResultType)
	return &Computation{
		Path:   base.Path + "::match_err",
		Inputs: []language.Type{result},
		Output: result.Err,
	}
}

// ResponseConversion builds the transformer that converts t into the
// canonical response type.
func ResponseConversion(t language.Type) *Computation {
	return &Computation{
		Path:   fmt.Sprintf("<%s as vireo.IntoResponse>::into_response", t),
		Inputs: []language.Type{t},
		Output: language.Response(),
	}
}

// ErrorUpcast builds the transformer that converts a reference to a concrete
// error type into the framework-wide error consumed by error observers.
func ErrorUpcast(errType language.Type) *Computation {
	return &Computation{
		Path:   fmt.Sprintf("<%s as vireo.IntoError>::into_error", errType),
		Inputs: []language.Type{language.NewRef(errType)},
		Output: language.FrameworkError(),
	}
}

// BuildFromFields synthesizes the structural constructor of a continuation
// state type: one input per field, in field order, producing the state type.
func BuildFromFields(state language.Type, fields []language.Type) *Computation {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Key()
	}
	return &Computation{
		Path:   fmt.Sprintf("%s::new{%s}", state, strings.Join(parts, "; ")),
		Inputs: fields,
		Output: state,
	}
}
