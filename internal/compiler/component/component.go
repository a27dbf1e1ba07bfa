// Package component defines the role taxonomy of the resolution engine and
// the validation rules each role imposes on its computation. Validation
// errors carry enough structure for the registry to turn them into
// attributed diagnostics.
package component

import "github.com/vireo-lang/vireo/internal/compiler/language"

// Role tags the part a component plays in a request-processing pipeline.
type Role int

const (
	// Constructor builds a value consumed by other components.
	Constructor Role = iota
	// RequestHandler produces the response for a route.
	RequestHandler
	// WrappingMiddleware wraps the rest of the pipeline behind a continuation.
	WrappingMiddleware
	// PreProcessingMiddleware runs before the stage's middle component.
	PreProcessingMiddleware
	// PostProcessingMiddleware runs after the stage's middle component, on its response.
	PostProcessingMiddleware
	// ErrorHandler turns a component failure into a response.
	ErrorHandler
	// ErrorObserver is notified of failures without influencing the response.
	ErrorObserver
	// Transformer is a synthesized projection or conversion.
	Transformer
	// PrebuiltType is a value supplied by the caller before the application starts.
	PrebuiltType
)

func (r Role) String() string {
	switch r {
	case Constructor:
		return "constructor"
	case RequestHandler:
		return "request handler"
	case WrappingMiddleware:
		return "wrapping middleware"
	case PreProcessingMiddleware:
		return "pre-processing middleware"
	case PostProcessingMiddleware:
		return "post-processing middleware"
	case ErrorHandler:
		return "error handler"
	case ErrorObserver:
		return "error observer"
	case Transformer:
		return "transformer"
	case PrebuiltType:
		return "prebuilt type"
	default:
		return "unknown"
	}
}

// Lifecycle governs how often a component's computation is (re-)invoked.
type Lifecycle int

const (
	// Singleton components are built at most once, before any request.
	Singleton Lifecycle = iota
	// RequestScoped components are built at most once per request.
	RequestScoped
	// Transient components are built fresh at every consumption site.
	Transient
)

func (l Lifecycle) String() string {
	switch l {
	case Singleton:
		return "singleton"
	case RequestScoped:
		return "request-scoped"
	case Transient:
		return "transient"
	default:
		return "unknown"
	}
}

// CloningStrategy governs whether the pipeline assembler may duplicate a
// value to resolve an ownership conflict.
type CloningStrategy int

const (
	// NeverClone forbids duplication; conflicts become hard errors.
	NeverClone CloningStrategy = iota
	// CloneIfNecessary allows the assembler to insert duplications.
	CloneIfNecessary
)

func (c CloningStrategy) String() string {
	if c == CloneIfNecessary {
		return "clone-if-necessary"
	}
	return "never-clone"
}

// ConsumptionMode describes how a consumer uses one of its inputs.
type ConsumptionMode int

const (
	// Move consumes the value by ownership.
	Move ConsumptionMode = iota
	// SharedBorrow reads the value through an immutable reference.
	SharedBorrow
	// ExclusiveBorrow mutates the value through a mutable reference.
	ExclusiveBorrow
)

func (m ConsumptionMode) String() string {
	switch m {
	case Move:
		return "move"
	case SharedBorrow:
		return "shared borrow"
	case ExclusiveBorrow:
		return "exclusive borrow"
	default:
		return "unknown"
	}
}

// ConsumptionOf splits an input type into the underlying value type and the
// mode in which the consumer uses it.
func ConsumptionOf(input language.Type) (language.Type, ConsumptionMode) {
	if ref, ok := input.(*language.RefType); ok {
		if ref.Mutable {
			return ref.Elem, ExclusiveBorrow
		}
		return ref.Elem, SharedBorrow
	}
	return input, Move
}
