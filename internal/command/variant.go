package command

import "context"

// Kind declares the type a variant parameter expects. Dispatch coerces
// each supplied argument toward its declared kind; see Coerce.
type Kind uint8

const (
	// KindAny accepts any value unchanged.
	KindAny Kind = iota
	// KindString expects a string. Maps carrying a "value" key unwrap.
	KindString
	// KindInt expects an integer. Floating-point arguments truncate.
	KindInt
	// KindFloat expects a float64. Integer arguments widen.
	KindFloat
	// KindBool expects a bool. Numeric arguments test nonzero.
	KindBool
	// KindList expects an ordered list. As a variant's sole parameter it
	// receives the entire argument list as one value.
	KindList
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindAny:
		return "any"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Fn is a variant implementation. It receives the coerced arguments in
// declaration order, one per parameter.
type Fn func(ctx context.Context, args []any) (any, error)

// Variant is one invocable shape of a handler method. Methods with
// multiple argument shapes declare one Variant per shape; dispatch picks
// among them by argument count.
type Variant struct {
	// Params declares the parameter kinds, in order.
	Params []Kind

	// Async schedules the variant on its own goroutine. Execute returns
	// immediately with StatusAsync and the outcome goes to the
	// dispatcher's OnComplete callback.
	Async bool

	// Fn is the implementation.
	Fn Fn
}

// Handler exposes named methods as variant tables. The Method result for
// an unknown name is nil.
type Handler interface {
	Method(name string) []Variant
}

// HandlerMap is the simplest Handler: method name to variants.
type HandlerMap map[string][]Variant

// Method returns the variants registered under name.
func (m HandlerMap) Method(name string) []Variant { return m[name] }
