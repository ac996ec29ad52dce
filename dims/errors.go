package dims

import "errors"

// Errors reported by the shape algebra and the dispatcher.
var (
	// ErrIncompatibleShapes indicates two shapes declare the same dimension
	// with sizes or types that cannot be unified, or an operation received
	// operands whose shapes cannot be combined.
	ErrIncompatibleShapes = errors.New("dims: incompatible shapes")

	// ErrDimensionNotFound indicates a dimension name is absent from a shape.
	ErrDimensionNotFound = errors.New("dims: dimension not found")

	// ErrNotShapable indicates a value does not expose the capabilities an
	// operation requires (shape query, slicing, or any native combinator).
	ErrNotShapable = errors.New("dims: value does not support shape operations")
)

// Native hooks decline a case by returning errors.ErrUnsupported. The
// dispatcher treats it as "use the generic path" and never lets it escape
// a public function.
