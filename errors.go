package refjson

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrCycleDetected is returned by Marshal in Default mode when nesting
	// exceeds the depth ceiling, which for finite input means the graph
	// loops.
	ErrCycleDetected = errors.New("refjson: object cycle detected")

	// ErrDepthExceeded is returned when composite nesting exceeds the depth
	// ceiling in Ignore or Preserve mode, or on read.
	ErrDepthExceeded = errors.New("refjson: max depth exceeded")

	// ErrDuplicateIdentifier is returned by Unmarshal when two "$id"
	// properties in the same document carry the same value, or when a single
	// object declares "$id" more than once.
	ErrDuplicateIdentifier = errors.New("refjson: duplicate $id")

	// ErrReferenceObjectHasOtherProperties is returned by Unmarshal when a
	// "$ref" property coexists with any other property, regular or metadata,
	// before or after it.
	ErrReferenceObjectHasOtherProperties = errors.New("refjson: reference object must carry $ref and nothing else")

	// ErrUnexpectedMetadata is returned by Unmarshal for metadata that is
	// lexically valid but not permitted where it appears: "$values" outside
	// an array context or without a sibling "$id", a "$"-prefixed name
	// inside a preserved-array wrapper, "$id" out of position in a construct
	// that requires it first, or "$ref" against a value-type slot.
	ErrUnexpectedMetadata = errors.New("refjson: unexpected metadata property")

	// ErrUnresolvableTypeForPreservation is returned by Unmarshal when the
	// payload attempts to preserve a fixed-capacity or otherwise immutable
	// collection itself. Preservation of elements inside such a collection
	// is permitted.
	ErrUnresolvableTypeForPreservation = errors.New("refjson: type cannot be preserved")

	// ErrPreservedArrayMalformed is returned by Unmarshal when an
	// array-wrapping object is missing "$id" or "$values", or when "$values"
	// is null or not an array, or when the wrapper carries a regular
	// property.
	ErrPreservedArrayMalformed = errors.New("refjson: malformed preserved array")

	// ErrIncompleteInput is returned by Unmarshal when the token stream ends
	// in the middle of a construct.
	ErrIncompleteInput = errors.New("refjson: unexpected end of input")

	// ErrInvalidReferenceHandling is returned when options carry a
	// ReferenceHandling outside the declared enumeration or a negative
	// MaxDepth.
	ErrInvalidReferenceHandling = errors.New("refjson: invalid reference handling")

	// ErrInvalidResolution is returned when a "$ref" resolves to a value
	// whose type is incompatible with the slot it must be grafted into.
	ErrInvalidResolution = errors.New("refjson: invalid resolution")

	// ErrUnsupportedType is returned by Marshal for values that have no JSON
	// representation, such as channels and funcs, or maps with unencodable
	// keys.
	ErrUnsupportedType = errors.New("refjson: unsupported type")
)

// Error wraps a failure with the JSON path at which it occurred.
type Error struct {
	Err  error
	Path Location
}

func NewError(err error, loc Location) error {
	return &Error{
		Err:  err,
		Path: loc,
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: at %s", e.Err, e.Path)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind error, loc Location, format string, args ...interface{}) error {
	if format == "" {
		return NewError(kind, loc)
	}
	return NewError(fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...)), loc)
}

// ResolutionError reports a "$ref" whose referent cannot be assigned to the
// slot expecting it.
type ResolutionError struct {
	Path     Location
	ID       string
	Expected reflect.Type
	Actual   reflect.Type
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%v: cannot resolve $ref %q of type %s to %s: at %s", ErrInvalidResolution, e.ID, e.Actual, e.Expected, e.Path)
}

func (e *ResolutionError) Unwrap() error {
	return ErrInvalidResolution
}

func newResolutionError(loc Location, id string, expected, actual reflect.Type) error {
	return &ResolutionError{
		Path:     loc,
		ID:       id,
		Expected: expected,
		Actual:   actual,
	}
}

// UnsupportedTypeError reports a value Marshal cannot represent.
type UnsupportedTypeError struct {
	Type reflect.Type
	Path Location
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("%v: %s: at %s", ErrUnsupportedType, e.Type, e.Path)
}

func (e *UnsupportedTypeError) Unwrap() error {
	return ErrUnsupportedType
}
