package command

import "errors"

// Dispatch errors. They surface only inside Result.Err; Execute never
// returns them to the caller.
var (
	// ErrUnknownCommand indicates no registration exists for the id.
	ErrUnknownCommand = errors.New("command: unknown command id")

	// ErrNoVariant indicates the registered method declares no variants.
	ErrNoVariant = errors.New("command: method has no variants")

	// ErrNilVariant indicates the selected variant has no function.
	ErrNilVariant = errors.New("command: variant has no function")

	// ErrPanic indicates the handler panicked and was recovered.
	ErrPanic = errors.New("command: handler panic")
)
