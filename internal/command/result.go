package command

// Status classifies the outcome of a dispatched command.
type Status uint8

const (
	// StatusOK indicates the handler ran and returned a value.
	StatusOK Status = iota
	// StatusNotFound indicates no registration exists for the id.
	// Non-fatal: commands are fire-and-forget at this layer.
	StatusNotFound
	// StatusNoVariant indicates the registered method has no variants.
	StatusNoVariant
	// StatusError indicates the handler returned an error or panicked.
	StatusError
	// StatusAsync indicates the variant was scheduled; its outcome is
	// delivered to the OnComplete callback.
	StatusAsync
)

// String returns a stable label for the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not-found"
	case StatusNoVariant:
		return "no-variant"
	case StatusError:
		return "error"
	case StatusAsync:
		return "async"
	default:
		return "unknown"
	}
}

// Result describes what a dispatch did. It is the dispatch boundary:
// handler errors ride inside it and never propagate as Go errors.
type Result struct {
	Status Status

	// Value is the handler's return value for synchronous commands.
	Value any

	// Err holds the handler error or recovered panic, for logging and
	// diagnostics only.
	Err error
}

// OK reports whether the command ran to completion synchronously.
func (r Result) OK() bool { return r.Status == StatusOK }

// outcome maps the status to a metrics outcome label.
func (r Result) outcome() string {
	switch r.Status {
	case StatusOK, StatusAsync:
		return "ok"
	default:
		return r.Status.String()
	}
}
