package task

import "errors"

var (
	// ErrDuplicateName is returned by Add when name uniqueness validation is enabled and a
	// registered task already uses the explicitly requested name.
	ErrDuplicateName = errors.New("task: duplicate name")

	// ErrClosed is returned when the registry is shut down, or when Start is called after the
	// supervisor loop was stopped.
	ErrClosed = errors.New("task: registry closed")

	// ErrCanceled is the cooperative cancellation signal. A unit returns it (see Canceled)
	// after noticing that its execution was asked to stop.
	ErrCanceled = errors.New("task: canceled")
)
