package dispatch

import "errors"

// Sentinel errors for the dispatch package.
var (
	// ErrAlreadyRunning is returned when Open is called on an open dispatcher.
	ErrAlreadyRunning = errors.New("dispatcher is already running")

	// ErrNotRunning is returned when a unit is dispatched to a drained dispatcher.
	ErrNotRunning = errors.New("dispatcher is not running")

	// ErrPanic wraps the value recovered from a panicking callback.
	ErrPanic = errors.New("callback panicked")
)
