package lua

import "errors"

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutionTimeout is returned when a call runs past the state's timeout.
	ErrExecutionTimeout = errors.New("lua execution timeout")

	// ErrBadResult is returned when a script returns something other than a
	// string, a number, nil or false.
	ErrBadResult = errors.New("lua script returned an unsupported value")
)
