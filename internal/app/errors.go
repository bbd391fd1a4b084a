package app

import (
	"errors"
	"fmt"
)

// Application errors.
var (
	// ErrAlreadyRunning indicates the application is already running.
	ErrAlreadyRunning = errors.New("application already running")

	// ErrClosed indicates the application has been closed.
	ErrClosed = errors.New("application closed")

	// ErrTerminalInUse indicates more than one monitor asked for the terminal.
	ErrTerminalInUse = errors.New("only one monitor can read the terminal")
)

// InitError represents an initialization error.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initializing %s: %v", e.Component, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// ActionError reports a binding or reflector that could not be built.
type ActionError struct {
	Kind   string // "binding" or "reflector"
	Index  int
	Target string // chord or key
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s[%d] %q: %v", e.Kind, e.Index, e.Target, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}
