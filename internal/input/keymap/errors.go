package keymap

import "errors"

// Sentinel errors for the keymap package.
var (
	// ErrInvalidArgument is returned when a binding operation is addressed
	// ambiguously or is missing a required value.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned when removing a chord or slot that is not bound.
	ErrNotFound = errors.New("binding not found")
)
