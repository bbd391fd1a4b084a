package dispatch

import (
	"fmt"
	"time"
)

// Result represents the outcome of one callback invocation.
type Result struct {
	// Success is true if the callback completed without error or panic.
	Success bool

	// Value is the string the callback returned, used as a reflector key.
	Value string

	// Error is the error returned by the callback, if any.
	Error error

	// Panicked is true if the callback panicked.
	Panicked bool

	// PanicValue is the value passed to panic(), if Panicked is true.
	PanicValue any

	// PanicStack is the stack trace at the point of panic.
	PanicStack []byte

	// Duration is how long the callback took to execute.
	Duration time.Duration
}

// IsSuccess returns true if the result indicates successful execution.
func (r Result) IsSuccess() bool {
	return r.Success && !r.Panicked && r.Error == nil
}

// Stage identifies which part of a dispatch unit failed.
type Stage int

const (
	// StageCallback is a chord callback.
	StageCallback Stage = iota

	// StageReflect is a reflector handler run for a callback's result.
	StageReflect
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageCallback:
		return "callback"
	case StageReflect:
		return "reflect"
	default:
		return "unknown"
	}
}

// Failure describes a callback or reflector handler that returned an error
// or panicked.
type Failure struct {
	MonitorID string
	Chord     string
	Stage     Stage

	// Slot and Callback identify the chord callback. For StageReflect they
	// name the callback whose result was being reflected.
	Slot     int
	Callback string

	// Key and Index identify the reflector handler for StageReflect.
	Key   string
	Index int

	Err   error
	Stack []byte
}

// Error implements error.
func (f *Failure) Error() string {
	if f.Stage == StageReflect {
		return fmt.Sprintf("chord %q: reflector %q[%d] (from %s): %v", f.Chord, f.Key, f.Index, f.Callback, f.Err)
	}
	return fmt.Sprintf("chord %q: callback %s at slot %d: %v", f.Chord, f.Callback, f.Slot, f.Err)
}

// Unwrap returns the underlying error.
func (f *Failure) Unwrap() error {
	return f.Err
}

// Panicked reports whether the failure was a recovered panic.
func (f *Failure) Panicked() bool {
	return f.Stack != nil
}

// FailureHandler receives every failure isolated by a dispatcher.
// It runs on the dispatch unit's goroutine.
type FailureHandler func(f *Failure)

// PanicHandler is called when a callback panics during execution.
// It receives the callback's name, the panic value, and the stack trace.
type PanicHandler func(name string, panicValue any, stack []byte)

// defaultPanicHandler is a no-op panic handler; the dispatcher logs panics
// through its Failure reporting.
func defaultPanicHandler(name string, panicValue any, stack []byte) {}
