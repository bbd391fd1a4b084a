package dispatch

import (
	"fmt"
	"runtime/debug"
	"time"
)

// Executor runs a single callback with panic recovery and timing.
type Executor struct {
	panicHandler PanicHandler
}

// NewExecutor creates a new executor with the given options.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		panicHandler: defaultPanicHandler,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorPanicHandler sets the panic handler for the executor.
func WithExecutorPanicHandler(h PanicHandler) ExecutorOption {
	return func(e *Executor) {
		e.panicHandler = h
	}
}

// Execute runs fn and returns its result. A panic inside fn is recovered
// and reported in the result with its stack trace.
func (e *Executor) Execute(name string, fn func() (string, error)) (result Result) {
	start := time.Now()

	defer func() {
		result.Duration = time.Since(start)

		if r := recover(); r != nil {
			stack := debug.Stack()

			result.Success = false
			result.Value = ""
			result.Panicked = true
			result.PanicValue = r
			result.PanicStack = stack
			result.Error = fmt.Errorf("%w: %v", ErrPanic, r)

			// Don't let a panicking panic handler escape the unit.
			if e.panicHandler != nil {
				func() {
					defer func() {
						_ = recover()
					}()
					e.panicHandler(name, r, stack)
				}()
			}
		}
	}()

	value, err := fn()
	if err != nil {
		result.Success = false
		result.Error = err
		return result
	}

	result.Success = true
	result.Value = value
	return result
}
