package keymap

import (
	"fmt"

	"github.com/google/uuid"
)

// Monitor is the view of a running monitor handed to callbacks.
type Monitor interface {
	// ID returns the monitor's unique identifier.
	ID() string

	// Shutdown asks the monitor to stop reading input. It does not block,
	// so it is safe to call from a callback.
	Shutdown()

	// Bindings returns the registry the monitor dispatches from.
	Bindings() *Registry

	// Reflector returns the secondary dispatch table.
	Reflector() *Reflector
}

// HandlerFunc is the body of a chord callback. A non-empty result is looked
// up in the Reflector.
type HandlerFunc func(m Monitor) (string, error)

// Callback is a bindable chord handler. Callbacks are compared by an opaque
// handle assigned at construction, so the same *Callback can later be used to
// remove every binding it owns.
type Callback struct {
	handle uuid.UUID
	name   string
	fn     HandlerFunc
}

// NewCallback wraps fn in a new Callback with a fresh handle.
// name is used in logs and may be empty.
func NewCallback(name string, fn HandlerFunc) *Callback {
	return &Callback{
		handle: uuid.New(),
		name:   name,
		fn:     fn,
	}
}

// Func wraps a handler that never feeds the Reflector.
func Func(name string, fn func(m Monitor)) *Callback {
	return NewCallback(name, func(m Monitor) (string, error) {
		fn(m)
		return "", nil
	})
}

// Handle returns the callback's identity.
func (c *Callback) Handle() uuid.UUID {
	return c.handle
}

// Name returns the callback's display name.
func (c *Callback) Name() string {
	if c.name == "" {
		return c.handle.String()
	}
	return c.name
}

// String implements fmt.Stringer.
func (c *Callback) String() string {
	return fmt.Sprintf("%s(%s)", c.Name(), c.handle.String()[:8])
}

// Same reports whether c and other are the same callback.
func (c *Callback) Same(other *Callback) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.handle == other.handle
}

// Call invokes the callback.
func (c *Callback) Call(m Monitor) (string, error) {
	if c.fn == nil {
		return "", nil
	}
	return c.fn(m)
}
