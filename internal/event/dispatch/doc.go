// Package dispatch runs the callbacks bound to a recognized chord.
//
// Each recognized chord becomes one dispatch unit: a goroutine that calls
// every callback in the chord's snapshot in slot order, one after another.
// When a callback returns a non-empty value, the handlers registered under
// that value in the reflector table run synchronously, inside the same unit,
// before the next callback.
//
// # Failure Isolation
//
// A callback that returns an error or panics is reported as a *Failure and
// the unit moves on to the next callback. Failures go to the dispatcher's
// logger and to an optional FailureHandler; they never reach the read loop.
//
// # Draining
//
// Dispatch never blocks the caller. Drain stops accepting new units and waits
// for the ones in flight. Callbacks are never cancelled: the context passed
// to Drain only bounds how long the caller is willing to wait.
//
//	d := dispatch.New(reflector, dispatch.WithLogger(logger))
//	d.Open()
//	d.Dispatch(monitor, "ctrl+a", registry.Snapshot("ctrl+a"))
//	...
//	if err := d.Drain(ctx); err != nil {
//	    // units still running when ctx expired
//	}
package dispatch
