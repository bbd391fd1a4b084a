package monitor

import "errors"

// Sentinel errors for the monitor package.
var (
	// ErrAlreadyRunning is returned when Run is called on a running monitor.
	ErrAlreadyRunning = errors.New("monitor is already running")

	// ErrStopping is returned when Run is called while the previous run is
	// still draining its dispatch units.
	ErrStopping = errors.New("monitor is stopping")
)
