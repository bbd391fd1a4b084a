//go:build !linux

package source

import (
	"context"
	"fmt"
)

// Evdev is only available on Linux.
type Evdev struct{}

// OpenEvdev reports ErrUnsupported outside Linux.
func OpenEvdev(path string) (*Evdev, error) {
	return nil, fmt.Errorf("evdev %s: %w", path, ErrUnsupported)
}

// FindKeyboards reports ErrUnsupported outside Linux.
func FindKeyboards() ([]string, error) {
	return nil, ErrUnsupported
}

// Path returns an empty string.
func (e *Evdev) Path() string { return "" }

// Next implements Source.
func (e *Evdev) Next(ctx context.Context) (Event, error) { return Event{}, ErrUnsupported }

// Close implements Source.
func (e *Evdev) Close() error { return nil }
