package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrClosed is returned by Next after the source has been closed.
var ErrClosed = errors.New("source closed")

// ErrUnsupported is returned when a source kind is not available on this
// platform.
var ErrUnsupported = errors.New("source not supported on this platform")

// EventType distinguishes key-down from key-up.
type EventType uint8

const (
	// Down is a key press (or auto-repeat).
	Down EventType = iota + 1

	// Up is a key release.
	Up
)

// String returns "down" or "up".
func (t EventType) String() string {
	switch t {
	case Down:
		return "down"
	case Up:
		return "up"
	default:
		return "unknown"
	}
}

// ParseEventType parses "down" or "up" (case-insensitive).
func ParseEventType(s string) (EventType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "down", "press", "keydown":
		return Down, nil
	case "up", "release", "keyup":
		return Up, nil
	default:
		return 0, fmt.Errorf("unknown event type %q", s)
	}
}

// Event is a single key transition. An empty Name means the source could not
// identify the key.
type Event struct {
	Name string
	Type EventType
	Time time.Time
}

// KeyDown builds a key-down event.
func KeyDown(name string) Event {
	return Event{Name: name, Type: Down, Time: time.Now()}
}

// KeyUp builds a key-up event.
func KeyUp(name string) Event {
	return Event{Name: name, Type: Up, Time: time.Now()}
}

// String returns a short description like "down ctrl".
func (e Event) String() string {
	return e.Type.String() + " " + e.Name
}

// Source delivers key events to a monitor.
type Source interface {
	// Next blocks until the next event is available, ctx is done, or the
	// source ends. It returns io.EOF when the input is exhausted.
	Next(ctx context.Context) (Event, error)

	// Close releases the source and unblocks any pending Next.
	Close() error
}

// Kind names a source implementation in configuration.
type Kind string

// Known source kinds.
const (
	KindTerminal Kind = "terminal"
	KindEvdev    Kind = "evdev"
	KindScript   Kind = "script"
	KindChannel  Kind = "channel"
)

// ParseKind validates a configured source kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindTerminal, KindEvdev, KindScript, KindChannel:
		return k, nil
	default:
		return "", fmt.Errorf("unknown source kind %q", s)
	}
}
