//go:build linux

package source

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/holoplot/go-evdev"
	"golang.org/x/sys/unix"
)

// evdev key values.
const (
	evRelease = 0
	evPress   = 1
	evRepeat  = 2
)

// Evdev reads raw key transitions from a Linux input device.
type Evdev struct {
	dev    *evdev.InputDevice
	path   string
	events chan Event
	errs   chan error
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// OpenEvdev opens the input device at path, for example
// /dev/input/event3. The caller needs read permission on the device,
// usually through membership in the input group.
func OpenEvdev(path string) (*Evdev, error) {
	if err := unix.Access(path, unix.R_OK); err != nil {
		return nil, fmt.Errorf("input device %s is not readable: %w", path, err)
	}

	dev, err := evdev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input device %s: %w", path, err)
	}

	e := &Evdev{
		dev:    dev,
		path:   path,
		events: make(chan Event, 64),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
	e.wg.Go(e.pump)
	return e, nil
}

// FindKeyboards lists input devices whose name mentions a keyboard.
func FindKeyboards() ([]string, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, err
	}

	var out []string
	for _, p := range paths {
		if strings.Contains(strings.ToLower(p.Name), "keyboard") {
			out = append(out, p.Path)
		}
	}
	return out, nil
}

// Path returns the device path.
func (e *Evdev) Path() string {
	return e.path
}

// pump reads device events until the device is closed.
func (e *Evdev) pump() {
	for {
		ev, err := e.dev.ReadOne()
		if err != nil {
			select {
			case <-e.done:
			case e.errs <- fmt.Errorf("reading %s: %w", e.path, err):
			}
			return
		}
		if ev.Type != evdev.EV_KEY {
			continue
		}

		var typ EventType
		switch ev.Value {
		case evPress, evRepeat:
			typ = Down
		case evRelease:
			typ = Up
		default:
			continue
		}

		out := Event{Name: EvdevKeyName(uint16(ev.Code)), Type: typ}
		select {
		case e.events <- out:
		case <-e.done:
			return
		}
	}
}

// Next implements Source.
func (e *Evdev) Next(ctx context.Context) (Event, error) {
	select {
	case ev := <-e.events:
		return ev, nil
	case err := <-e.errs:
		return Event{}, err
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case <-e.done:
		return Event{}, ErrClosed
	}
}

// Close releases the device.
func (e *Evdev) Close() error {
	var err error
	e.once.Do(func() {
		close(e.done)
		err = e.dev.Close()
		e.wg.Wait()
	})
	return err
}
