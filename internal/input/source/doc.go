// Package source provides the key event streams a monitor reads from.
//
// Every source delivers an ordered sequence of key-down and key-up events
// through a blocking Next call:
//
//   - Channel: events pushed by Go code, used by tests and embedders.
//   - Script: a recorded sequence replayed from a YAML or JSON-lines file.
//   - Terminal: keys typed into the controlling terminal, read with tcell.
//     Terminals report whole key presses, so each one is expanded into
//     modifier downs, the key down and up, and the modifier ups.
//   - Evdev (Linux): raw key state from an /dev/input/event* device.
//
// Sources return io.EOF when their input is exhausted and ErrClosed once
// Close has been called.
package source
