// Package chord tracks the keys a monitor currently holds down and turns
// them into chord strings.
package chord

import (
	"sync"

	"github.com/dshills/keychord/internal/input/key"
)

// Tracker maintains the ordered set of pressed keys for one monitor.
// A key appears at most once, compared under shift equivalence.
// Tracker is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	pressed []key.Key
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		pressed: make([]key.Key, 0, 8),
	}
}

// Press records a key-down. If the key was not already held it is appended
// and the resulting chord is returned with ok set. A repeat of a held key
// (auto-repeat, or the shifted form of a held key) returns ok false.
func (t *Tracker) Press(name string) (chord string, ok bool) {
	k := key.Normalize(name)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.indexLocked(k) >= 0 {
		return "", false
	}
	t.pressed = append(t.pressed, k)
	return key.Join(t.pressed), true
}

// Release records a key-up, removing every held entry equal to the key.
// Releasing a key that is not held is a no-op.
func (t *Tracker) Release(name string) {
	k := key.Normalize(name)

	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.pressed) - 1; i >= 0; i-- {
		if t.pressed[i].Equal(k) {
			t.pressed = append(t.pressed[:i], t.pressed[i+1:]...)
		}
	}
}

// Chord returns the chord formed by the keys held right now.
func (t *Tracker) Chord() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return key.Join(t.pressed)
}

// Pressed returns a copy of the held keys in press order.
func (t *Tracker) Pressed() []key.Key {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]key.Key, len(t.pressed))
	copy(out, t.pressed)
	return out
}

// Len returns the number of held keys.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pressed)
}

// Reset forgets every held key.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pressed = t.pressed[:0]
}

// indexLocked returns the position of the first held key equal to k, or -1.
func (t *Tracker) indexLocked(k key.Key) int {
	for i, p := range t.pressed {
		if p.Equal(k) {
			return i
		}
	}
	return -1
}
