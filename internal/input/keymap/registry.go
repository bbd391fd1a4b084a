package keymap

import (
	"fmt"
	"sort"
	"sync"
)

// Entry is one bound callback in a chord's snapshot.
type Entry struct {
	ID       int
	Callback *Callback
}

// Selector addresses bindings for removal. Exactly one addressing mode is
// valid:
//
//   - Chord and ID: the single slot.
//   - Chord and Callback: every slot in the chord holding the callback.
//   - Chord alone: the whole chord.
//   - Callback alone: the callback in every chord.
//
// A nil ID means the id was omitted; use Slot to address slot 0.
type Selector struct {
	Chord    string
	Callback *Callback
	ID       *int
}

// Slot returns a pointer to id for use in a Selector.
func Slot(id int) *int {
	return &id
}

// Registry maps chord strings to slot-indexed callbacks.
// Registry is safe for concurrent use. Callbacks are never invoked while
// the registry lock is held.
type Registry struct {
	mu sync.RWMutex

	// chords holds chord -> slot id -> callback. A chord whose slots were all
	// removed keeps an empty map until the chord itself is unregistered.
	chords map[string]map[int]*Callback
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	skipDefaults bool
}

// WithoutDefaults creates the registry without the built-in bindings.
func WithoutDefaults() RegistryOption {
	return func(o *registryOptions) {
		o.skipDefaults = true
	}
}

// NewRegistry creates a registry holding the default bindings.
func NewRegistry(opts ...RegistryOption) *Registry {
	var o registryOptions
	for _, opt := range opts {
		opt(&o)
	}

	r := &Registry{
		chords: make(map[string]map[int]*Callback),
	}
	if !o.skipDefaults {
		r.LoadDefaults()
	}
	return r
}

// Add binds cb to chord under the next free slot: 0 for a new or empty
// chord, otherwise one past the highest slot in use. It returns the slot.
func (r *Registry) Add(chord string, cb *Callback) (int, error) {
	if err := validate(chord, cb); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	slots, ok := r.chords[chord]
	if !ok {
		r.chords[chord] = map[int]*Callback{0: cb}
		return 0, nil
	}

	id := nextSlot(slots)
	slots[id] = cb
	return id, nil
}

// Set binds cb to chord at slot id, replacing any callback already there.
func (r *Registry) Set(chord string, id int, cb *Callback) error {
	if err := validate(chord, cb); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	slots, ok := r.chords[chord]
	if !ok {
		slots = make(map[int]*Callback, 1)
		r.chords[chord] = slots
	}
	slots[id] = cb
	return nil
}

// Register starts a registration for chord under the next free slot.
//
//	id, err := reg.Register("ctrl+t").To(cb)
func (r *Registry) Register(chord string) *Binder {
	return &Binder{registry: r, chord: chord}
}

// RegisterAt starts a registration for chord at an explicit slot.
func (r *Registry) RegisterAt(chord string, id int) *Binder {
	return &Binder{registry: r, chord: chord, id: &id}
}

// Binder completes a registration started by Register or RegisterAt.
type Binder struct {
	registry *Registry
	chord    string
	id       *int
}

// To binds cb and returns the slot it was stored under.
func (b *Binder) To(cb *Callback) (int, error) {
	if b.id == nil {
		return b.registry.Add(b.chord, cb)
	}
	if err := b.registry.Set(b.chord, *b.id, cb); err != nil {
		return 0, err
	}
	return *b.id, nil
}

// Unregister removes the bindings addressed by sel.
//
// It returns ErrInvalidArgument when sel names neither a chord nor a
// callback, or names both a callback and an id. It returns ErrNotFound when
// a named chord, or a named slot within it, is not bound. Removing a callback
// that holds no slot is not an error.
func (r *Registry) Unregister(sel Selector) error {
	if sel.Chord == "" && sel.Callback == nil {
		if sel.ID != nil {
			return fmt.Errorf("%w: slot %d given without a chord", ErrInvalidArgument, *sel.ID)
		}
		return fmt.Errorf("%w: chord and callback cannot both be omitted", ErrInvalidArgument)
	}
	if sel.Callback != nil && sel.ID != nil {
		return fmt.Errorf("%w: callback and slot cannot both be given", ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if sel.Chord == "" {
		r.removeCallbackLocked(sel.Callback)
		return nil
	}

	slots, ok := r.chords[sel.Chord]
	if !ok {
		return fmt.Errorf("%w: chord %q", ErrNotFound, sel.Chord)
	}

	switch {
	case sel.ID != nil:
		if _, ok := slots[*sel.ID]; !ok {
			return fmt.Errorf("%w: chord %q slot %d", ErrNotFound, sel.Chord, *sel.ID)
		}
		delete(slots, *sel.ID)
	case sel.Callback != nil:
		for id, cb := range slots {
			if cb.Same(sel.Callback) {
				delete(slots, id)
			}
		}
	default:
		delete(r.chords, sel.Chord)
	}
	return nil
}

// UnregisterCallback removes cb from every chord and reports how many slots
// were freed.
func (r *Registry) UnregisterCallback(cb *Callback) int {
	if cb == nil {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeCallbackLocked(cb)
}

// removeCallbackLocked deletes cb from every chord.
// Caller must hold the write lock.
func (r *Registry) removeCallbackLocked(cb *Callback) int {
	removed := 0
	for _, slots := range r.chords {
		for id, bound := range slots {
			if bound.Same(cb) {
				delete(slots, id)
				removed++
			}
		}
	}
	return removed
}

// Lookup returns a copy of chord's slot mapping.
func (r *Registry) Lookup(chord string) (map[int]*Callback, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slots, ok := r.chords[chord]
	if !ok {
		return nil, false
	}

	out := make(map[int]*Callback, len(slots))
	for id, cb := range slots {
		out[id] = cb
	}
	return out, true
}

// Snapshot returns the callbacks bound to chord ordered by slot id.
// It returns nil for an unbound chord or one with no slots left.
func (r *Registry) Snapshot(chord string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slots := r.chords[chord]
	if len(slots) == 0 {
		return nil
	}

	entries := make([]Entry, 0, len(slots))
	for id, cb := range slots {
		entries = append(entries, Entry{ID: id, Callback: cb})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ID < entries[j].ID
	})
	return entries
}

// Has reports whether chord has an entry, even an empty one.
func (r *Registry) Has(chord string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.chords[chord]
	return ok
}

// Chords returns every chord with an entry, sorted.
func (r *Registry) Chords() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chords := make([]string, 0, len(r.chords))
	for c := range r.chords {
		chords = append(chords, c)
	}
	sort.Strings(chords)
	return chords
}

// Len returns the total number of bound slots across all chords.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, slots := range r.chords {
		n += len(slots)
	}
	return n
}

// Clear removes every binding, including the defaults.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chords = make(map[string]map[int]*Callback)
}

func validate(chord string, cb *Callback) error {
	if chord == "" {
		return fmt.Errorf("%w: empty chord", ErrInvalidArgument)
	}
	if cb == nil {
		return fmt.Errorf("%w: nil callback for chord %q", ErrInvalidArgument, chord)
	}
	return nil
}

// nextSlot returns one past the highest slot in use, or 0 when empty.
func nextSlot(slots map[int]*Callback) int {
	if len(slots) == 0 {
		return 0
	}
	first := true
	highest := 0
	for id := range slots {
		if first || id > highest {
			highest = id
			first = false
		}
	}
	return highest + 1
}
