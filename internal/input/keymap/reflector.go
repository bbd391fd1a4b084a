package keymap

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ReflectFunc is a secondary handler run when a chord callback returns the
// key it is registered under.
type ReflectFunc func(m Monitor) error

// Reflector maps callback results to ordered lists of secondary handlers.
// Handlers for a key run in registration order. Reflector is safe for
// concurrent use.
type Reflector struct {
	mu    sync.RWMutex
	table map[string][]reflectEntry
}

type reflectEntry struct {
	id uuid.UUID
	fn ReflectFunc
}

// NewReflector creates an empty reflector table.
func NewReflector() *Reflector {
	return &Reflector{
		table: make(map[string][]reflectEntry),
	}
}

// Register starts a registration under key.
//
//	refl.Register("saved").To(fn)
func (r *Reflector) Register(key string) *ReflectBinder {
	return &ReflectBinder{reflector: r, key: key}
}

// ReflectBinder completes a registration started by Reflector.Register.
type ReflectBinder struct {
	reflector *Reflector
	key       string
}

// To appends fn to the handlers for the binder's key and returns its handle.
func (b *ReflectBinder) To(fn ReflectFunc) (uuid.UUID, error) {
	return b.reflector.Add(b.key, fn)
}

// Add appends fn to the handlers for key. The returned handle removes
// exactly this registration through Remove.
func (r *Reflector) Add(key string, fn ReflectFunc) (uuid.UUID, error) {
	if key == "" {
		return uuid.Nil, fmt.Errorf("%w: empty reflector key", ErrInvalidArgument)
	}
	if fn == nil {
		return uuid.Nil, fmt.Errorf("%w: nil handler for reflector key %q", ErrInvalidArgument, key)
	}

	id := uuid.New()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table[key] = append(r.table[key], reflectEntry{id: id, fn: fn})
	return id, nil
}

// Remove removes the handler registered under key with handle id and
// reports whether it was found. A key left without handlers is dropped.
func (r *Reflector) Remove(key string, id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.table[key]
	for i, e := range entries {
		if e.id != id {
			continue
		}
		entries = append(entries[:i:i], entries[i+1:]...)
		if len(entries) == 0 {
			delete(r.table, key)
		} else {
			r.table[key] = entries
		}
		return true
	}
	return false
}

// Unregister removes every handler under key. Unknown keys are ignored.
func (r *Reflector) Unregister(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.table, key)
}

// Lookup returns a copy of the handlers registered under key.
func (r *Reflector) Lookup(key string) ([]ReflectFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, ok := r.table[key]
	if !ok {
		return nil, false
	}
	out := make([]ReflectFunc, len(entries))
	for i, e := range entries {
		out[i] = e.fn
	}
	return out, true
}

// Keys returns every registered key, sorted.
func (r *Reflector) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.table))
	for k := range r.table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
