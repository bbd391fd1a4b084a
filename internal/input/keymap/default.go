package keymap

// StopChord is the chord bound by default to StopCallback.
const StopChord = "ctrl+c"

// StopCallback shuts down the monitor that recognized its chord.
var StopCallback = Func("stop", func(m Monitor) {
	m.Shutdown()
})

// DefaultBindings returns the built-in chord bindings keyed by chord, then slot.
func DefaultBindings() map[string]map[int]*Callback {
	return map[string]map[int]*Callback{
		StopChord: {0: StopCallback},
	}
}

// LoadDefaults binds the built-in chords, replacing whatever occupies their
// slots.
func (r *Registry) LoadDefaults() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for chord, slots := range DefaultBindings() {
		existing, ok := r.chords[chord]
		if !ok {
			existing = make(map[int]*Callback, len(slots))
			r.chords[chord] = existing
		}
		for id, cb := range slots {
			existing[id] = cb
		}
	}
}
