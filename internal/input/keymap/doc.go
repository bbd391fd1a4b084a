// Package keymap holds the chord bindings shared by every monitor.
//
// # Bindings
//
// A Registry maps a chord string ("ctrl+alt+t") to a set of callbacks, each
// stored under an integer slot id that is unique within its chord. Slots are
// assigned max+1 unless one is given explicitly:
//
//	reg := keymap.NewRegistry()
//	save := keymap.NewCallback("save", func(m keymap.Monitor) (string, error) {
//	    return "saved", nil
//	})
//	id, _ := reg.Register("ctrl+s").To(save) // id 0
//
// Bindings can be removed narrowly or broadly:
//
//	reg.Unregister(keymap.Selector{Chord: "ctrl+s", ID: keymap.Slot(0)})
//	reg.Unregister(keymap.Selector{Chord: "ctrl+s", Callback: save})
//	reg.Unregister(keymap.Selector{Chord: "ctrl+s"})
//	reg.Unregister(keymap.Selector{Callback: save}) // from every chord
//
// # Reflector
//
// A callback's non-empty return value is looked up in the Reflector, a second
// table of secondary functions keyed by that value. This lets one chord
// trigger handlers that were registered by unrelated code:
//
//	refl := keymap.NewReflector()
//	h, _ := refl.Register("saved").To(func(m keymap.Monitor) error {
//	    log.Println("saved from", m.ID())
//	    return nil
//	})
//	refl.Remove("saved", h) // only this handler
//
// # Defaults
//
// NewRegistry binds "ctrl+c" at slot 0 to StopCallback, which asks the
// monitor that recognized the chord to shut down. The binding can be removed
// like any other.
//
// Registry and Reflector are safe for concurrent use. Lookups return copies,
// so a dispatch that already took a snapshot is unaffected by later changes.
package keymap
