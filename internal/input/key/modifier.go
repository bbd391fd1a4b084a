package key

import "strings"

// Canonical modifier key names used in chord strings.
const (
	NameCtrl  = "ctrl"
	NameAlt   = "alt"
	NameShift = "shift"
	NameMeta  = "meta"
)

// Modifier is a set of modifier keys held alongside a key.
type Modifier uint8

const (
	// ModNone indicates no modifiers.
	ModNone Modifier = 0

	// ModCtrl indicates the Control key.
	ModCtrl Modifier = 1 << iota

	// ModAlt indicates the Alt key (Option on macOS).
	ModAlt

	// ModShift indicates the Shift key.
	ModShift

	// ModMeta indicates the Meta key (Cmd on macOS, Win on Windows).
	ModMeta
)

// Has returns true if m contains the specified modifier.
func (m Modifier) Has(mod Modifier) bool {
	return m&mod != 0
}

// With returns a new Modifier with the specified modifier added.
func (m Modifier) With(mod Modifier) Modifier {
	return m | mod
}

// Names returns the canonical key names of the modifiers in m, in the order
// a user conventionally presses them: ctrl, alt, shift, meta.
func (m Modifier) Names() []string {
	if m == ModNone {
		return nil
	}

	names := make([]string, 0, 4)
	if m.Has(ModCtrl) {
		names = append(names, NameCtrl)
	}
	if m.Has(ModAlt) {
		names = append(names, NameAlt)
	}
	if m.Has(ModShift) {
		names = append(names, NameShift)
	}
	if m.Has(ModMeta) {
		names = append(names, NameMeta)
	}
	return names
}

// String returns the modifiers joined like a chord prefix, e.g. "ctrl+alt".
func (m Modifier) String() string {
	return strings.Join(m.Names(), Separator)
}

// modifierNameMap maps modifier names and their platform aliases
// (lowercase) to Modifier values.
var modifierNameMap = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"alt":     ModAlt,
	"option":  ModAlt,
	"opt":     ModAlt,
	"shift":   ModShift,
	"meta":    ModMeta,
	"cmd":     ModMeta,
	"command": ModMeta,
	"win":     ModMeta,
	"windows": ModMeta,
	"super":   ModMeta,
}

// ModifierFromName returns the Modifier for a given name (case-insensitive).
// Returns ModNone if the name is not a modifier.
func ModifierFromName(name string) Modifier {
	if m, ok := modifierNameMap[strings.ToLower(name)]; ok {
		return m
	}
	return ModNone
}
