// Package key provides key identity and normalization for chord tracking.
//
// A Key pairs the raw identifier reported by an input source (its canonical
// form) with the character the same physical key produces under shift:
//
//   - digits and symbols: "1" and "!", "0" and ")"
//   - punctuation pairs: "," and "<", "[" and "{", "`" and "~"
//   - letter case: "a" and "A"
//
// Two keys are equal when the canonical form of one matches either form of
// the other, so a chord held as "ctrl+A" is tracked the same as "ctrl+a".
//
// Chords are serialized as canonical forms joined with "+" in press order:
//
//	keys := []key.Key{key.Normalize("ctrl"), key.Normalize("a")}
//	key.Join(keys) // "ctrl+a"
//
// Configured chords may spell modifiers with platform aliases; CanonicalChord
// rewrites them to the names sources report ("control+s" becomes "ctrl+s").
package key
