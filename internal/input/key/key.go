package key

import "strings"

// None is the canonical name given to events that carry no key identifier.
const None = "None"

// Separator joins canonical key names in a chord string.
const Separator = "+"

// Key identifies a keyboard key by the name its input source reports and the
// name the same key produces under shift. Keys are immutable values.
type Key struct {
	canonical string
	shift     string
}

// shiftPairs lists the unshifted/shifted pairs of a US layout.
// Letter case pairs are added in init.
var shiftPairs = map[string]string{
	"1":  "!",
	"2":  "@",
	"3":  "#",
	"4":  "$",
	"5":  "%",
	"6":  "^",
	"7":  "&",
	"8":  "*",
	"9":  "(",
	"0":  ")",
	",":  "<",
	".":  ">",
	"/":  "?",
	";":  ":",
	"'":  "\"",
	"[":  "{",
	"]":  "}",
	"\\": "|",
	"-":  "_",
	"=":  "+",
	"`":  "~",
}

// shiftTable maps every name in shiftPairs, in both directions, to its pair.
var shiftTable map[string]string

func init() {
	shiftTable = make(map[string]string, 2*(len(shiftPairs)+26))
	for lower, upper := range shiftPairs {
		shiftTable[lower] = upper
		shiftTable[upper] = lower
	}
	for c := 'a'; c <= 'z'; c++ {
		lower, upper := string(c), string(c-'a'+'A')
		shiftTable[lower] = upper
		shiftTable[upper] = lower
	}
}

// Normalize builds the Key for a raw key name.
// An empty name normalizes to None. Names without a shift pair are self-paired.
func Normalize(name string) Key {
	if name == "" {
		name = None
	}
	if shifted, ok := shiftTable[name]; ok {
		return Key{canonical: name, shift: shifted}
	}
	return Key{canonical: name, shift: name}
}

// String returns the canonical name.
func (k Key) String() string {
	return k.canonical
}

// Canonical returns the name reported by the input source.
func (k Key) Canonical() string {
	return k.canonical
}

// Shift returns the shift-equivalent name.
func (k Key) Shift() string {
	return k.shift
}

// Equal reports whether k and other denote the same physical key.
func (k Key) Equal(other Key) bool {
	return k.canonical == other.canonical || k.shift == other.canonical
}

// Join serializes keys as a chord string in the given order.
func Join(keys []Key) string {
	switch len(keys) {
	case 0:
		return ""
	case 1:
		return keys[0].canonical
	}

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(Separator)
		}
		sb.WriteString(k.canonical)
	}
	return sb.String()
}

// Split parses a chord string into its canonical key names.
// A chord ending in the separator (for example "ctrl++") treats the trailing
// "+" as a key name.
func Split(chord string) []string {
	if chord == "" {
		return nil
	}
	if chord == Separator {
		return []string{Separator}
	}

	trailing := strings.HasSuffix(chord, Separator+Separator)
	if trailing {
		chord = chord[:len(chord)-2]
	}
	parts := strings.Split(chord, Separator)
	if trailing {
		parts = append(parts, Separator)
	}
	return parts
}

// CanonicalChord rewrites the modifier aliases in chord, such as "control",
// "cmd" or "option", to the names input sources report. Other key names are
// kept as written. It reports false if chord has an empty key.
func CanonicalChord(chord string) (string, bool) {
	parts := Split(chord)
	if len(parts) == 0 {
		return "", false
	}
	for i, p := range parts {
		if p == "" {
			return chord, false
		}
		if m := ModifierFromName(p); m != ModNone {
			parts[i] = m.String()
		}
	}
	return strings.Join(parts, Separator), true
}
