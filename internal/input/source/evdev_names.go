package source

import "github.com/dshills/keychord/internal/input/key"

// evdevNames maps Linux input event codes (linux/input-event-codes.h) to key
// names. Left and right modifiers share a name so chords match either side.
var evdevNames = map[uint16]string{
	1:   NameEsc,
	2:   "1",
	3:   "2",
	4:   "3",
	5:   "4",
	6:   "5",
	7:   "6",
	8:   "7",
	9:   "8",
	10:  "9",
	11:  "0",
	12:  "-",
	13:  "=",
	14:  NameBackspace,
	15:  NameTab,
	16:  "q",
	17:  "w",
	18:  "e",
	19:  "r",
	20:  "t",
	21:  "y",
	22:  "u",
	23:  "i",
	24:  "o",
	25:  "p",
	26:  "[",
	27:  "]",
	28:  NameEnter,
	29:  key.NameCtrl,
	30:  "a",
	31:  "s",
	32:  "d",
	33:  "f",
	34:  "g",
	35:  "h",
	36:  "j",
	37:  "k",
	38:  "l",
	39:  ";",
	40:  "'",
	41:  "`",
	42:  key.NameShift,
	43:  "\\",
	44:  "z",
	45:  "x",
	46:  "c",
	47:  "v",
	48:  "b",
	49:  "n",
	50:  "m",
	51:  ",",
	52:  ".",
	53:  "/",
	54:  key.NameShift,
	55:  "*",
	56:  key.NameAlt,
	57:  NameSpace,
	58:  "caps lock",
	59:  "f1",
	60:  "f2",
	61:  "f3",
	62:  "f4",
	63:  "f5",
	64:  "f6",
	65:  "f7",
	66:  "f8",
	67:  "f9",
	68:  "f10",
	69:  "num lock",
	70:  "scroll lock",
	87:  "f11",
	88:  "f12",
	96:  NameEnter,
	97:  key.NameCtrl,
	98:  "/",
	99:  "print screen",
	100: key.NameAlt,
	102: NameHome,
	103: NameUp,
	104: NamePageUp,
	105: NameLeft,
	106: NameRight,
	107: NameEnd,
	108: NameDown,
	109: NamePageDown,
	110: NameInsert,
	111: NameDelete,
	119: "pause",
	125: key.NameMeta,
	126: key.NameMeta,
}

// EvdevKeyName returns the key name for a Linux key code, or "" when the
// code has no name.
func EvdevKeyName(code uint16) string {
	return evdevNames[code]
}
