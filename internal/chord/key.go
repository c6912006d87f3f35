package chord

import (
	"strconv"
	"strings"
)

// Key is a semantic key symbol. The zero value means "no key".
type Key string

// NoKey is the absent key.
const NoKey Key = ""

// Physical modifier keys. These never appear as the main key of a chord.
const (
	LeftCtrl   Key = "LeftCtrl"
	RightCtrl  Key = "RightCtrl"
	LeftShift  Key = "LeftShift"
	RightShift Key = "RightShift"
	LeftAlt    Key = "LeftAlt"
	RightAlt   Key = "RightAlt"
	LeftSuper  Key = "LeftSuper"
	RightSuper Key = "RightSuper"
)

// Non-alphanumeric keys referenced by name elsewhere.
const (
	KeyEsc          Key = "Esc"
	KeyEnter        Key = "Enter"
	KeySpace        Key = "Space"
	KeyTab          Key = "Tab"
	KeyBackspace    Key = "Backspace"
	KeyDelete       Key = "Del"
	KeyInsert       Key = "Ins"
	KeyHome         Key = "Home"
	KeyEnd          Key = "End"
	KeyPageUp       Key = "PgUp"
	KeyPageDown     Key = "PgDn"
	KeyLeft         Key = "Left"
	KeyRight        Key = "Right"
	KeyUp           Key = "Up"
	KeyDown         Key = "Down"
	KeyPrint        Key = "PrtSc"
	KeySysRq        Key = "SysRq"
	KeyPause        Key = "Pause"
	KeyCapsLock     Key = "Caps"
	KeyNumLock      Key = "Num"
	KeyScrollLock   Key = "Scroll"
	KeyMenu         Key = "Menu"
	KeyMinus        Key = "Minus"
	KeyEqual        Key = "Equal"
	KeyPlus         Key = "Plus"
	KeyAsterisk     Key = "Asterisk"
	KeyComma        Key = "Comma"
	KeyPeriod       Key = "Period"
	KeySlash        Key = "Slash"
	KeyBackslash    Key = "Backslash"
	KeyGrave        Key = "Grave"
	KeyApostrophe   Key = "Apostrophe"
	KeySemicolon    Key = "Semicolon"
	KeyLeftBracket  Key = "LeftBracket"
	KeyRightBracket Key = "RightBracket"
	KeyMute         Key = "Mute"
	KeyVolumeDown   Key = "VolDown"
	KeyVolumeUp     Key = "VolUp"
	KeyPlayPause    Key = "Play"
	KeyNextSong     Key = "Next"
	KeyPrevSong     Key = "Prev"
)

var physicalModifiers = map[Key]Modifier{
	LeftCtrl:   Ctrl,
	RightCtrl:  Ctrl,
	LeftShift:  Shift,
	RightShift: Shift,
	LeftAlt:    Alt,
	RightAlt:   Alt,
	LeftSuper:  Super,
	RightSuper: Super,
}

// glyphs holds display labels that differ from the key name. Plus keeps
// its name so "Ctrl+Plus" stays readable.
var glyphs = map[Key]string{
	KeyMinus:        "-",
	KeyEqual:        "=",
	KeyAsterisk:     "*",
	KeyComma:        ",",
	KeyPeriod:       ".",
	KeySlash:        "/",
	KeyBackslash:    "\\",
	KeyGrave:        "`",
	KeyApostrophe:   "'",
	KeySemicolon:    ";",
	KeyLeftBracket:  "[",
	KeyRightBracket: "]",
}

// aliases maps lower-cased alternate spellings to canonical keys.
var aliases = map[string]Key{
	"escape":       KeyEsc,
	"return":       KeyEnter,
	"bksp":         KeyBackspace,
	"delete":       KeyDelete,
	"insert":       KeyInsert,
	"pageup":       KeyPageUp,
	"pagedown":     KeyPageDown,
	"print":        KeyPrint,
	"printscreen":  KeyPrint,
	"capslock":     KeyCapsLock,
	"numlock":      KeyNumLock,
	"scrolllock":   KeyScrollLock,
	"add":          KeyPlus,
	"dash":         KeyMinus,
	"subtract":     KeyMinus,
	"equals":       KeyEqual,
	"dot":          KeyPeriod,
	"backtick":     KeyGrave,
	"quote":        KeyApostrophe,
	"lbracket":     KeyLeftBracket,
	"rbracket":     KeyRightBracket,
	"volumeup":     KeyVolumeUp,
	"volumedown":   KeyVolumeDown,
	"playpause":    KeyPlayPause,
	"nextsong":     KeyNextSong,
	"previoussong": KeyPrevSong,
	"lctrl":        LeftCtrl,
	"rctrl":        RightCtrl,
	"lshift":       LeftShift,
	"rshift":       RightShift,
	"lalt":         LeftAlt,
	"ralt":         RightAlt,
	"lsuper":       LeftSuper,
	"rsuper":       RightSuper,
}

// byName indexes every canonical key by its lower-cased name and glyph.
var byName = buildNameIndex()

func buildNameIndex() map[string]Key {
	idx := make(map[string]Key)
	add := func(k Key) {
		idx[strings.ToLower(string(k))] = k
	}
	for c := 'A'; c <= 'Z'; c++ {
		add(Key(string(c)))
	}
	for c := '0'; c <= '9'; c++ {
		add(Key(string(c)))
	}
	for i := 1; i <= 24; i++ {
		add(FunctionKey(i))
	}
	for _, k := range []Key{
		KeyEsc, KeyEnter, KeySpace, KeyTab, KeyBackspace, KeyDelete, KeyInsert,
		KeyHome, KeyEnd, KeyPageUp, KeyPageDown, KeyLeft, KeyRight, KeyUp, KeyDown,
		KeyPrint, KeySysRq, KeyPause, KeyCapsLock, KeyNumLock, KeyScrollLock, KeyMenu,
		KeyMinus, KeyEqual, KeyPlus, KeyAsterisk, KeyComma, KeyPeriod, KeySlash,
		KeyBackslash, KeyGrave, KeyApostrophe, KeySemicolon, KeyLeftBracket,
		KeyRightBracket, KeyMute, KeyVolumeDown, KeyVolumeUp, KeyPlayPause,
		KeyNextSong, KeyPrevSong,
	} {
		add(k)
	}
	for k := range physicalModifiers {
		add(k)
	}
	for k, g := range glyphs {
		idx[g] = k
	}
	for a, k := range aliases {
		idx[a] = k
	}
	return idx
}

// FunctionKey returns the key for F<n>.
func FunctionKey(n int) Key {
	return Key("F" + strconv.Itoa(n))
}

// LookupKey resolves a key name case-insensitively, accepting aliases and
// punctuation glyphs.
func LookupKey(name string) (Key, bool) {
	k, ok := byName[strings.ToLower(strings.TrimSpace(name))]
	return k, ok
}

// Modifier returns the logical modifier for a physical modifier key.
func (k Key) Modifier() (Modifier, bool) {
	m, ok := physicalModifiers[k]
	return m, ok
}

// IsModifier reports whether k is a physical modifier key.
func (k Key) IsModifier() bool {
	_, ok := physicalModifiers[k]
	return ok
}

// Label is the text shown on screen for k.
func (k Key) Label() string {
	if g, ok := glyphs[k]; ok {
		return g
	}
	return string(k)
}
