package input

import "keyway/internal/chord"

// keyCodes maps evdev KEY_* codes to key symbols. Keypad keys fold into
// their main-block equivalents.
var keyCodes = map[uint16]chord.Key{
	1:  chord.KeyEsc,
	14: chord.KeyBackspace,
	15: chord.KeyTab,
	28: chord.KeyEnter,
	57: chord.KeySpace,
	58: chord.KeyCapsLock,

	12: chord.KeyMinus,
	13: chord.KeyEqual,
	26: chord.KeyLeftBracket,
	27: chord.KeyRightBracket,
	39: chord.KeySemicolon,
	40: chord.KeyApostrophe,
	41: chord.KeyGrave,
	43: chord.KeyBackslash,
	51: chord.KeyComma,
	52: chord.KeyPeriod,
	53: chord.KeySlash,

	29:  chord.LeftCtrl,
	97:  chord.RightCtrl,
	42:  chord.LeftShift,
	54:  chord.RightShift,
	56:  chord.LeftAlt,
	100: chord.RightAlt,
	125: chord.LeftSuper,
	126: chord.RightSuper,

	69: chord.KeyNumLock,
	70: chord.KeyScrollLock,

	55: chord.KeyAsterisk, // KP*
	74: chord.KeyMinus,    // KP-
	78: chord.KeyPlus,     // KP+
	83: chord.KeyPeriod,   // KP.
	96: chord.KeyEnter,    // KPEnter
	98: chord.KeySlash,    // KP/

	99:  chord.KeySysRq,
	102: chord.KeyHome,
	103: chord.KeyUp,
	104: chord.KeyPageUp,
	105: chord.KeyLeft,
	106: chord.KeyRight,
	107: chord.KeyEnd,
	108: chord.KeyDown,
	109: chord.KeyPageDown,
	110: chord.KeyInsert,
	111: chord.KeyDelete,
	113: chord.KeyMute,
	114: chord.KeyVolumeDown,
	115: chord.KeyVolumeUp,
	119: chord.KeyPause,
	127: chord.KeyMenu,
	163: chord.KeyNextSong,
	164: chord.KeyPlayPause,
	165: chord.KeyPrevSong,
	210: chord.KeyPrint,
}

// buttonCodes maps BTN_* codes to mouse buttons.
var buttonCodes = map[uint16]chord.Button{
	0x110: chord.ButtonLeft,
	0x111: chord.ButtonRight,
	0x112: chord.ButtonMiddle,
}

func init() {
	letterRows := []struct {
		first   uint16
		letters string
	}{
		{16, "QWERTYUIOP"},
		{30, "ASDFGHJKL"},
		{44, "ZXCVBNM"},
	}
	for _, row := range letterRows {
		for i, r := range row.letters {
			keyCodes[row.first+uint16(i)] = chord.Key(string(r))
		}
	}

	// KEY_1..KEY_9 are 2..10, KEY_0 is 11.
	for d := 1; d <= 9; d++ {
		keyCodes[uint16(d+1)] = chord.Key(string(rune('0' + d)))
	}
	keyCodes[11] = chord.Key("0")

	// Keypad digits.
	keypad := map[uint16]string{
		71: "7", 72: "8", 73: "9",
		75: "4", 76: "5", 77: "6",
		79: "1", 80: "2", 81: "3",
		82: "0",
	}
	for code, d := range keypad {
		keyCodes[code] = chord.Key(d)
	}

	// F1..F10 are 59..68, F11 87, F12 88, F13..F24 183..194.
	for n := 1; n <= 10; n++ {
		keyCodes[uint16(58+n)] = chord.FunctionKey(n)
	}
	keyCodes[87] = chord.FunctionKey(11)
	keyCodes[88] = chord.FunctionKey(12)
	for n := 13; n <= 24; n++ {
		keyCodes[uint16(170+n)] = chord.FunctionKey(n)
	}
}

// Evdev codes used when probing device capabilities.
const (
	codeKeyA     = 30
	codeKeyZ     = 44
	codeKeySpace = 57
	codeBtnLeft  = 0x110
	codeBtnRight = 0x111
)
