// Package chord defines key chords: a set of held modifiers plus a single
// triggering key or mouse button, and the parser for their textual form.
package chord

import "strings"

// Button is a mouse button.
type Button uint8

const (
	ButtonLeft Button = 1 << iota
	ButtonRight
	ButtonMiddle
)

var buttonOrder = [...]Button{ButtonLeft, ButtonRight, ButtonMiddle}

func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "LMB"
	case ButtonRight:
		return "RMB"
	case ButtonMiddle:
		return "MMB"
	default:
		return "Unknown"
	}
}

// ButtonSet is a set of mouse buttons.
type ButtonSet uint8

// Has reports whether b is in the set.
func (s ButtonSet) Has(b Button) bool { return s&ButtonSet(b) != 0 }

// With returns the set with b added.
func (s ButtonSet) With(b Button) ButtonSet { return s | ButtonSet(b) }

// Empty reports whether the set has no buttons.
func (s ButtonSet) Empty() bool { return s == 0 }

// Kind classifies a chord for display.
type Kind uint8

const (
	KindKeyCombo Kind = iota
	KindMouse
)

func (k Kind) String() string {
	if k == KindMouse {
		return "mouse"
	}
	return "key"
}

// Chord is a finalized combination of modifiers and a trigger. Chords are
// plain values and compare with ==.
type Chord struct {
	Mods    ModifierSet
	Key     Key
	Buttons ButtonSet
}

// Kind returns KindMouse for button chords.
func (c Chord) Kind() Kind {
	if !c.Buttons.Empty() {
		return KindMouse
	}
	return KindKeyCombo
}

// Complete reports whether the chord has a trigger. Modifier-only chords are
// never displayed.
func (c Chord) Complete() bool {
	return c.Key != NoKey || !c.Buttons.Empty()
}

// String renders the canonical form, e.g. "Ctrl+Shift+P".
func (c Chord) String() string {
	return c.render(func(k Key) string { return string(k) })
}

// Label renders the on-screen label, e.g. "Ctrl+-".
func (c Chord) Label() string {
	return c.render(Key.Label)
}

func (c Chord) render(keyText func(Key) string) string {
	var parts []string
	for _, m := range c.Mods.Modifiers() {
		parts = append(parts, m.String())
	}
	if c.Key != NoKey {
		parts = append(parts, keyText(c.Key))
	}
	for _, b := range buttonOrder {
		if c.Buttons.Has(b) {
			parts = append(parts, b.String())
		}
	}
	return strings.Join(parts, "+")
}
