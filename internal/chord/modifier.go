package chord

import "strings"

// Modifier is one logical modifier. Left and right physical keys collapse
// onto the same Modifier.
type Modifier uint8

const (
	Ctrl Modifier = 1 << iota
	Shift
	Alt
	Super
)

// modifierOrder is the canonical rendering order.
var modifierOrder = [...]Modifier{Ctrl, Shift, Alt, Super}

func (m Modifier) String() string {
	switch m {
	case Ctrl:
		return "Ctrl"
	case Shift:
		return "Shift"
	case Alt:
		return "Alt"
	case Super:
		return "Super"
	default:
		return "Unknown"
	}
}

// ModifierSet is a set of logical modifiers.
type ModifierSet uint8

// NewModifierSet builds a set from the given modifiers.
func NewModifierSet(mods ...Modifier) ModifierSet {
	var s ModifierSet
	for _, m := range mods {
		s = s.With(m)
	}
	return s
}

// Has reports whether m is in the set.
func (s ModifierSet) Has(m Modifier) bool { return s&ModifierSet(m) != 0 }

// With returns the set with m added.
func (s ModifierSet) With(m Modifier) ModifierSet { return s | ModifierSet(m) }

// Without returns the set with m removed.
func (s ModifierSet) Without(m Modifier) ModifierSet { return s &^ ModifierSet(m) }

// Union returns the union of both sets.
func (s ModifierSet) Union(o ModifierSet) ModifierSet { return s | o }

// Intersects reports whether the sets share at least one modifier.
func (s ModifierSet) Intersects(o ModifierSet) bool { return s&o != 0 }

// Empty reports whether no modifier is present.
func (s ModifierSet) Empty() bool { return s == 0 }

// Modifiers lists the members in canonical order.
func (s ModifierSet) Modifiers() []Modifier {
	out := make([]Modifier, 0, len(modifierOrder))
	for _, m := range modifierOrder {
		if s.Has(m) {
			out = append(out, m)
		}
	}
	return out
}

func (s ModifierSet) String() string {
	mods := s.Modifiers()
	parts := make([]string, len(mods))
	for i, m := range mods {
		parts[i] = m.String()
	}
	return strings.Join(parts, "+")
}
