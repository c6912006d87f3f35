package engine

import "keyway/internal/chord"

// ModifierTracker holds the physical modifier keys currently down. Left and
// right variants are tracked independently, so releasing one Shift while the
// other is held keeps Shift in the snapshot.
type ModifierTracker struct {
	held map[chord.Key]struct{}
}

// NewModifierTracker returns an empty tracker.
func NewModifierTracker() *ModifierTracker {
	return &ModifierTracker{held: make(map[chord.Key]struct{}, 8)}
}

// Press records key as held. Non-modifier keys and repeated presses are
// ignored. It reports whether the set changed.
func (t *ModifierTracker) Press(key chord.Key) bool {
	if !key.IsModifier() {
		return false
	}
	if _, ok := t.held[key]; ok {
		return false
	}
	t.held[key] = struct{}{}
	return true
}

// Release forgets key. Releasing a key that is not held is a no-op, which
// absorbs lost or duplicated device events.
func (t *ModifierTracker) Release(key chord.Key) bool {
	if _, ok := t.held[key]; !ok {
		return false
	}
	delete(t.held, key)
	return true
}

// Snapshot collapses the held physical keys into a ModifierSet.
func (t *ModifierTracker) Snapshot() chord.ModifierSet {
	var set chord.ModifierSet
	for key := range t.held {
		if m, ok := key.Modifier(); ok {
			set = set.With(m)
		}
	}
	return set
}

// Held reports whether the physical key is down.
func (t *ModifierTracker) Held(key chord.Key) bool {
	_, ok := t.held[key]
	return ok
}

// Reset releases everything.
func (t *ModifierTracker) Reset() {
	clear(t.held)
}
