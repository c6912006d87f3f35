package engine

import (
	"time"

	"keyway/internal/chord"
)

// AggState is the state of the chord aggregator.
type AggState uint8

const (
	Idle AggState = iota
	AwaitingGrace
	Held
)

func (s AggState) String() string {
	switch s {
	case AwaitingGrace:
		return "awaiting_grace"
	case Held:
		return "held"
	default:
		return "idle"
	}
}

// ActionKind says what the overlay should do with a chord.
type ActionKind uint8

const (
	// Emit inserts a finalized chord.
	Emit ActionKind = iota + 1
	// Refresh extends the item of a chord that is being auto-repeated.
	Refresh
)

// Action is an aggregator output. Repeat is set for chords produced by
// kernel auto-repeat rather than a fresh press.
type Action struct {
	Kind   ActionKind
	Chord  chord.Chord
	Repeat bool
	At     time.Time
}

// Aggregator turns a stream of key transitions into chords. Modifier and
// main-key presses are not atomic at the hardware level, so a main key opens
// a short grace window during which further modifier presses still join the
// chord. All methods take the current time explicitly; the aggregator never
// reads the clock.
type Aggregator struct {
	state AggState

	// AwaitingGrace
	partial     chord.Chord
	deadline    time.Time
	mainUp      bool
	fromRepeat  bool
	coalesceFor time.Duration

	// Held
	held     chord.Chord
	lastSeen time.Time
	coalesce time.Duration
}

// NewAggregator returns an idle aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// State returns the current state.
func (a *Aggregator) State() AggState { return a.state }

// Deadline returns the pending grace deadline, if any.
func (a *Aggregator) Deadline() (time.Time, bool) {
	if a.state != AwaitingGrace {
		return time.Time{}, false
	}
	return a.deadline, true
}

// KeyDown handles a press or auto-repeat of a non-modifier key. mods is the
// tracker snapshot at now. grace and coalesce come from the settings in
// effect when the press arrives; a window keeps the values it started with.
func (a *Aggregator) KeyDown(key chord.Key, mods chord.ModifierSet, repeat bool, now time.Time, grace, coalesce time.Duration) []Action {
	var out []Action

	switch a.state {
	case AwaitingGrace:
		if key == a.partial.Key && (repeat || !a.mainUp) {
			// The key is being held down: finalize now and let the
			// repeat coalesce into it.
			out = append(out, a.finalize(a.deadlineOrNow(now)))
			if a.state == Held {
				return append(out, a.repeat(now)...)
			}
		} else {
			// A second main key never merges into the first chord.
			out = append(out, a.finalize(now))
		}
		a.state = Idle

	case Held:
		// Held implies the main key has not been released, so a second
		// press of it is a repeat whether or not the device flagged it.
		if key == a.held.Key {
			return a.repeat(now)
		}
		a.state = Idle
	}

	return append(out, a.begin(key, mods, repeat, now, grace, coalesce)...)
}

// ModifierDown merges a modifier pressed during the grace window into the
// pending chord. The deadline is not extended. Modifiers pressed after
// finalization do not join the held chord.
func (a *Aggregator) ModifierDown(m chord.Modifier) {
	if a.state == AwaitingGrace {
		a.partial.Mods = a.partial.Mods.With(m)
	}
}

// KeyUp handles the release of a non-modifier key. Releasing the main key
// during the grace window does not cancel it: a quick tap still finalizes at
// the deadline.
func (a *Aggregator) KeyUp(key chord.Key) {
	switch a.state {
	case AwaitingGrace:
		if key == a.partial.Key {
			a.mainUp = true
		}
	case Held:
		if key == a.held.Key {
			a.state = Idle
		}
	}
}

// ModifierUp ends a held chord that included m.
func (a *Aggregator) ModifierUp(m chord.Modifier) {
	if a.state == Held && a.held.Mods.Has(m) {
		a.state = Idle
	}
}

// Expire finalizes the pending chord if its deadline is at or before now.
func (a *Aggregator) Expire(now time.Time) []Action {
	if a.state != AwaitingGrace || a.deadline.After(now) {
		return nil
	}
	return []Action{a.finalize(a.deadline)}
}

// Reset drops any pending or held chord without emitting it.
func (a *Aggregator) Reset() {
	*a = Aggregator{}
}

func (a *Aggregator) begin(key chord.Key, mods chord.ModifierSet, repeat bool, now time.Time, grace, coalesce time.Duration) []Action {
	a.partial = chord.Chord{Mods: mods, Key: key}
	a.deadline = now.Add(grace)
	a.mainUp = false
	a.fromRepeat = repeat
	a.coalesceFor = coalesce
	a.state = AwaitingGrace

	if grace <= 0 {
		return []Action{a.finalize(now)}
	}
	return nil
}

// finalize emits the pending chord and moves to Held, or to Idle if the main
// key was already released.
func (a *Aggregator) finalize(at time.Time) Action {
	act := Action{Kind: Emit, Chord: a.partial, Repeat: a.fromRepeat, At: at}
	if a.mainUp {
		a.state = Idle
	} else {
		a.state = Held
		a.held = a.partial
		a.lastSeen = at
		a.coalesce = a.coalesceFor
	}
	a.partial = chord.Chord{}
	a.mainUp = false
	a.fromRepeat = false
	return act
}

func (a *Aggregator) repeat(now time.Time) []Action {
	kind := Emit
	if now.Sub(a.lastSeen) <= a.coalesce {
		kind = Refresh
	}
	a.lastSeen = now
	return []Action{{Kind: kind, Chord: a.held, Repeat: true, At: now}}
}

func (a *Aggregator) deadlineOrNow(now time.Time) time.Time {
	if a.deadline.Before(now) {
		return a.deadline
	}
	return now
}
