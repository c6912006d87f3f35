package config

import (
	"sync/atomic"
	"time"

	"keyway/internal/chord"
	"keyway/internal/overlay"
)

// DefaultPauseHotkey is used when pause_hotkey is missing or malformed.
const DefaultPauseHotkey = "Ctrl+Shift+P"

// Snapshot is the immutable runtime view of Settings consumed by the event
// loop. A new Snapshot replaces the old one wholesale; it is never mutated
// after publication.
type Snapshot struct {
	TTL              time.Duration
	MaxItems         int
	RepeatCoalesce   time.Duration
	ModifierGrace    time.Duration
	PauseHotkey      chord.Chord
	ShowMouse        bool
	AppFilterEnabled bool
	DisabledApps     []string
	Layout           overlay.Layout
}

// DefaultSnapshot returns the snapshot of DefaultSettings.
func DefaultSnapshot() *Snapshot {
	snap, _ := DefaultSettings().Snapshot()
	return snap
}

// Store publishes snapshots to the event loop. Publish may be called from
// any goroutine; the loop reads with Load at the top of each iteration.
type Store struct {
	p      atomic.Pointer[Snapshot]
	notify chan struct{}
}

// NewStore returns a store holding initial, or DefaultSnapshot when nil.
func NewStore(initial *Snapshot) *Store {
	if initial == nil {
		initial = DefaultSnapshot()
	}
	s := &Store{notify: make(chan struct{}, 1)}
	s.p.Store(initial)
	return s
}

// Load returns the current snapshot.
func (s *Store) Load() *Snapshot { return s.p.Load() }

// Publish replaces the snapshot and wakes the loop. Multiple publishes
// before the loop wakes collapse into one notification.
func (s *Store) Publish(snap *Snapshot) {
	if snap == nil {
		return
	}
	s.p.Store(snap)
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Changed is signalled after Publish.
func (s *Store) Changed() <-chan struct{} { return s.notify }
