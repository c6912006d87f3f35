// Package overlay owns the bounded, expiring list of items shown on screen
// and the interface through which a renderer draws them.
//
// A Manager is not safe for concurrent use; it belongs to the event loop.
// Renderers receive copies.
package overlay

import (
	"time"

	"github.com/google/uuid"

	"keyway/internal/chord"
)

// Item is one bubble on screen. Label is computed once when the item is
// created and never recomputed.
type Item struct {
	ID        uuid.UUID
	Label     string
	Kind      chord.Kind
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the item is due for removal at now.
func (i Item) Expired(now time.Time) bool {
	return !i.ExpiresAt.After(now)
}

// Remaining returns the time left before expiry, or 0.
func (i Item) Remaining(now time.Time) time.Duration {
	if d := i.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
