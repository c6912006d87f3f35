package overlay

import (
	"time"

	"github.com/google/uuid"

	"keyway/internal/chord"
	"keyway/internal/metrics"
)

// Manager holds at most max items, newest first. Items expire ttl after
// their last insert or refresh.
type Manager struct {
	ttl   time.Duration
	max   int
	items []Item

	newID   func() uuid.UUID
	evicted *metrics.Counter
	expired *metrics.Counter
	visible *metrics.Gauge
}

// NewManager returns an empty manager. max below 1 is treated as 1.
func NewManager(ttl time.Duration, max int) *Manager {
	if max < 1 {
		max = 1
	}
	return &Manager{
		ttl:   ttl,
		max:   max,
		items: make([]Item, 0, max+1),
		newID: uuid.New,
	}
}

// Instrument attaches diagnostics. Any argument may be nil.
func (m *Manager) Instrument(evicted, expired *metrics.Counter, visible *metrics.Gauge) {
	m.evicted = evicted
	m.expired = expired
	m.visible = visible
}

// Insert prepends a new item expiring at now+ttl and evicts the oldest
// items beyond the limit regardless of their remaining ttl.
func (m *Manager) Insert(label string, kind chord.Kind, now time.Time) Item {
	item := Item{
		ID:        m.newID(),
		Label:     label,
		Kind:      kind,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	m.items = append(m.items, Item{})
	copy(m.items[1:], m.items)
	m.items[0] = item

	m.trim()
	m.observe()
	return item
}

// Refresh finds a live item with the same label and kind, resets its expiry
// to now+ttl and moves it to the front. It reports whether one was found.
func (m *Manager) Refresh(label string, kind chord.Kind, now time.Time) bool {
	for i, it := range m.items {
		if it.Label != label || it.Kind != kind || it.Expired(now) {
			continue
		}
		it.ExpiresAt = now.Add(m.ttl)
		copy(m.items[1:i+1], m.items[:i])
		m.items[0] = it
		return true
	}
	return false
}

// Tick removes every item whose expiry is at or before now and returns how
// many were removed. Calling it again with the same now removes nothing.
func (m *Manager) Tick(now time.Time) int {
	kept := m.items[:0]
	for _, it := range m.items {
		if !it.Expired(now) {
			kept = append(kept, it)
		}
	}
	removed := len(m.items) - len(kept)
	clear(m.items[len(kept):])
	m.items = kept

	if removed > 0 {
		if m.expired != nil {
			m.expired.Add(uint64(removed))
		}
		m.observe()
	}
	return removed
}

// Items returns a copy of the current items, newest first.
func (m *Manager) Items() []Item {
	out := make([]Item, len(m.items))
	copy(out, m.items)
	return out
}

// Len returns the number of items.
func (m *Manager) Len() int { return len(m.items) }

// NextExpiry returns the earliest expiry among current items.
func (m *Manager) NextExpiry() (time.Time, bool) {
	if len(m.items) == 0 {
		return time.Time{}, false
	}
	next := m.items[0].ExpiresAt
	for _, it := range m.items[1:] {
		if it.ExpiresAt.Before(next) {
			next = it.ExpiresAt
		}
	}
	return next, true
}

// Clear removes all items and returns how many there were.
func (m *Manager) Clear() int {
	n := len(m.items)
	clear(m.items)
	m.items = m.items[:0]
	m.observe()
	return n
}

// SetLimits applies new settings. Existing expiry times are kept; only the
// count is trimmed to the new max. It returns the number of evicted items.
func (m *Manager) SetLimits(ttl time.Duration, max int) int {
	if max < 1 {
		max = 1
	}
	m.ttl = ttl
	m.max = max
	n := m.trim()
	m.observe()
	return n
}

// TTL returns the current item lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

func (m *Manager) trim() int {
	if len(m.items) <= m.max {
		return 0
	}
	n := len(m.items) - m.max
	clear(m.items[m.max:])
	m.items = m.items[:m.max]
	if m.evicted != nil {
		m.evicted.Add(uint64(n))
	}
	return n
}

func (m *Manager) observe() {
	if m.visible != nil {
		m.visible.Set(int64(len(m.items)))
	}
}
